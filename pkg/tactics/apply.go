package tactics

import "fmt"

// damageCause distinguishes player-inflicted kills (which prompt the
// owner for a death choice) from round-end processing kills (which
// auto-spawn per round parity).
type damageCause int

const (
	causeAction damageCause = iota
	causeSystem
)

// Apply validates the action and returns the successor state. The input
// state is never mutated; on a validation error the returned state is nil.
func Apply(gs *GameState, a Action) (*GameState, error) {
	if err := Validate(gs, a); err != nil {
		return nil, err
	}
	next := gs.Clone()

	switch a.Type {
	case ActionDeathChoice:
		applyDeathChoice(next, a)
	case ActionEndTurn:
		applyEndTurn(next)
	default:
		applyUnitAction(next, a)
	}
	return next, nil
}

func applyUnitAction(gs *GameState, a Action) {
	actor := gs.UnitByID(a.UnitID)

	// A SLOW-buffed unit only declares: the action is captured and
	// resolved at round end against whatever the board looks like then.
	if gs.HasBuff(actor.ID, BuffSlow) && !actor.Preparing {
		decl := a
		actor.Preparing = true
		actor.PendingAction = &decl
		latchAllowance(gs, actor)
		actor.ActionsUsed++
		advanceTurn(gs, a.UnitID)
		return
	}

	executeAction(gs, actor, a)
	actor = gs.UnitByID(a.UnitID) // executeAction may have reallocated units
	if actor != nil {
		latchAllowance(gs, actor)
		actor.ActionsUsed++
	}

	if gs.GameOver {
		return
	}
	if dc := gs.PendingDeathChoice; dc != nil {
		// Remember where the turn driver would have gone, hand the floor
		// to the bereaved owner, and resume after the choice lands.
		dc.ResumePlayer = nextPlayerFor(gs, a.UnitID)
		gs.CurrentPlayer = dc.Owner
		return
	}
	advanceTurn(gs, a.UnitID)
}

// latchAllowance fixes the unit's per-round action budget the first time
// it acts, after the action resolves. A SPEED buff held at that point
// grants the second action even if the buff expires before it is spent;
// a self-cast SPEED counts because the cast has already landed.
func latchAllowance(gs *GameState, u *Unit) {
	if u.GrantedActions == 0 {
		u.GrantedActions = gs.allowance(u)
	}
}

func executeAction(gs *GameState, actor *Unit, a Action) {
	switch a.Type {
	case ActionMove:
		performMove(gs, actor, *a.Target)
	case ActionAttack:
		target := resolveTarget(gs, a)
		if target != nil {
			performAttack(gs, actor, target, causeAction)
		}
	case ActionMoveAndAttack:
		performMove(gs, actor, *a.Target)
		target := resolveTarget(gs, a)
		if target != nil {
			performAttack(gs, actor, target, causeAction)
		}
	case ActionUseSkill:
		skill, _ := SkillByID(actor.SelectedSkillID)
		id := actor.ID
		skill.Effect(gs, actor, a)
		// The effect may have shrunk the unit list; re-resolve the actor.
		if u := gs.UnitByID(id); u != nil {
			u.SkillCooldown = skill.Cooldown
		}
	}
}

func resolveTarget(gs *GameState, a Action) *Unit {
	if a.TargetUnitID != "" {
		return gs.UnitByID(a.TargetUnitID)
	}
	if a.Target != nil {
		return gs.UnitAt(*a.Target)
	}
	return nil
}

// performMove relocates the unit and triggers any buff tile it lands on.
func performMove(gs *GameState, u *Unit, dest Position) {
	u.Position = dest
	if tile := gs.BuffTileAt(dest); tile != nil {
		grantBuff(gs, u, tile.BuffType)
		removeBuffTile(gs, tile.ID)
	}
}

// performAttack resolves Guardian interception and deals the damage.
func performAttack(gs *GameState, attacker, target *Unit, cause damageCause) {
	victim := target
	if tank := guardianFor(gs, target); tank != nil {
		victim = tank
	}
	dealDamage(gs, victim, gs.EffectiveAttack(attacker), cause)
}

// guardianFor returns an orthogonally adjacent allied Tank that
// intercepts damage aimed at the target, or nil. A Tank never intercepts
// for itself.
func guardianFor(gs *GameState, target *Unit) *Unit {
	if target.MinionType == Tank {
		return nil
	}
	for i := range gs.Units {
		u := &gs.Units[i]
		if u.MinionType == Tank && u.Owner == target.Owner && u.Alive() &&
			Manhattan(u.Position, target.Position) == 1 {
			return u
		}
	}
	return nil
}

// dealDamage applies hit points loss and runs death handling when the
// victim drops to zero.
func dealDamage(gs *GameState, victim *Unit, dmg int, cause damageCause) {
	if dmg <= 0 {
		return
	}
	victim.HP -= dmg
	if victim.HP > 0 {
		return
	}
	victim.HP = 0
	handleDeath(gs, victim, cause)
}

func handleDeath(gs *GameState, victim *Unit, cause damageCause) {
	if victim.Category == Hero {
		latchWinner(gs, victim.Owner.Opponent())
		return
	}
	id, owner, pos := victim.ID, victim.Owner, victim.Position
	removeUnit(gs, id)
	// Only one death choice may be outstanding; further kills from the
	// same action resolve like round-end deaths.
	if cause == causeSystem || gs.PendingDeathChoice != nil {
		spawnSystemDeath(gs, pos)
		return
	}
	gs.PendingDeathChoice = &DeathChoice{DeadUnitID: id, Owner: owner, Position: pos}
}

// latchWinner ends the game. Once set, the winner never changes.
func latchWinner(gs *GameState, w PlayerID) {
	if gs.GameOver {
		return
	}
	gs.GameOver = true
	winner := w
	gs.Winner = &winner
}

func removeUnit(gs *GameState, id string) {
	for i := range gs.Units {
		if gs.Units[i].ID == id {
			gs.Units = append(gs.Units[:i], gs.Units[i+1:]...)
			break
		}
	}
	delete(gs.UnitBuffs, id)
}

// spawnSystemDeath places an obstacle on odd rounds and a buff tile on
// even rounds where a minion died to round-end processing.
func spawnSystemDeath(gs *GameState, pos Position) {
	if gs.CurrentRound%2 == 1 {
		placeObstacle(gs, pos)
	} else {
		placeBuffTile(gs, pos, BuffPower)
	}
}

// placeObstacle inserts an obstacle at pos under the overwrite rule: any
// existing obstacle or active buff tile there is removed first.
func placeObstacle(gs *GameState, pos Position) {
	clearPosition(gs, pos)
	gs.Obstacles = append(gs.Obstacles, Obstacle{
		ID:       fmt.Sprintf("obs-r%d-%d-%d", gs.CurrentRound, pos.X, pos.Y),
		Position: pos,
	})
}

// placeBuffTile inserts a buff tile at pos under the overwrite rule.
func placeBuffTile(gs *GameState, pos Position, t BuffType) {
	clearPosition(gs, pos)
	gs.BuffTiles = append(gs.BuffTiles, BuffTile{
		ID:             fmt.Sprintf("tile-r%d-%d-%d", gs.CurrentRound, pos.X, pos.Y),
		Position:       pos,
		BuffType:       t,
		DurationRounds: 3,
	})
}

func clearPosition(gs *GameState, pos Position) {
	if o := gs.ObstacleAt(pos); o != nil {
		removeObstacle(gs, o.ID)
	}
	if t := gs.BuffTileAt(pos); t != nil {
		removeBuffTile(gs, t.ID)
	}
}

func removeObstacle(gs *GameState, id string) {
	for i := range gs.Obstacles {
		if gs.Obstacles[i].ID == id {
			gs.Obstacles = append(gs.Obstacles[:i], gs.Obstacles[i+1:]...)
			return
		}
	}
}

func removeBuffTile(gs *GameState, id string) {
	for i := range gs.BuffTiles {
		if gs.BuffTiles[i].ID == id {
			gs.BuffTiles = append(gs.BuffTiles[:i], gs.BuffTiles[i+1:]...)
			return
		}
	}
}

// grantBuff attaches a fresh instance of the buff type to the unit.
// LIFE raises current and max hit points immediately; the raise is
// reverted when the instance expires.
func grantBuff(gs *GameState, u *Unit, t BuffType) {
	inst := newBuffInstance(t)
	inst.ID = fmt.Sprintf("buff-%s-%s-r%d-%d", t, u.ID, gs.CurrentRound, len(gs.UnitBuffs[u.ID]))
	gs.UnitBuffs[u.ID] = append(gs.UnitBuffs[u.ID], inst)
	if inst.Modifiers.HP != 0 {
		u.MaxHP += inst.Modifiers.HP
		u.HP += inst.Modifiers.HP
	}
}

// newBuffInstance holds the catalogue of buff archetypes.
func newBuffInstance(t BuffType) BuffInstance {
	switch t {
	case BuffPower:
		return BuffInstance{Type: t, DurationRounds: 2, Modifiers: BuffModifiers{Attack: 1}}
	case BuffLife:
		return BuffInstance{Type: t, DurationRounds: 2, Modifiers: BuffModifiers{HP: 1}}
	case BuffSpeed:
		return BuffInstance{Type: t, DurationRounds: 1}
	case BuffWeakness:
		return BuffInstance{Type: t, DurationRounds: 2, Modifiers: BuffModifiers{Attack: -1}}
	case BuffBleed:
		return BuffInstance{Type: t, DurationRounds: 2}
	case BuffSlow:
		return BuffInstance{Type: t, DurationRounds: 1}
	default:
		return BuffInstance{Type: t, DurationRounds: 1}
	}
}

func applyDeathChoice(gs *GameState, a Action) {
	dc := gs.PendingDeathChoice
	switch a.Choice {
	case SpawnObstacle:
		placeObstacle(gs, dc.Position)
	case SpawnBuffTile:
		placeBuffTile(gs, dc.Position, BuffPower)
	}
	resume := dc.ResumePlayer
	gs.PendingDeathChoice = nil
	if resume != "" {
		gs.CurrentPlayer = resume
	}
	// The death changed the able-unit sets; the round may now be spent.
	if !gs.PlayerCanAct(P1) && !gs.PlayerCanAct(P2) {
		endRound(gs)
	}
}

func applyEndTurn(gs *GameState) {
	player := gs.CurrentPlayer
	for i := range gs.Units {
		u := &gs.Units[i]
		if u.Owner != player || !u.Alive() {
			continue
		}
		if u.GrantedActions == 0 {
			u.GrantedActions = gs.allowance(u)
		}
		u.ActionsUsed = u.GrantedActions
	}
	if gs.PlayerCanAct(player.Opponent()) {
		gs.CurrentPlayer = player.Opponent()
		return
	}
	endRound(gs)
}

// nextPlayerFor applies the turn-driver hand-off rules after a unit's
// action, without ending the round: the acting unit continues if it has
// actions left, otherwise the opponent takes over if able, otherwise the
// acting player keeps the turn (exhaustion rule).
func nextPlayerFor(gs *GameState, actedUnitID string) PlayerID {
	player := gs.CurrentPlayer
	if u := gs.UnitByID(actedUnitID); u != nil {
		player = u.Owner
		if gs.CanAct(u) {
			return player
		}
	}
	if gs.PlayerCanAct(player.Opponent()) {
		return player.Opponent()
	}
	return player
}

// advanceTurn assigns the next player, or ends the round when both sides
// are exhausted.
func advanceTurn(gs *GameState, actedUnitID string) {
	if !gs.PlayerCanAct(P1) && !gs.PlayerCanAct(P2) {
		endRound(gs)
		return
	}
	next := nextPlayerFor(gs, actedUnitID)
	if !gs.PlayerCanAct(next) {
		next = next.Opponent()
	}
	gs.CurrentPlayer = next
}
