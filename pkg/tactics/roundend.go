package tactics

// endRound runs the round-end pipeline: SLOW preparations, BLEED, decay,
// late-game pressure, buff aging, and the round counter. The player whose
// turn was in progress when the round ended wins any simultaneous hero
// death inside a single step.
func endRound(gs *GameState) {
	active := gs.CurrentPlayer

	resolvePrepared(gs)
	if gs.GameOver {
		return
	}

	damageStep(gs, active, bleedVictims(gs))
	if gs.GameOver {
		return
	}

	if gs.CurrentRound >= 3 {
		damageStep(gs, active, decayVictims(gs))
		if gs.GameOver {
			return
		}
	}

	if gs.CurrentRound >= 8 {
		damageStep(gs, active, pressureVictims(gs))
		if gs.GameOver {
			return
		}
	}

	ageRound(gs)
	gs.CurrentRound++
	gs.CurrentPlayer = P1
}

func bleedVictims(gs *GameState) []string {
	var ids []string
	for i := range gs.Units {
		u := &gs.Units[i]
		if u.Alive() && gs.HasBuff(u.ID, BuffBleed) {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func decayVictims(gs *GameState) []string {
	var ids []string
	for i := range gs.Units {
		u := &gs.Units[i]
		if u.Alive() && u.Category == Minion {
			ids = append(ids, u.ID)
		}
	}
	return ids
}

func pressureVictims(gs *GameState) []string {
	var ids []string
	for i := range gs.Units {
		if gs.Units[i].Alive() {
			ids = append(ids, gs.Units[i].ID)
		}
	}
	return ids
}

// damageStep deals 1 HP to every listed unit as a single simultaneous
// step: if both heroes drop in the same step, the active player wins;
// minion deaths auto-spawn per round parity.
func damageStep(gs *GameState, active PlayerID, victimIDs []string) {
	var deadHeroes []PlayerID
	type fallen struct {
		id  string
		pos Position
	}
	var deadMinions []fallen

	for _, id := range victimIDs {
		u := gs.UnitByID(id)
		if u == nil || !u.Alive() {
			continue
		}
		u.HP--
		if u.HP > 0 {
			continue
		}
		u.HP = 0
		if u.Category == Hero {
			deadHeroes = append(deadHeroes, u.Owner)
		} else {
			deadMinions = append(deadMinions, fallen{id: u.ID, pos: u.Position})
		}
	}

	for _, f := range deadMinions {
		removeUnit(gs, f.id)
		spawnSystemDeath(gs, f.pos)
	}

	switch len(deadHeroes) {
	case 1:
		latchWinner(gs, deadHeroes[0].Opponent())
	case 2:
		latchWinner(gs, active)
	}
}

// resolvePrepared executes the declarations captured by SLOW-buffed
// units, in unit order. A declaration that is no longer legal (target
// gone, destination blocked) is skipped. Kills count as system deaths;
// a hero kill still decides the game.
func resolvePrepared(gs *GameState) {
	var ids []string
	for i := range gs.Units {
		u := &gs.Units[i]
		if u.Alive() && u.Preparing && u.PendingAction != nil {
			ids = append(ids, u.ID)
		}
	}

	for _, id := range ids {
		if gs.GameOver {
			return
		}
		u := gs.UnitByID(id)
		if u == nil || !u.Alive() || u.PendingAction == nil {
			continue
		}
		decl := *u.PendingAction
		u.Preparing = false
		u.PendingAction = nil
		executePrepared(gs, u, decl)
	}
}

func executePrepared(gs *GameState, u *Unit, a Action) {
	switch a.Type {
	case ActionMove:
		if a.Target != nil && preparedMoveLegal(gs, u, *a.Target) {
			performMove(gs, u, *a.Target)
		}
	case ActionAttack:
		target := resolveTarget(gs, a)
		if target != nil && preparedAttackLegal(gs, u, target) {
			performAttack(gs, u, target, causeSystem)
		}
	case ActionMoveAndAttack:
		if a.Target == nil || !preparedMoveLegal(gs, u, *a.Target) {
			return
		}
		performMove(gs, u, *a.Target)
		target := resolveTarget(gs, a)
		if target != nil && target.Owner != u.Owner && target.Alive() &&
			Manhattan(u.Position, target.Position) <= 1 {
			performAttack(gs, u, target, causeSystem)
		}
	case ActionUseSkill:
		skill, ok := SkillByID(u.SelectedSkillID)
		if !ok || u.SkillCooldown > 0 {
			return
		}
		if skill.Validate != nil && skill.Validate(gs, u, a) != nil {
			return
		}
		id := u.ID
		skill.Effect(gs, u, a)
		if cur := gs.UnitByID(id); cur != nil {
			cur.SkillCooldown = skill.Cooldown
		}
	}
}

func preparedMoveLegal(gs *GameState, u *Unit, dest Position) bool {
	return dest.OnBoard() &&
		Manhattan(u.Position, dest) >= 1 &&
		Manhattan(u.Position, dest) <= gs.EffectiveMoveRange(u) &&
		gs.UnitAt(dest) == nil &&
		gs.ObstacleAt(dest) == nil
}

func preparedAttackLegal(gs *GameState, u, target *Unit) bool {
	if !target.Alive() || target.Owner == u.Owner {
		return false
	}
	r := gs.EffectiveAttackRange(u)
	if r <= 1 {
		return Manhattan(u.Position, target.Position) <= r
	}
	return Chebyshev(u.Position, target.Position) <= r &&
		!lineBlocked(gs, u.Position, target.Position)
}

// ageRound decrements buff and tile durations, cools hero skills, and
// resets per-round unit bookkeeping.
func ageRound(gs *GameState) {
	for id, buffs := range gs.UnitBuffs {
		kept := buffs[:0]
		for _, b := range buffs {
			b.DurationRounds--
			if b.DurationRounds > 0 {
				kept = append(kept, b)
				continue
			}
			// Revert a LIFE raise when the instance expires.
			if b.Modifiers.HP != 0 {
				if u := gs.UnitByID(id); u != nil {
					u.MaxHP -= b.Modifiers.HP
					if u.HP > u.MaxHP {
						u.HP = u.MaxHP
					}
				}
			}
		}
		if len(kept) == 0 {
			delete(gs.UnitBuffs, id)
		} else {
			gs.UnitBuffs[id] = kept
		}
	}

	for i := range gs.Units {
		u := &gs.Units[i]
		if !u.Alive() {
			continue
		}
		if u.Category == Hero && u.SkillCooldown > 0 {
			u.SkillCooldown--
		}
		u.ActionsUsed = 0
		u.GrantedActions = 0
		u.Preparing = false
		u.PendingAction = nil
	}

	keptTiles := gs.BuffTiles[:0]
	for _, t := range gs.BuffTiles {
		t.DurationRounds--
		if t.DurationRounds > 0 {
			keptTiles = append(keptTiles, t)
		}
	}
	gs.BuffTiles = keptTiles
}
