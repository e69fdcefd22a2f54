package tactics

import "fmt"

// ValidationError describes why an action is illegal.
type ValidationError struct {
	Action  Action
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid action %s: %s", e.Action.Type, e.Message)
}

func invalid(a Action, msg string) error {
	return &ValidationError{Action: a, Message: msg}
}

// Validate checks whether an action is legal in the given state. Returns
// nil if valid, or a ValidationError with a stable human-readable reason.
func Validate(gs *GameState, a Action) error {
	if gs.GameOver {
		return invalid(a, "game ended")
	}
	if gs.PendingDeathChoice != nil && a.Type != ActionDeathChoice {
		return invalid(a, "death choice pending")
	}
	if a.Type == ActionDeathChoice {
		return validateDeathChoice(gs, a)
	}
	if a.Player != gs.CurrentPlayer {
		return invalid(a, "not your turn")
	}

	switch a.Type {
	case ActionEndTurn:
		return nil
	case ActionMove:
		actor, err := actingUnit(gs, a)
		if err != nil {
			return err
		}
		return validateMove(gs, a, actor, a.Target)
	case ActionAttack:
		actor, err := actingUnit(gs, a)
		if err != nil {
			return err
		}
		target, err := attackTarget(gs, a)
		if err != nil {
			return err
		}
		return validateAttack(gs, a, actor, target)
	case ActionMoveAndAttack:
		actor, err := actingUnit(gs, a)
		if err != nil {
			return err
		}
		if err := validateMove(gs, a, actor, a.Target); err != nil {
			return err
		}
		// The attack sub-step is checked against the intermediate state,
		// after the move has landed. The combined attack is always melee.
		mid := gs.Clone()
		midActor := mid.UnitByID(actor.ID)
		midActor.Position = *a.Target
		target, err := attackTarget(mid, a)
		if err != nil {
			return err
		}
		if target.ID == actor.ID {
			return invalid(a, "cannot attack itself")
		}
		if Manhattan(midActor.Position, target.Position) > 1 {
			return invalid(a, "target not adjacent after move")
		}
		if target.Owner == actor.Owner {
			return invalid(a, "cannot attack a friendly unit")
		}
		return nil
	case ActionUseSkill:
		actor, err := actingUnit(gs, a)
		if err != nil {
			return err
		}
		return validateSkill(gs, a, actor)
	default:
		return invalid(a, "unknown action type")
	}
}

// actingUnit resolves and checks the actor for unit-targeted actions.
func actingUnit(gs *GameState, a Action) (*Unit, error) {
	if a.UnitID == "" {
		return nil, invalid(a, "missing unit id")
	}
	actor := gs.UnitByID(a.UnitID)
	if actor == nil {
		return nil, invalid(a, "no such unit: "+a.UnitID)
	}
	if actor.Owner != a.Player {
		return nil, invalid(a, "not your unit")
	}
	if !actor.Alive() {
		return nil, invalid(a, "unit is dead")
	}
	if !gs.CanAct(actor) {
		return nil, invalid(a, "unit has no actions left this round")
	}
	return actor, nil
}

func validateMove(gs *GameState, a Action, actor *Unit, dest *Position) error {
	if dest == nil {
		return invalid(a, "missing target position")
	}
	if !dest.OnBoard() {
		return invalid(a, "target off board")
	}
	dist := Manhattan(actor.Position, *dest)
	if dist == 0 {
		return invalid(a, "already at destination")
	}
	if dist > gs.EffectiveMoveRange(actor) {
		return invalid(a, "destination out of move range")
	}
	if gs.UnitAt(*dest) != nil {
		return invalid(a, "destination occupied by a unit")
	}
	if gs.ObstacleAt(*dest) != nil {
		return invalid(a, "destination blocked by an obstacle")
	}
	return nil
}

// attackTarget resolves the declared victim by id, falling back to the
// unit at the target position.
func attackTarget(gs *GameState, a Action) (*Unit, error) {
	if a.TargetUnitID != "" {
		t := gs.UnitByID(a.TargetUnitID)
		if t == nil {
			return nil, invalid(a, "no such target unit: "+a.TargetUnitID)
		}
		return t, nil
	}
	if a.Target == nil {
		return nil, invalid(a, "missing attack target")
	}
	if !a.Target.OnBoard() {
		return nil, invalid(a, "target off board")
	}
	t := gs.UnitAt(*a.Target)
	if t == nil {
		return nil, invalid(a, "no unit at target position")
	}
	return t, nil
}

func validateAttack(gs *GameState, a Action, actor, target *Unit) error {
	if target.Owner == actor.Owner {
		return invalid(a, "cannot attack a friendly unit")
	}
	if !target.Alive() {
		return invalid(a, "target is dead")
	}
	r := gs.EffectiveAttackRange(actor)
	if r <= 1 {
		// Melee reach is orthogonal.
		if Manhattan(actor.Position, target.Position) > r {
			return invalid(a, "target out of attack range")
		}
		return nil
	}
	// Ranged reach is king-move distance with line of sight.
	if Chebyshev(actor.Position, target.Position) > r {
		return invalid(a, "target out of attack range")
	}
	if lineBlocked(gs, actor.Position, target.Position) {
		return invalid(a, "line of sight blocked")
	}
	return nil
}

func validateSkill(gs *GameState, a Action, actor *Unit) error {
	if actor.Category != Hero {
		return invalid(a, "only heroes can use skills")
	}
	if actor.SelectedSkillID == "" {
		return invalid(a, "no skill selected")
	}
	if actor.SkillCooldown > 0 {
		return invalid(a, "skill on cooldown")
	}
	skill, ok := SkillByID(actor.SelectedSkillID)
	if !ok {
		return invalid(a, "unknown skill: "+actor.SelectedSkillID)
	}
	if skill.Validate != nil {
		return skill.Validate(gs, actor, a)
	}
	return nil
}

func validateDeathChoice(gs *GameState, a Action) error {
	if gs.PendingDeathChoice == nil {
		return invalid(a, "no death choice pending")
	}
	if gs.PendingDeathChoice.Owner != a.Player {
		return invalid(a, "not your death choice")
	}
	switch a.Choice {
	case SpawnObstacle, SpawnBuffTile:
		return nil
	default:
		return invalid(a, "invalid death choice")
	}
}

// lineBlocked walks the grid line between from and to (endpoints
// excluded) and reports whether an obstacle sits on it.
func lineBlocked(gs *GameState, from, to Position) bool {
	dx, dy := abs(to.X-from.X), abs(to.Y-from.Y)
	sx, sy := 1, 1
	if from.X > to.X {
		sx = -1
	}
	if from.Y > to.Y {
		sy = -1
	}
	x, y := from.X, from.Y
	errTerm := dx - dy
	for {
		e2 := 2 * errTerm
		if e2 > -dy {
			errTerm -= dy
			x += sx
		}
		if e2 < dx {
			errTerm += dx
			y += sy
		}
		if x == to.X && y == to.Y {
			return false
		}
		if gs.ObstacleAt(Position{X: x, Y: y}) != nil {
			return true
		}
	}
}
