package tactics

// Skill is a hero ability: a pure effect on the state, gated by a
// per-hero cooldown. The catalogue is a fixed registry keyed by id.
type Skill struct {
	ID       string
	Name     string
	Cooldown int
	// Validate checks skill-specific targeting; nil means self-targeted.
	Validate func(gs *GameState, actor *Unit, a Action) error
	Effect   func(gs *GameState, actor *Unit, a Action)
}

// DefaultSkillCooldown applies to every skill in the standard catalogue.
const DefaultSkillCooldown = 2

var skillRegistry = map[string]Skill{
	"power_strike": {
		ID:       "power_strike",
		Name:     "Power Strike",
		Cooldown: DefaultSkillCooldown,
		Effect: func(gs *GameState, actor *Unit, _ Action) {
			grantBuff(gs, actor, BuffPower)
		},
	},
	"guard_stance": {
		ID:       "guard_stance",
		Name:     "Guard Stance",
		Cooldown: DefaultSkillCooldown,
		Effect: func(gs *GameState, actor *Unit, _ Action) {
			grantBuff(gs, actor, BuffLife)
		},
	},
	"swift_steps": {
		ID:       "swift_steps",
		Name:     "Swift Steps",
		Cooldown: DefaultSkillCooldown,
		Effect: func(gs *GameState, actor *Unit, _ Action) {
			grantBuff(gs, actor, BuffSpeed)
		},
	},
	"shockwave": {
		ID:       "shockwave",
		Name:     "Shockwave",
		Cooldown: DefaultSkillCooldown,
		Effect: func(gs *GameState, actor *Unit, _ Action) {
			// 1 damage to every adjacent enemy. Collect first: dealing
			// damage mutates the unit list.
			var ids []string
			for i := range gs.Units {
				u := &gs.Units[i]
				if u.Owner != actor.Owner && u.Alive() &&
					Manhattan(u.Position, actor.Position) == 1 {
					ids = append(ids, u.ID)
				}
			}
			for _, id := range ids {
				if u := gs.UnitByID(id); u != nil {
					dealDamage(gs, u, 1, causeAction)
				}
			}
		},
	},
	"crippling_shot": {
		ID:       "crippling_shot",
		Name:     "Crippling Shot",
		Cooldown: DefaultSkillCooldown,
		Validate: validateEnemyInRange,
		Effect: func(gs *GameState, actor *Unit, a Action) {
			if t := resolveTarget(gs, a); t != nil {
				grantBuff(gs, t, BuffWeakness)
			}
		},
	},
	"hamstring": {
		ID:       "hamstring",
		Name:     "Hamstring",
		Cooldown: DefaultSkillCooldown,
		Validate: validateEnemyInRange,
		Effect: func(gs *GameState, actor *Unit, a Action) {
			if t := resolveTarget(gs, a); t != nil {
				grantBuff(gs, t, BuffSlow)
			}
		},
	},
}

// SkillByID looks up a skill in the catalogue.
func SkillByID(id string) (Skill, bool) {
	s, ok := skillRegistry[id]
	return s, ok
}

// SkillIDs returns the ids of every registered skill.
func SkillIDs() []string {
	ids := make([]string, 0, len(skillRegistry))
	for id := range skillRegistry {
		ids = append(ids, id)
	}
	return ids
}

// validateEnemyInRange gates targeted skills on a live enemy within the
// hero's attack reach.
func validateEnemyInRange(gs *GameState, actor *Unit, a Action) error {
	target, err := attackTarget(gs, a)
	if err != nil {
		return err
	}
	return validateAttack(gs, a, actor, target)
}
