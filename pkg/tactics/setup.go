package tactics

import "fmt"

// SetupFactory produces the initial state for a new match. The draft
// sub-phase lives outside the engine; a server that runs a real draft
// injects its own factory.
type SetupFactory func(matchID string) *GameState

// Archetype base statistics.
const (
	heroHP, heroAttack             = 5, 1
	tankHP, tankAttack             = 5, 1
	archerHP, archerAttack         = 3, 1
	assassinHP, assassinAttack     = 2, 2
	archerRange                    = 3
	assassinMove                   = 4
	defaultMoveRange, defaultReach = 1, 1
)

// NewHero builds a hero unit with the standard statistics.
func NewHero(id string, owner PlayerID, pos Position, class, skillID string) Unit {
	return Unit{
		ID:              id,
		Owner:           owner,
		Position:        pos,
		HP:              heroHP,
		MaxHP:           heroHP,
		Attack:          heroAttack,
		MoveRange:       defaultMoveRange,
		AttackRange:     defaultReach,
		Category:        Hero,
		HeroClass:       class,
		SelectedSkillID: skillID,
	}
}

// NewMinion builds a minion of the given archetype.
func NewMinion(id string, owner PlayerID, pos Position, t MinionType) Unit {
	u := Unit{
		ID:          id,
		Owner:       owner,
		Position:    pos,
		Category:    Minion,
		MinionType:  t,
		MoveRange:   defaultMoveRange,
		AttackRange: defaultReach,
	}
	switch t {
	case Tank:
		u.HP, u.MaxHP, u.Attack = tankHP, tankHP, tankAttack
	case Archer:
		u.HP, u.MaxHP, u.Attack = archerHP, archerHP, archerAttack
		u.AttackRange = archerRange
	case Assassin:
		u.HP, u.MaxHP, u.Attack = assassinHP, assassinHP, assassinAttack
		u.MoveRange = assassinMove
	}
	return u
}

// NewDefaultState is the built-in setup factory: each side fields a hero
// flanked by a tank, an archer, and an assassin, mirrored across the
// board, with P1 to act in round 1.
func NewDefaultState(matchID string) *GameState {
	units := []Unit{
		NewHero(unitID(matchID, P1, "hero"), P1, Position{X: 2, Y: 0}, "vanguard", "power_strike"),
		NewMinion(unitID(matchID, P1, "tank"), P1, Position{X: 1, Y: 0}, Tank),
		NewMinion(unitID(matchID, P1, "archer"), P1, Position{X: 3, Y: 0}, Archer),
		NewMinion(unitID(matchID, P1, "assassin"), P1, Position{X: 0, Y: 0}, Assassin),

		NewHero(unitID(matchID, P2, "hero"), P2, Position{X: 2, Y: 4}, "vanguard", "power_strike"),
		NewMinion(unitID(matchID, P2, "tank"), P2, Position{X: 3, Y: 4}, Tank),
		NewMinion(unitID(matchID, P2, "archer"), P2, Position{X: 1, Y: 4}, Archer),
		NewMinion(unitID(matchID, P2, "assassin"), P2, Position{X: 4, Y: 4}, Assassin),
	}
	return &GameState{
		Board:         Board{Width: BoardWidth, Height: BoardHeight},
		Units:         units,
		CurrentPlayer: P1,
		UnitBuffs:     make(map[string][]BuffInstance),
		CurrentRound:  1,
	}
}

func unitID(matchID string, owner PlayerID, role string) string {
	return fmt.Sprintf("%s-%s-%s", matchID, owner, role)
}
