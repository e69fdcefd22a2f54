// Package tactics implements the rule engine for a two-player tactical
// game on a 5x5 grid. The engine is pure: state transitions are computed
// by Apply, which never mutates its input, performs no I/O, and consults
// no clock. Everything above it (timers, transport) lives elsewhere.
package tactics

// PlayerID identifies one of the two match slots.
type PlayerID string

const (
	P1 PlayerID = "P1"
	P2 PlayerID = "P2"
)

// Opponent returns the other player.
func (p PlayerID) Opponent() PlayerID {
	if p == P1 {
		return P2
	}
	return P1
}

// Board dimensions are fixed at 5x5.
const (
	BoardWidth  = 5
	BoardHeight = 5
)

// Board describes the grid dimensions as surfaced to clients.
type Board struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position is a grid coordinate. Valid coordinates are 0..4 on each axis.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// OnBoard reports whether the position lies within the 5x5 grid.
func (p Position) OnBoard() bool {
	return p.X >= 0 && p.X < BoardWidth && p.Y >= 0 && p.Y < BoardHeight
}

// Manhattan returns the orthogonal grid distance between two positions.
func Manhattan(a, b Position) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Chebyshev returns the king-move distance between two positions.
func Chebyshev(a, b Position) int {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return dx
	}
	return dy
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// UnitCategory distinguishes heroes from minions.
type UnitCategory string

const (
	Hero   UnitCategory = "HERO"
	Minion UnitCategory = "MINION"
)

// MinionType is the minion archetype.
type MinionType string

const (
	Tank     MinionType = "TANK"
	Archer   MinionType = "ARCHER"
	Assassin MinionType = "ASSASSIN"
)

// Unit is a single piece on the board. Units are value types; the engine
// copies the whole unit list on every transition.
type Unit struct {
	ID          string       `json:"id"`
	Owner       PlayerID     `json:"owner"`
	Position    Position     `json:"position"`
	HP          int          `json:"hp"`
	MaxHP       int          `json:"maxHp"`
	Attack      int          `json:"attack"`
	MoveRange   int          `json:"moveRange"`
	AttackRange int          `json:"attackRange"`
	Category    UnitCategory `json:"category"`
	HeroClass   string       `json:"heroClass,omitempty"`
	MinionType  MinionType   `json:"minionType,omitempty"`

	SelectedSkillID string `json:"selectedSkillId,omitempty"`
	SkillCooldown   int    `json:"skillCooldown"`

	ActionsUsed int `json:"actionsUsed"`
	// GrantedActions is the per-round action allowance, latched when the
	// unit first acts in a round. A SPEED buff held at that moment grants
	// 2 actions for the whole round even if the buff expires mid-round.
	// Zero means not yet latched this round.
	GrantedActions int `json:"grantedActions,omitempty"`

	Preparing     bool    `json:"preparing,omitempty"`
	PendingAction *Action `json:"pendingAction,omitempty"`
}

// Alive reports whether the unit is still on the board.
func (u *Unit) Alive() bool { return u.HP > 0 }

// BuffType enumerates the buff catalogue.
type BuffType string

const (
	BuffPower    BuffType = "POWER"
	BuffLife     BuffType = "LIFE"
	BuffSpeed    BuffType = "SPEED"
	BuffWeakness BuffType = "WEAKNESS"
	BuffBleed    BuffType = "BLEED"
	BuffSlow     BuffType = "SLOW"
)

// BuffModifiers are additive stat adjustments carried by a buff instance.
type BuffModifiers struct {
	Attack      int `json:"atk"`
	HP          int `json:"hp"`
	MoveRange   int `json:"moveRange"`
	AttackRange int `json:"attackRange"`
}

// BuffInstance is one applied buff. Instances stack additively and age
// once per round end.
type BuffInstance struct {
	ID             string        `json:"id"`
	Type           BuffType      `json:"type"`
	DurationRounds int           `json:"durationRounds"`
	Modifiers      BuffModifiers `json:"modifiers"`
}

// BuffTile grants its buff to the first unit that ends a move on it.
type BuffTile struct {
	ID             string   `json:"id"`
	Position       Position `json:"position"`
	BuffType       BuffType `json:"buffType"`
	DurationRounds int      `json:"durationRounds"`
	Triggered      bool     `json:"triggered,omitempty"`
}

// Obstacle blocks movement and line of sight for ranged attacks.
type Obstacle struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
}

// DeathChoice records a minion death awaiting its owner's spawn decision.
// ResumePlayer is the player the turn driver had assigned before the
// death interrupted play; it becomes current again once the choice lands.
type DeathChoice struct {
	DeadUnitID   string   `json:"deadUnitId"`
	Owner        PlayerID `json:"owner"`
	Position     Position `json:"deathPosition"`
	ResumePlayer PlayerID `json:"resumePlayer,omitempty"`
}

// GameState is a complete immutable snapshot of a match. All transitions
// go through Apply, which returns a new snapshot.
type GameState struct {
	Board              Board                     `json:"board"`
	Units              []Unit                    `json:"units"`
	CurrentPlayer      PlayerID                  `json:"currentPlayer"`
	GameOver           bool                      `json:"gameOver"`
	Winner             *PlayerID                 `json:"winner,omitempty"`
	UnitBuffs          map[string][]BuffInstance `json:"unitBuffs"`
	BuffTiles          []BuffTile                `json:"buffTiles"`
	Obstacles          []Obstacle                `json:"obstacles"`
	CurrentRound       int                       `json:"currentRound"`
	PendingDeathChoice *DeathChoice              `json:"pendingDeathChoice,omitempty"`
}

// UnitByID returns the unit with the given id, or nil.
func (gs *GameState) UnitByID(id string) *Unit {
	for i := range gs.Units {
		if gs.Units[i].ID == id {
			return &gs.Units[i]
		}
	}
	return nil
}

// UnitAt returns the live unit at the given position, or nil.
func (gs *GameState) UnitAt(pos Position) *Unit {
	for i := range gs.Units {
		if gs.Units[i].Position == pos && gs.Units[i].Alive() {
			return &gs.Units[i]
		}
	}
	return nil
}

// UnitsOf returns all live units belonging to the given player.
func (gs *GameState) UnitsOf(player PlayerID) []*Unit {
	var units []*Unit
	for i := range gs.Units {
		if gs.Units[i].Owner == player && gs.Units[i].Alive() {
			units = append(units, &gs.Units[i])
		}
	}
	return units
}

// HeroOf returns the player's hero, dead or alive, or nil if removed.
func (gs *GameState) HeroOf(player PlayerID) *Unit {
	for i := range gs.Units {
		if gs.Units[i].Owner == player && gs.Units[i].Category == Hero {
			return &gs.Units[i]
		}
	}
	return nil
}

// ObstacleAt returns the obstacle at the given position, or nil.
func (gs *GameState) ObstacleAt(pos Position) *Obstacle {
	for i := range gs.Obstacles {
		if gs.Obstacles[i].Position == pos {
			return &gs.Obstacles[i]
		}
	}
	return nil
}

// BuffTileAt returns the active (untriggered) buff tile at pos, or nil.
func (gs *GameState) BuffTileAt(pos Position) *BuffTile {
	for i := range gs.BuffTiles {
		if gs.BuffTiles[i].Position == pos && !gs.BuffTiles[i].Triggered {
			return &gs.BuffTiles[i]
		}
	}
	return nil
}

// HasBuff reports whether the unit carries an active buff of the given type.
func (gs *GameState) HasBuff(unitID string, t BuffType) bool {
	for _, b := range gs.UnitBuffs[unitID] {
		if b.Type == t {
			return true
		}
	}
	return false
}

// EffectiveAttack is the unit's attack after buff modifiers, floored at 0.
func (gs *GameState) EffectiveAttack(u *Unit) int {
	atk := u.Attack
	for _, b := range gs.UnitBuffs[u.ID] {
		atk += b.Modifiers.Attack
	}
	if atk < 0 {
		return 0
	}
	return atk
}

// EffectiveMoveRange is the unit's move range after buff modifiers.
func (gs *GameState) EffectiveMoveRange(u *Unit) int {
	r := u.MoveRange
	for _, b := range gs.UnitBuffs[u.ID] {
		r += b.Modifiers.MoveRange
	}
	if r < 0 {
		return 0
	}
	return r
}

// EffectiveAttackRange is the unit's attack range after buff modifiers.
func (gs *GameState) EffectiveAttackRange(u *Unit) int {
	r := u.AttackRange
	for _, b := range gs.UnitBuffs[u.ID] {
		r += b.Modifiers.AttackRange
	}
	if r < 1 {
		return 1
	}
	return r
}

// allowance returns how many actions the unit may take this round. Once
// latched (GrantedActions set by its first action) the latch wins; before
// that it is derived from the buffs currently held.
func (gs *GameState) allowance(u *Unit) int {
	if u.GrantedActions > 0 {
		return u.GrantedActions
	}
	if gs.HasBuff(u.ID, BuffSpeed) {
		return 2
	}
	return 1
}

// CanAct reports whether the unit has actions left this round.
func (gs *GameState) CanAct(u *Unit) bool {
	return u.Alive() && u.ActionsUsed < gs.allowance(u)
}

// PlayerCanAct reports whether any of the player's units can still act.
func (gs *GameState) PlayerCanAct(player PlayerID) bool {
	for i := range gs.Units {
		u := &gs.Units[i]
		if u.Owner == player && gs.CanAct(u) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the state. Apply works on a clone so the
// previous snapshot is never observably changed.
func (gs *GameState) Clone() *GameState {
	c := &GameState{
		Board:         gs.Board,
		CurrentPlayer: gs.CurrentPlayer,
		GameOver:      gs.GameOver,
		CurrentRound:  gs.CurrentRound,
	}
	if gs.Winner != nil {
		w := *gs.Winner
		c.Winner = &w
	}
	if gs.Units != nil {
		c.Units = make([]Unit, len(gs.Units))
		copy(c.Units, gs.Units)
		for i := range c.Units {
			if c.Units[i].PendingAction != nil {
				pa := *c.Units[i].PendingAction
				c.Units[i].PendingAction = &pa
			}
		}
	}
	c.UnitBuffs = make(map[string][]BuffInstance, len(gs.UnitBuffs))
	for id, buffs := range gs.UnitBuffs {
		cp := make([]BuffInstance, len(buffs))
		copy(cp, buffs)
		c.UnitBuffs[id] = cp
	}
	if gs.BuffTiles != nil {
		c.BuffTiles = make([]BuffTile, len(gs.BuffTiles))
		copy(c.BuffTiles, gs.BuffTiles)
	}
	if gs.Obstacles != nil {
		c.Obstacles = make([]Obstacle, len(gs.Obstacles))
		copy(c.Obstacles, gs.Obstacles)
	}
	if gs.PendingDeathChoice != nil {
		dc := *gs.PendingDeathChoice
		c.PendingDeathChoice = &dc
	}
	return c
}
