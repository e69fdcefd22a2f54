package tactics

// ActionType enumerates the player-originated state transitions.
type ActionType string

const (
	ActionMove          ActionType = "MOVE"
	ActionAttack        ActionType = "ATTACK"
	ActionMoveAndAttack ActionType = "MOVE_AND_ATTACK"
	ActionUseSkill      ActionType = "USE_SKILL"
	ActionDeathChoice   ActionType = "DEATH_CHOICE"
	ActionEndTurn       ActionType = "END_TURN"
)

// DeathSpawn is the owner's choice of what appears where a minion died.
type DeathSpawn string

const (
	SpawnObstacle DeathSpawn = "SPAWN_OBSTACLE"
	SpawnBuffTile DeathSpawn = "SPAWN_BUFF_TILE"
)

// Action is a player's request to transition the game state.
//
//   - MOVE: UnitID moves to Target.
//   - ATTACK: UnitID attacks TargetUnitID (or the unit at Target when the
//     id is omitted).
//   - MOVE_AND_ATTACK: UnitID moves to Target then attacks TargetUnitID
//     from there, atomically.
//   - USE_SKILL: UnitID fires its selected skill, optionally at Target or
//     TargetUnitID.
//   - DEATH_CHOICE: Player resolves the pending minion death with Choice.
//   - END_TURN: Player forfeits the rest of their units' actions this round.
type Action struct {
	Type         ActionType `json:"type"`
	Player       PlayerID   `json:"player"`
	UnitID       string     `json:"unitId,omitempty"`
	Target       *Position  `json:"target,omitempty"`
	TargetUnitID string     `json:"targetUnitId,omitempty"`
	Choice       DeathSpawn `json:"choice,omitempty"`
}
