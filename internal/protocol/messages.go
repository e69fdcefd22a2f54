// Package protocol defines the wire JSON spoken over the websocket:
// one {"type","payload"} envelope per text frame.
package protocol

import (
	"encoding/json"

	"github.com/gridclash/api/internal/service"
	"github.com/gridclash/api/pkg/tactics"
)

// Inbound message kinds.
const (
	TypeJoinMatch = "join_match"
	TypeAction    = "action"
)

// Outbound message kinds.
const (
	TypeMatchJoined        = "match_joined"
	TypeGameReady          = "game_ready"
	TypeYourTurn           = "your_turn"
	TypeStateUpdate        = "state_update"
	TypeGameOver           = "game_over"
	TypeTimeout            = "timeout"
	TypeValidationError    = "validation_error"
	TypePlayerDisconnected = "player_disconnected"
	TypeDraftTimeout       = "draft_timeout"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// JoinMatchPayload asks to occupy a slot in a match.
type JoinMatchPayload struct {
	MatchID string `json:"matchId"`
}

// ActionSpec is the client-side description of an engine action. For
// MOVE the target coordinates are the destination; for MOVE_AND_ATTACK
// they are the intermediate square and targetUnitId names the victim.
type ActionSpec struct {
	Type         string `json:"type"`
	UnitID       string `json:"unitId,omitempty"`
	TargetX      *int   `json:"targetX,omitempty"`
	TargetY      *int   `json:"targetY,omitempty"`
	TargetUnitID string `json:"targetUnitId,omitempty"`
	Choice       string `json:"choice,omitempty"`
}

// ActionPayload submits an action for a match.
type ActionPayload struct {
	MatchID  string     `json:"matchId"`
	PlayerID string     `json:"playerId"`
	Action   ActionSpec `json:"action"`
}

// MatchJoinedPayload confirms slot assignment.
type MatchJoinedPayload struct {
	MatchID  string             `json:"matchId"`
	PlayerID tactics.PlayerID   `json:"playerId"`
	State    *tactics.GameState `json:"state"`
}

// GameReadyPayload announces that both slots are filled.
type GameReadyPayload struct {
	Message string `json:"message"`
}

// YourTurnPayload tells the player on the clock that their window is
// open. UnitID carries the slot label of the player to act.
type YourTurnPayload struct {
	UnitID          string            `json:"unitId"`
	ActionStartTime int64             `json:"actionStartTime"`
	TimeoutMs       int64             `json:"timeoutMs"`
	TimerType       service.TimerType `json:"timerType"`
}

// StateUpdatePayload fans out a fresh snapshot with timer metadata.
type StateUpdatePayload struct {
	State           *tactics.GameState `json:"state"`
	Timer           *service.TimerMeta `json:"timer,omitempty"`
	CurrentPlayerID tactics.PlayerID   `json:"currentPlayerId,omitempty"`
}

// GameOverPayload announces the final state. Winner is null for a draw.
type GameOverPayload struct {
	Winner *tactics.PlayerID  `json:"winner"`
	State  *tactics.GameState `json:"state"`
}

// TimeoutPayload reports an expired timer and its fallback effects.
type TimeoutPayload struct {
	TimerType     service.TimerType       `json:"timerType"`
	PlayerID      tactics.PlayerID        `json:"playerId"`
	Penalty       *service.TimeoutPenalty `json:"penalty,omitempty"`
	DefaultAction string                  `json:"defaultAction"`
	State         *tactics.GameState      `json:"state"`
	NextTimer     *service.TimerMeta      `json:"nextTimer,omitempty"`
	NextPlayerID  tactics.PlayerID        `json:"nextPlayerId,omitempty"`
}

// ValidationErrorPayload is returned to the offending sender only.
type ValidationErrorPayload struct {
	Message string      `json:"message"`
	Action  *ActionSpec `json:"action,omitempty"`
}

// PlayerDisconnectedPayload notifies the remaining slot.
type PlayerDisconnectedPayload struct {
	PlayerID tactics.PlayerID `json:"playerId"`
}

// DraftTimeoutPayload surfaces an expired draft window.
type DraftTimeoutPayload struct {
	Message string `json:"message"`
}
