package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gridclash/api/pkg/tactics"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrMissingType = errors.New("missing message type")
)

// Decode parses an inbound frame into its envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// Encode frames an outbound message.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}

// DecodePayload unmarshals the envelope payload into dst.
func DecodePayload(env *Envelope, dst any) error {
	if len(env.Payload) == 0 {
		return ErrMalformed
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return ErrMalformed
	}
	return nil
}

// ToAction converts a wire ActionSpec into an engine action for the
// given player, checking for missing parameters.
func ToAction(spec ActionSpec, player tactics.PlayerID) (tactics.Action, error) {
	a := tactics.Action{Player: player, UnitID: spec.UnitID, TargetUnitID: spec.TargetUnitID}

	if spec.Type == "" {
		return a, errors.New("missing action type")
	}
	a.Type = tactics.ActionType(spec.Type)

	var target *tactics.Position
	if spec.TargetX != nil && spec.TargetY != nil {
		target = &tactics.Position{X: *spec.TargetX, Y: *spec.TargetY}
	}
	a.Target = target

	switch a.Type {
	case tactics.ActionMove:
		if spec.UnitID == "" {
			return a, errors.New("missing unit id")
		}
		if target == nil {
			return a, errors.New("missing target position")
		}
	case tactics.ActionAttack:
		if spec.UnitID == "" {
			return a, errors.New("missing unit id")
		}
		if spec.TargetUnitID == "" && target == nil {
			return a, errors.New("missing attack target")
		}
	case tactics.ActionMoveAndAttack:
		if spec.UnitID == "" {
			return a, errors.New("missing unit id")
		}
		if target == nil {
			return a, errors.New("missing target position")
		}
		if spec.TargetUnitID == "" {
			return a, errors.New("missing target unit id")
		}
	case tactics.ActionUseSkill:
		if spec.UnitID == "" {
			return a, errors.New("missing unit id")
		}
	case tactics.ActionDeathChoice:
		switch tactics.DeathSpawn(spec.Choice) {
		case tactics.SpawnObstacle, tactics.SpawnBuffTile:
			a.Choice = tactics.DeathSpawn(spec.Choice)
		default:
			return a, errors.New("missing or invalid death choice")
		}
	case tactics.ActionEndTurn:
		// No parameters.
	default:
		return a, fmt.Errorf("unknown action type: %s", spec.Type)
	}
	return a, nil
}
