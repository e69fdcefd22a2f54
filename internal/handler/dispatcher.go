package handler

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/internal/logger"
	"github.com/gridclash/api/internal/protocol"
	"github.com/gridclash/api/internal/registry"
	"github.com/gridclash/api/internal/service"
	"github.com/gridclash/api/pkg/tactics"
)

// Dispatcher routes inbound messages to the match service and fans the
// results back out. Every error path ends in a validation_error to the
// sender; nothing propagates to the transport.
type Dispatcher struct {
	hub     *Hub
	reg     *registry.Registry
	matches *service.MatchService
	setup   tactics.SetupFactory
}

// NewDispatcher creates a Dispatcher and installs itself as the match
// service's timeout sink.
func NewDispatcher(hub *Hub, reg *registry.Registry, matches *service.MatchService, setup tactics.SetupFactory) *Dispatcher {
	if setup == nil {
		setup = tactics.NewDefaultState
	}
	d := &Dispatcher{hub: hub, reg: reg, matches: matches, setup: setup}
	matches.SetTimeoutSink(d.HandleTimeout)
	return d
}

// HandleMessage processes one inbound frame from a connection.
func (d *Dispatcher) HandleMessage(c *Conn, raw []byte) {
	logger.LogRequest(log.With().Str("connId", c.ID()).Logger(), raw)

	env, err := protocol.Decode(raw)
	if err != nil {
		d.sendError(c, "malformed message", nil)
		return
	}

	switch env.Type {
	case protocol.TypeJoinMatch:
		var p protocol.JoinMatchPayload
		if err := protocol.DecodePayload(env, &p); err != nil {
			d.sendError(c, "malformed join_match payload", nil)
			return
		}
		d.handleJoin(c, p)
	case protocol.TypeAction:
		var p protocol.ActionPayload
		if err := protocol.DecodePayload(env, &p); err != nil {
			d.sendError(c, "malformed action payload", nil)
			return
		}
		d.handleAction(c, p)
	default:
		d.sendError(c, "unknown message type: "+env.Type, nil)
	}
}

func (d *Dispatcher) handleJoin(c *Conn, p protocol.JoinMatchPayload) {
	if p.MatchID == "" {
		d.sendError(c, "missing matchId", nil)
		return
	}
	if joined, _ := c.Slot(); joined != "" {
		d.sendError(c, "already joined a match", nil)
		return
	}

	state, exists := d.reg.State(p.MatchID)
	if !exists {
		// A mirror restore covers rejoining an in-flight match after a
		// server restart; it keeps the match off the draft clock.
		state, exists = d.reg.Restore(p.MatchID)
	}
	if !exists {
		state = d.setup(p.MatchID)
		if _, err := d.reg.Create(p.MatchID, state); err != nil {
			// Lost a create race; the match is there now.
			state, _ = d.reg.State(p.MatchID)
		}
		// The match waits for an opponent on the draft clock.
		d.matches.StartDraftTimer(p.MatchID)
	}

	player, err := d.hub.AssignSlot(p.MatchID, c)
	if err != nil {
		// "match full" or "slot reserved for another player".
		d.sendError(c, err.Error(), nil)
		return
	}

	d.sendTo(c, protocol.TypeMatchJoined, protocol.MatchJoinedPayload{
		MatchID:  p.MatchID,
		PlayerID: player,
		State:    state,
	})
	log.Info().Str("matchId", p.MatchID).Str("playerId", string(player)).Msg("Player joined match")

	if !d.hub.BothSeated(p.MatchID) {
		return
	}

	if d.hub.Started(p.MatchID) {
		// Rejoin of an in-progress match: catch the returner up without
		// touching the clocks.
		d.broadcast(p.MatchID, protocol.TypeStateUpdate, d.snapshotPayload(p.MatchID))
		return
	}

	d.startGame(p.MatchID)
}

func (d *Dispatcher) startGame(matchID string) {
	meta, current, err := d.matches.StartMatch(matchID)
	if err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to start match")
		return
	}
	d.hub.MarkStarted(matchID)

	d.broadcast(matchID, protocol.TypeGameReady, protocol.GameReadyPayload{Message: "both players connected"})
	d.sendTo(d.hub.SlotConn(matchID, current), protocol.TypeYourTurn, protocol.YourTurnPayload{
		UnitID:          string(current),
		ActionStartTime: meta.StartTime,
		TimeoutMs:       meta.TimeoutMs,
		TimerType:       meta.Type,
	})

	state, _ := d.reg.State(matchID)
	d.broadcast(matchID, protocol.TypeStateUpdate, protocol.StateUpdatePayload{
		State:           state,
		Timer:           meta,
		CurrentPlayerID: current,
	})
	log.Info().Str("matchId", matchID).Str("firstPlayer", string(current)).Msg("Match started")
}

func (d *Dispatcher) handleAction(c *Conn, p protocol.ActionPayload) {
	if p.MatchID == "" {
		d.sendError(c, "missing matchId", &p.Action)
		return
	}
	matchID, player := c.Slot()
	if matchID != p.MatchID {
		d.sendError(c, "not joined to this match", &p.Action)
		return
	}
	if p.PlayerID == "" {
		d.sendError(c, "missing playerId", &p.Action)
		return
	}
	if p.PlayerID != string(player) {
		d.sendError(c, "playerId does not match your slot", &p.Action)
		return
	}

	action, err := protocol.ToAction(p.Action, player)
	if err != nil {
		d.sendError(c, err.Error(), &p.Action)
		return
	}

	res, err := d.matches.ApplyActionWithTimer(p.MatchID, player, action)
	if err != nil {
		d.sendError(c, reasonOf(err), &p.Action)
		return
	}

	if res.GameOver {
		d.broadcast(p.MatchID, protocol.TypeGameOver, protocol.GameOverPayload{
			Winner: res.State.Winner,
			State:  res.State,
		})
		return
	}
	d.broadcast(p.MatchID, protocol.TypeStateUpdate, protocol.StateUpdatePayload{
		State:           res.State,
		Timer:           res.Timer,
		CurrentPlayerID: res.NextPlayer,
	})
}

// HandleTimeout is the match service's timeout sink; it turns the event
// into the appropriate broadcast.
func (d *Dispatcher) HandleTimeout(ev service.TimeoutEvent) {
	if ev.TimerType == service.TimerDraft {
		d.broadcast(ev.MatchID, protocol.TypeDraftTimeout, protocol.DraftTimeoutPayload{
			Message: "draft window expired",
		})
		return
	}

	d.broadcast(ev.MatchID, protocol.TypeTimeout, protocol.TimeoutPayload{
		TimerType:     ev.TimerType,
		PlayerID:      ev.Player,
		Penalty:       ev.Penalty,
		DefaultAction: ev.DefaultAction,
		State:         ev.State,
		NextTimer:     ev.NextTimer,
		NextPlayerID:  ev.NextPlayer,
	})

	if ev.GameOver {
		d.broadcast(ev.MatchID, protocol.TypeGameOver, protocol.GameOverPayload{
			Winner: ev.State.Winner,
			State:  ev.State,
		})
	}
}

// HandleDisconnect vacates the connection's slot and tells the
// remaining player. Game clocks keep running: disconnection does not
// pause game time.
func (d *Dispatcher) HandleDisconnect(c *Conn) {
	d.hub.Unregister(c)
	matchID, player, ok := d.hub.VacateSlot(c)
	if !ok {
		return
	}
	log.Info().Str("matchId", matchID).Str("playerId", string(player)).Msg("Player disconnected")

	d.broadcast(matchID, protocol.TypePlayerDisconnected, protocol.PlayerDisconnectedPayload{PlayerID: player})

	// A finished match with nobody left can be reclaimed; an unfinished
	// one stays for rejoin.
	if state, found := d.reg.State(matchID); found && state.GameOver {
		if d.hub.SlotConn(matchID, tactics.P1) == nil && d.hub.SlotConn(matchID, tactics.P2) == nil {
			d.matches.RemoveMatch(matchID)
		}
	}
}

func (d *Dispatcher) snapshotPayload(matchID string) protocol.StateUpdatePayload {
	state, _ := d.reg.State(matchID)
	p := protocol.StateUpdatePayload{State: state}
	if state != nil {
		p.CurrentPlayerID = state.CurrentPlayer
	}
	return p
}

func (d *Dispatcher) sendTo(c *Conn, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Msg("Failed to encode message")
		return
	}
	logger.LogResponse(log.With().Str("type", msgType).Logger(), data)
	d.hub.Send(c, data)
}

func (d *Dispatcher) broadcast(matchID, msgType string, payload any) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", msgType).Str("matchId", matchID).Msg("Failed to encode broadcast")
		return
	}
	d.hub.BroadcastToMatch(matchID, data)
}

func (d *Dispatcher) sendError(c *Conn, message string, action *protocol.ActionSpec) {
	d.sendTo(c, protocol.TypeValidationError, protocol.ValidationErrorPayload{
		Message: message,
		Action:  action,
	})
}

// reasonOf unwraps a rule-engine rejection to its bare reason; other
// errors surface their message as-is.
func reasonOf(err error) string {
	var ve *tactics.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	return err.Error()
}
