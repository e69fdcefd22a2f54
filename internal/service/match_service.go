package service

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/internal/registry"
	"github.com/gridclash/api/pkg/tactics"
)

var (
	ErrMatchNotFound        = errors.New("match not found")
	ErrDeathChoiceInFlight  = errors.New("death choice pending")
	ErrActionTimedOut       = errors.New("action timeout already processed")
	ErrDeathChoiceTimedOut  = errors.New("death choice timeout already processed")
	ErrTimerNotActive       = errors.New("timer not active")
	ErrNoDeathChoicePending = errors.New("no death choice pending")
)

// TimerMeta describes the timer a client should display next.
type TimerMeta struct {
	StartTime int64     `json:"actionStartTime"`
	TimeoutMs int64     `json:"timeoutMs"`
	Type      TimerType `json:"timerType"`
}

// ActionResult is the outcome of a successfully applied action.
type ActionResult struct {
	State      *tactics.GameState
	NextPlayer tactics.PlayerID
	Timer      *TimerMeta // nil when the game ended
	GameOver   bool
}

// TimeoutPenalty describes the cost applied on an expired timer.
type TimeoutPenalty struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
}

// TimeoutEvent is handed to the dispatcher when a timer fires, carrying
// everything it needs to broadcast.
type TimeoutEvent struct {
	MatchID       string
	TimerType     TimerType
	Player        tactics.PlayerID
	Penalty       *TimeoutPenalty
	DefaultAction string
	State         *tactics.GameState
	NextTimer     *TimerMeta
	NextPlayer    tactics.PlayerID
	GameOver      bool
}

// TimeoutSink receives timeout events for broadcasting.
type TimeoutSink func(ev TimeoutEvent)

// MatchService serialises every mutating operation per match (player
// actions and timer firings compete for the same per-match lock) and
// keeps the timers honest around each applied action.
type MatchService struct {
	registry  *registry.Registry
	timers    *TimerService
	onTimeout TimeoutSink

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMatchService creates a MatchService. The sink may be nil until
// SetTimeoutSink wires the dispatcher in.
func NewMatchService(reg *registry.Registry, timers *TimerService) *MatchService {
	return &MatchService{
		registry: reg,
		timers:   timers,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetTimeoutSink installs the broadcast hook for timeout events.
func (s *MatchService) SetTimeoutSink(sink TimeoutSink) {
	s.onTimeout = sink
}

func (s *MatchService) matchLock(matchID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[matchID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[matchID] = l
	}
	return l
}

// StartMatch arms the first ACTION timer and returns its metadata plus
// the player on the clock.
func (s *MatchService) StartMatch(matchID string) (*TimerMeta, tactics.PlayerID, error) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	state, ok := s.registry.State(matchID)
	if !ok {
		return nil, "", ErrMatchNotFound
	}
	s.timers.CancelTimer(matchID, TimerDraft)
	start := s.timers.StartActionTimer(matchID, s.HandleTimeout)
	meta := &TimerMeta{StartTime: start, TimeoutMs: s.timers.GetTimeoutMs(matchID, TimerAction), Type: TimerAction}
	return meta, state.CurrentPlayer, nil
}

// StartDraftTimer arms the DRAFT timer for a match waiting on its
// second player.
func (s *MatchService) StartDraftTimer(matchID string) int64 {
	return s.timers.StartDraftTimer(matchID, s.HandleTimeout)
}

// TimerState reports the state of the match's ACTION timer.
func (s *MatchService) TimerState(matchID string) (TimerState, bool) {
	return s.timers.GetTimerState(matchID, TimerAction)
}

// RemoveMatch drops the match and every timer attached to it.
func (s *MatchService) RemoveMatch(matchID string) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	s.timers.CancelAllTimers(matchID)
	s.registry.Remove(matchID)

	s.mu.Lock()
	delete(s.locks, matchID)
	s.mu.Unlock()
}

// ApplyActionWithTimer validates the timer gates, applies the action
// through the rule engine, updates the registry, and rotates the timers.
// Invalid actions never touch a timer, so bad input cannot stretch a
// player's clock.
func (s *MatchService) ApplyActionWithTimer(matchID string, player tactics.PlayerID, action tactics.Action) (*ActionResult, error) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	state, ok := s.registry.State(matchID)
	if !ok {
		return nil, ErrMatchNotFound
	}
	action.Player = player

	if action.Type == tactics.ActionDeathChoice {
		return s.applyDeathChoice(matchID, state, action)
	}

	if st, _ := s.timers.GetTimerState(matchID, TimerDeathChoice); st == TimerRunning {
		return nil, ErrDeathChoiceInFlight
	}
	if st, exists := s.timers.GetTimerState(matchID, TimerAction); exists {
		if st == TimerTimeout {
			return nil, ErrActionTimedOut
		}
		if st != TimerRunning && st != TimerPaused && !s.timers.IsWithinGracePeriod(matchID, TimerAction) {
			return nil, ErrTimerNotActive
		}
	}
	// No record at all is tolerated: the first action can arrive before
	// the driver has armed a timer.

	next, err := tactics.Apply(state, action)
	if err != nil {
		return nil, err
	}
	if err := s.registry.UpdateState(matchID, next); err != nil {
		return nil, err
	}

	return s.rotateTimers(matchID, next), nil
}

// rotateTimers applies the post-action timer policy and builds the result.
func (s *MatchService) rotateTimers(matchID string, next *tactics.GameState) *ActionResult {
	if next.GameOver {
		s.timers.CancelAllTimers(matchID)
		return &ActionResult{State: next, GameOver: true}
	}

	if dc := next.PendingDeathChoice; dc != nil {
		// The interrupted player's clock is paused, not completed; the
		// owner gets a short window to choose.
		s.timers.PauseActionTimer(matchID)
		start := s.timers.StartDeathChoiceTimer(matchID, s.HandleTimeout)
		return &ActionResult{
			State:      next,
			NextPlayer: dc.Owner,
			Timer: &TimerMeta{
				StartTime: start,
				TimeoutMs: s.timers.GetTimeoutMs(matchID, TimerDeathChoice),
				Type:      TimerDeathChoice,
			},
		}
	}

	s.timers.CompleteTimer(matchID, TimerAction)
	start := s.timers.StartActionTimer(matchID, s.HandleTimeout)
	return &ActionResult{
		State:      next,
		NextPlayer: next.CurrentPlayer,
		Timer: &TimerMeta{
			StartTime: start,
			TimeoutMs: s.timers.GetTimeoutMs(matchID, TimerAction),
			Type:      TimerAction,
		},
	}
}

func (s *MatchService) applyDeathChoice(matchID string, state *tactics.GameState, action tactics.Action) (*ActionResult, error) {
	if state.PendingDeathChoice == nil {
		return nil, ErrNoDeathChoicePending
	}
	if st, _ := s.timers.GetTimerState(matchID, TimerDeathChoice); st == TimerTimeout {
		return nil, ErrDeathChoiceTimedOut
	}

	next, err := tactics.Apply(state, action)
	if err != nil {
		return nil, err
	}
	if err := s.registry.UpdateState(matchID, next); err != nil {
		return nil, err
	}

	s.timers.CompleteTimer(matchID, TimerDeathChoice)

	if next.GameOver {
		s.timers.CancelAllTimers(matchID)
		return &ActionResult{State: next, GameOver: true}, nil
	}

	// The interrupted ACTION timer restarts with a full window, never
	// the paused remainder.
	start := s.timers.ResumeActionTimer(matchID, true)
	if start < 0 {
		start = s.timers.StartActionTimer(matchID, s.HandleTimeout)
	}
	return &ActionResult{
		State:      next,
		NextPlayer: next.CurrentPlayer,
		Timer: &TimerMeta{
			StartTime: start,
			TimeoutMs: s.timers.GetTimeoutMs(matchID, TimerAction),
			Type:      TimerAction,
		},
	}, nil
}

// HandleTimeout is the TimerService callback. It applies the fallback
// action for the expired window under the match lock and reports the
// outcome through the timeout sink.
func (s *MatchService) HandleTimeout(matchID string, typ TimerType) {
	lock := s.matchLock(matchID)
	lock.Lock()
	defer lock.Unlock()

	// A racing action may have beaten this firing to the match lock and
	// replaced the record; only a record still in TIMEOUT is ours to act on.
	if st, _ := s.timers.GetTimerState(matchID, typ); st != TimerTimeout {
		return
	}
	state, ok := s.registry.State(matchID)
	if !ok || state.GameOver {
		return
	}

	switch typ {
	case TimerAction:
		s.handleActionTimeout(matchID, state)
	case TimerDeathChoice:
		s.handleDeathChoiceTimeout(matchID, state)
	case TimerDraft:
		s.emit(TimeoutEvent{MatchID: matchID, TimerType: TimerDraft, State: state})
	}
}

// handleActionTimeout applies the hero HP penalty and an automatic
// END_TURN for the player who let the clock expire.
func (s *MatchService) handleActionTimeout(matchID string, state *tactics.GameState) {
	player := state.CurrentPlayer
	penalty := &TimeoutPenalty{Kind: "HERO_HP_LOSS", Amount: 1}

	next := tactics.ApplyTimeoutPenalty(state, player)
	if !next.GameOver {
		after, err := tactics.Apply(next, tactics.Action{Type: tactics.ActionEndTurn, Player: player})
		if err != nil {
			log.Error().Err(err).Str("matchId", matchID).Msg("Auto end-turn failed after action timeout")
		} else {
			next = after
		}
	}
	if err := s.registry.UpdateState(matchID, next); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to store timeout state")
		return
	}

	ev := TimeoutEvent{
		MatchID:       matchID,
		TimerType:     TimerAction,
		Player:        player,
		Penalty:       penalty,
		DefaultAction: string(tactics.ActionEndTurn),
		State:         next,
	}
	s.finishTimeout(matchID, next, &ev)
}

// handleDeathChoiceTimeout applies the default obstacle spawn for the
// owner; no HP penalty.
func (s *MatchService) handleDeathChoiceTimeout(matchID string, state *tactics.GameState) {
	dc := state.PendingDeathChoice
	if dc == nil {
		return
	}
	next, err := tactics.Apply(state, tactics.Action{
		Type:   tactics.ActionDeathChoice,
		Player: dc.Owner,
		Choice: tactics.SpawnObstacle,
	})
	if err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Default death choice failed after timeout")
		return
	}
	if err := s.registry.UpdateState(matchID, next); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to store timeout state")
		return
	}

	ev := TimeoutEvent{
		MatchID:       matchID,
		TimerType:     TimerDeathChoice,
		Player:        dc.Owner,
		DefaultAction: string(tactics.SpawnObstacle),
		State:         next,
	}
	s.finishTimeout(matchID, next, &ev)
}

// finishTimeout rotates timers for the post-timeout state and emits the
// event. Timeout chains that surface a new death choice get a
// DEATH_CHOICE timer just like a normal action would.
func (s *MatchService) finishTimeout(matchID string, next *tactics.GameState, ev *TimeoutEvent) {
	if next.GameOver {
		s.timers.CancelAllTimers(matchID)
		ev.GameOver = true
		s.emit(*ev)
		return
	}

	if dc := next.PendingDeathChoice; dc != nil {
		start := s.timers.StartDeathChoiceTimer(matchID, s.HandleTimeout)
		ev.NextPlayer = dc.Owner
		ev.NextTimer = &TimerMeta{
			StartTime: start,
			TimeoutMs: s.timers.GetTimeoutMs(matchID, TimerDeathChoice),
			Type:      TimerDeathChoice,
		}
		s.emit(*ev)
		return
	}

	start := s.timers.StartActionTimer(matchID, s.HandleTimeout)
	ev.NextPlayer = next.CurrentPlayer
	ev.NextTimer = &TimerMeta{
		StartTime: start,
		TimeoutMs: s.timers.GetTimeoutMs(matchID, TimerAction),
		Type:      TimerAction,
	}
	s.emit(*ev)
}

func (s *MatchService) emit(ev TimeoutEvent) {
	if s.onTimeout != nil {
		s.onTimeout(ev)
	}
}
