// Package service contains the timer engine and the match service that
// glues timers, the rule engine, and the registry together.
package service

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// TimerType names the three per-match decision windows.
type TimerType string

const (
	TimerAction      TimerType = "ACTION"
	TimerDeathChoice TimerType = "DEATH_CHOICE"
	TimerDraft       TimerType = "DRAFT"
)

// TimerState is the lifecycle of one timer record.
type TimerState string

const (
	TimerRunning   TimerState = "RUNNING"
	TimerPaused    TimerState = "PAUSED"
	TimerCompleted TimerState = "COMPLETED"
	TimerTimeout   TimerState = "TIMEOUT"
)

// Standard decision windows in milliseconds.
const (
	ActionTimeoutMs      int64 = 10_000
	DeathChoiceTimeoutMs int64 = 5_000
	DraftTimeoutMs       int64 = 60_000
	// GracePeriodMs is the window after nominal expiry during which a
	// late action is still accepted, absorbing one-way network latency.
	GracePeriodMs int64 = 500
)

// Clock supplies the current time in milliseconds. Tests inject a
// deterministic counter.
type Clock func() int64

// SystemClock reads the wall clock in milliseconds.
func SystemClock() int64 { return time.Now().UnixMilli() }

// Scheduler arranges for fn to run after delay and returns a cancel
// func. Tests inject a scheduler that only fires on explicit request.
type Scheduler func(delay time.Duration, fn func()) (cancel func())

// AfterFuncScheduler schedules on the runtime timer heap.
func AfterFuncScheduler(delay time.Duration, fn func()) func() {
	t := time.AfterFunc(delay, fn)
	return func() { t.Stop() }
}

// TimeoutCallback is invoked exactly once when a timer fires past grace.
type TimeoutCallback func(matchID string, timerType TimerType)

// TimerDurations are the configured windows for one service instance.
type TimerDurations struct {
	ActionMs      int64
	DeathChoiceMs int64
	DraftMs       int64
	GraceMs       int64
}

// DefaultDurations returns the standard windows.
func DefaultDurations() TimerDurations {
	return TimerDurations{
		ActionMs:      ActionTimeoutMs,
		DeathChoiceMs: DeathChoiceTimeoutMs,
		DraftMs:       DraftTimeoutMs,
		GraceMs:       GracePeriodMs,
	}
}

type timerKey struct {
	matchID string
	typ     TimerType
}

type timerRecord struct {
	state             TimerState
	startTime         int64
	timeoutMs         int64
	pausedRemainingMs int64
	callback          TimeoutCallback
	seq               uint64
	cancelFire        func()
}

// TimerService owns every per-(match, type) timer record. All
// transitions are total: an illegal transition returns a sentinel value
// and leaves the record untouched.
type TimerService struct {
	mu        sync.Mutex
	clock     Clock
	schedule  Scheduler
	durations TimerDurations
	timers    map[timerKey]*timerRecord
	seq       uint64
}

// NewTimerService creates a TimerService. A nil clock or scheduler
// falls back to the system clock and runtime timers.
func NewTimerService(clock Clock, schedule Scheduler, durations TimerDurations) *TimerService {
	if clock == nil {
		clock = SystemClock
	}
	if schedule == nil {
		schedule = AfterFuncScheduler
	}
	return &TimerService{
		clock:     clock,
		schedule:  schedule,
		durations: durations,
		timers:    make(map[timerKey]*timerRecord),
	}
}

func (s *TimerService) timeoutFor(typ TimerType) int64 {
	switch typ {
	case TimerDeathChoice:
		return s.durations.DeathChoiceMs
	case TimerDraft:
		return s.durations.DraftMs
	default:
		return s.durations.ActionMs
	}
}

// StartActionTimer starts (or restarts) the ACTION timer for a match and
// returns its start timestamp.
func (s *TimerService) StartActionTimer(matchID string, cb TimeoutCallback) int64 {
	return s.start(matchID, TimerAction, s.durations.ActionMs, cb)
}

// StartDeathChoiceTimer starts the DEATH_CHOICE timer for a match.
func (s *TimerService) StartDeathChoiceTimer(matchID string, cb TimeoutCallback) int64 {
	return s.start(matchID, TimerDeathChoice, s.durations.DeathChoiceMs, cb)
}

// StartDraftTimer starts the DRAFT timer for a match.
func (s *TimerService) StartDraftTimer(matchID string, cb TimeoutCallback) int64 {
	return s.start(matchID, TimerDraft, s.durations.DraftMs, cb)
}

func (s *TimerService) start(matchID string, typ TimerType, timeoutMs int64, cb TimeoutCallback) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{matchID, typ}
	if old, ok := s.timers[key]; ok && old.cancelFire != nil {
		old.cancelFire()
	}

	s.seq++
	rec := &timerRecord{
		state:     TimerRunning,
		startTime: s.clock(),
		timeoutMs: timeoutMs,
		callback:  cb,
		seq:       s.seq,
	}
	s.timers[key] = rec
	s.scheduleFireLocked(key, rec)
	return rec.startTime
}

// scheduleFireLocked arms the timeout to fire after the grace period.
// The sequence number guards against a stale fire hitting a replacement
// record.
func (s *TimerService) scheduleFireLocked(key timerKey, rec *timerRecord) {
	seq := rec.seq
	delay := time.Duration(rec.timeoutMs+s.durations.GraceMs) * time.Millisecond
	rec.cancelFire = s.schedule(delay, func() {
		s.fire(key, seq)
	})
}

func (s *TimerService) fire(key timerKey, seq uint64) {
	s.mu.Lock()
	rec, ok := s.timers[key]
	if !ok || rec.seq != seq || rec.state != TimerRunning {
		s.mu.Unlock()
		return
	}
	rec.state = TimerTimeout
	cb := rec.callback
	s.mu.Unlock()

	if cb != nil {
		log.Debug().Str("matchId", key.matchID).Str("timerType", string(key.typ)).Msg("Timer fired")
		cb(key.matchID, key.typ)
	}
}

// PauseActionTimer moves a RUNNING action timer to PAUSED, capturing the
// remaining window. Returns the remaining milliseconds, or -1 if the
// timer was not running.
func (s *TimerService) PauseActionTimer(matchID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.timers[timerKey{matchID, TimerAction}]
	if !ok || rec.state != TimerRunning {
		return -1
	}
	remaining := rec.startTime + rec.timeoutMs - s.clock()
	if remaining < 0 {
		remaining = 0
	}
	rec.state = TimerPaused
	rec.pausedRemainingMs = remaining
	if rec.cancelFire != nil {
		rec.cancelFire()
		rec.cancelFire = nil
	}
	return remaining
}

// ResumeActionTimer moves a PAUSED action timer back to RUNNING. With
// reset true the timer gets a fresh full window; otherwise it resumes
// with the captured remainder. Returns the new start timestamp, or -1
// if the timer was not paused.
func (s *TimerService) ResumeActionTimer(matchID string, reset bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{matchID, TimerAction}
	rec, ok := s.timers[key]
	if !ok || rec.state != TimerPaused {
		return -1
	}
	rec.state = TimerRunning
	rec.startTime = s.clock()
	if reset {
		rec.timeoutMs = s.durations.ActionMs
	} else {
		rec.timeoutMs = rec.pausedRemainingMs
	}
	rec.pausedRemainingMs = 0
	s.seq++
	rec.seq = s.seq
	s.scheduleFireLocked(key, rec)
	return rec.startTime
}

// CompleteTimer moves a RUNNING timer to COMPLETED and disarms its
// firing. Returns true only for the RUNNING->COMPLETED transition; any
// other state is left untouched.
func (s *TimerService) CompleteTimer(matchID string, typ TimerType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.timers[timerKey{matchID, typ}]
	if !ok || rec.state != TimerRunning {
		return false
	}
	rec.state = TimerCompleted
	if rec.cancelFire != nil {
		rec.cancelFire()
		rec.cancelFire = nil
	}
	return true
}

// CancelTimer drops the record entirely. Cancelling an absent record is
// a no-op; a cancelled timer reliably never fires.
func (s *TimerService) CancelTimer(matchID string, typ TimerType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := timerKey{matchID, typ}
	rec, ok := s.timers[key]
	if !ok {
		return
	}
	if rec.cancelFire != nil {
		rec.cancelFire()
	}
	delete(s.timers, key)
}

// CancelAllTimers drops every timer for a match.
func (s *TimerService) CancelAllTimers(matchID string) {
	s.CancelTimer(matchID, TimerAction)
	s.CancelTimer(matchID, TimerDeathChoice)
	s.CancelTimer(matchID, TimerDraft)
}

// GetRemainingTime returns the milliseconds left on a timer: the live
// remainder when RUNNING, the captured remainder when PAUSED, and -1
// otherwise (including absent records).
func (s *TimerService) GetRemainingTime(matchID string, typ TimerType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.timers[timerKey{matchID, typ}]
	if !ok {
		return -1
	}
	switch rec.state {
	case TimerRunning:
		remaining := rec.startTime + rec.timeoutMs - s.clock()
		if remaining < 0 {
			return 0
		}
		return remaining
	case TimerPaused:
		return rec.pausedRemainingMs
	default:
		return -1
	}
}

// GetStartTime returns the timer's start timestamp, or -1 when absent.
func (s *TimerService) GetStartTime(matchID string, typ TimerType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.timers[timerKey{matchID, typ}]
	if !ok {
		return -1
	}
	return rec.startTime
}

// GetTimeoutMs returns the timer's configured window, or -1 when absent.
func (s *TimerService) GetTimeoutMs(matchID string, typ TimerType) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.timers[timerKey{matchID, typ}]
	if !ok {
		return -1
	}
	return rec.timeoutMs
}

// GetTimerState returns the timer's state; ok is false when no record
// exists.
func (s *TimerService) GetTimerState(matchID string, typ TimerType) (TimerState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.timers[timerKey{matchID, typ}]
	if !ok {
		return "", false
	}
	return rec.state, true
}

// IsWithinGracePeriod reports whether now falls in the half-open window
// (startTime+timeoutMs, startTime+timeoutMs+grace] of the record.
func (s *TimerService) IsWithinGracePeriod(matchID string, typ TimerType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.timers[timerKey{matchID, typ}]
	if !ok {
		return false
	}
	now := s.clock()
	deadline := rec.startTime + rec.timeoutMs
	return now > deadline && now <= deadline+s.durations.GraceMs
}
