package service

import (
	"time"

	"github.com/gridclash/api/pkg/tactics"
)

// fakeClock is a deterministic millisecond clock.
type fakeClock struct {
	now int64
}

func (c *fakeClock) Now() int64       { return c.now }
func (c *fakeClock) Advance(ms int64) { c.now += ms }

// scheduledFire is one armed timeout in the fake scheduler.
type scheduledFire struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

// fakeScheduler records armed timeouts and fires them only on request.
type fakeScheduler struct {
	fires []*scheduledFire
}

func (s *fakeScheduler) Schedule(delay time.Duration, fn func()) func() {
	f := &scheduledFire{delay: delay, fn: fn}
	s.fires = append(s.fires, f)
	return func() { f.cancelled = true }
}

// fireLast runs the most recently armed, still-live timeout.
func (s *fakeScheduler) fireLast() {
	for i := len(s.fires) - 1; i >= 0; i-- {
		if !s.fires[i].cancelled {
			s.fires[i].fn()
			return
		}
	}
}

// liveCount returns how many armed timeouts have not been cancelled.
func (s *fakeScheduler) liveCount() int {
	n := 0
	for _, f := range s.fires {
		if !f.cancelled {
			n++
		}
	}
	return n
}

// eventRecorder captures timeout events emitted by the match service.
type eventRecorder struct {
	events []TimeoutEvent
}

func (r *eventRecorder) sink(ev TimeoutEvent) {
	r.events = append(r.events, ev)
}

func newTimerHarness(d TimerDurations) (*TimerService, *fakeClock, *fakeScheduler) {
	clock := &fakeClock{now: 1_000}
	sched := &fakeScheduler{}
	svc := NewTimerService(clock.Now, sched.Schedule, d)
	return svc, clock, sched
}

// smallState builds a two-hero, two-minion board for service tests.
func smallState() *tactics.GameState {
	units := []tactics.Unit{
		tactics.NewHero("p1-hero", tactics.P1, tactics.Position{X: 2, Y: 0}, "vanguard", "power_strike"),
		tactics.NewMinion("p1-tank", tactics.P1, tactics.Position{X: 2, Y: 1}, tactics.Tank),
		tactics.NewHero("p2-hero", tactics.P2, tactics.Position{X: 2, Y: 4}, "vanguard", "power_strike"),
		tactics.NewMinion("p2-tank", tactics.P2, tactics.Position{X: 2, Y: 3}, tactics.Tank),
	}
	return &tactics.GameState{
		Board:         tactics.Board{Width: tactics.BoardWidth, Height: tactics.BoardHeight},
		Units:         units,
		CurrentPlayer: tactics.P1,
		UnitBuffs:     make(map[string][]tactics.BuffInstance),
		CurrentRound:  1,
	}
}
