package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gridclash/api/pkg/tactics"
)

// mockMirror records snapshot publishes and serves stored snapshots back.
type mockMirror struct {
	mu      sync.Mutex
	sets    map[string]int
	deletes map[string]int
	stored  map[string]json.RawMessage
	done    chan struct{}
}

func newMockMirror(expected int) *mockMirror {
	return &mockMirror{
		sets:    make(map[string]int),
		deletes: make(map[string]int),
		stored:  make(map[string]json.RawMessage),
		done:    make(chan struct{}, expected),
	}
}

func (m *mockMirror) SetMatchState(_ context.Context, matchID string, state json.RawMessage) error {
	m.mu.Lock()
	m.sets[matchID]++
	m.stored[matchID] = state
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *mockMirror) GetMatchState(_ context.Context, matchID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored[matchID], nil
}

func (m *mockMirror) DeleteMatchState(_ context.Context, matchID string) error {
	m.mu.Lock()
	m.deletes[matchID]++
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func (m *mockMirror) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-m.done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for mirror publish")
		}
	}
}

func TestCreateAndGet(t *testing.T) {
	r := New(nil)

	state := tactics.NewDefaultState("m1")
	if _, err := r.Create("m1", state); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.Create("m1", state); !errors.Is(err, ErrMatchExists) {
		t.Fatalf("duplicate Create: got %v, want ErrMatchExists", err)
	}

	m, ok := r.Get("m1")
	if !ok || m.ID != "m1" {
		t.Fatalf("Get returned %+v, %v", m, ok)
	}
	if _, ok := r.Get("ghost"); ok {
		t.Error("Get of absent match should report false")
	}

	got, ok := r.State("m1")
	if !ok || got != state {
		t.Error("State should return the stored snapshot")
	}
}

func TestUpdateState(t *testing.T) {
	r := New(nil)
	first := tactics.NewDefaultState("m1")
	r.Create("m1", first)

	second := first.Clone()
	second.CurrentRound = 2
	if err := r.UpdateState("m1", second); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	got, _ := r.State("m1")
	if got.CurrentRound != 2 {
		t.Errorf("round = %d, want 2", got.CurrentRound)
	}

	if err := r.UpdateState("ghost", second); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("UpdateState of absent match: got %v, want ErrMatchNotFound", err)
	}
}

func TestListAndRemove(t *testing.T) {
	r := New(nil)
	r.Create("m1", tactics.NewDefaultState("m1"))
	r.Create("m2", tactics.NewDefaultState("m2"))

	if got := len(r.List()); got != 2 {
		t.Errorf("List = %d entries, want 2", got)
	}

	r.Remove("m1")
	if _, ok := r.State("m1"); ok {
		t.Error("removed match still present")
	}
	if got := len(r.List()); got != 1 {
		t.Errorf("List after remove = %d entries, want 1", got)
	}
	// Removing an absent match is a no-op.
	r.Remove("ghost")
}

func TestMirrorPublishes(t *testing.T) {
	mirror := newMockMirror(4)
	r := New(mirror)

	state := tactics.NewDefaultState("m1")
	r.Create("m1", state)
	r.UpdateState("m1", state.Clone())
	mirror.wait(t, 2)

	mirror.mu.Lock()
	sets := mirror.sets["m1"]
	mirror.mu.Unlock()
	if sets != 2 {
		t.Errorf("mirror sets = %d, want 2", sets)
	}

	r.Remove("m1")
	mirror.wait(t, 1)
	mirror.mu.Lock()
	dels := mirror.deletes["m1"]
	mirror.mu.Unlock()
	if dels != 1 {
		t.Errorf("mirror deletes = %d, want 1", dels)
	}
}

func TestRestoreFromMirror(t *testing.T) {
	mirror := newMockMirror(1)

	old := New(mirror)
	state := tactics.NewDefaultState("m1")
	state.CurrentRound = 3
	old.Create("m1", state)
	mirror.wait(t, 1)

	// A fresh registry, as after a restart, recovers the match.
	r := New(mirror)
	got, ok := r.Restore("m1")
	if !ok {
		t.Fatal("Restore should recover the mirrored match")
	}
	if got.CurrentRound != 3 {
		t.Errorf("restored round = %d, want 3", got.CurrentRound)
	}
	if _, ok := r.State("m1"); !ok {
		t.Error("restored match should be registered locally")
	}

	// A second Restore serves the local copy.
	if _, ok := r.Restore("m1"); !ok {
		t.Error("Restore of a registered match should succeed")
	}

	if _, ok := r.Restore("ghost"); ok {
		t.Error("Restore of an unmirrored match should report false")
	}
	if _, ok := New(nil).Restore("m1"); ok {
		t.Error("Restore without a mirror should report false")
	}
}
