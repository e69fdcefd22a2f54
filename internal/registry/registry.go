// Package registry holds the process-wide mapping of active matches.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gridclash/api/pkg/tactics"
)

var (
	ErrMatchExists   = errors.New("match already exists")
	ErrMatchNotFound = errors.New("match not found")
)

// Mirror receives best-effort copies of match snapshots and serves them
// back on restore. The Redis client implements it; a nil mirror disables
// publishing.
type Mirror interface {
	SetMatchState(ctx context.Context, matchID string, state json.RawMessage) error
	GetMatchState(ctx context.Context, matchID string) (json.RawMessage, error)
	DeleteMatchState(ctx context.Context, matchID string) error
}

// Match is a registry entry: the authoritative state of one game.
type Match struct {
	ID        string
	State     *tactics.GameState
	CreatedAt time.Time
}

// Registry is an in-memory match store. Reads may be concurrent; writes
// swap the state pointer atomically under the lock, so readers see either
// the old or the new snapshot, never a blend.
type Registry struct {
	mu      sync.RWMutex
	matches map[string]*Match
	mirror  Mirror
}

// New creates a Registry. mirror may be nil.
func New(mirror Mirror) *Registry {
	return &Registry{matches: make(map[string]*Match), mirror: mirror}
}

// Create registers a new match with its initial state.
func (r *Registry) Create(id string, state *tactics.GameState) (*Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.matches[id]; ok {
		return nil, ErrMatchExists
	}
	m := &Match{ID: id, State: state, CreatedAt: time.Now()}
	r.matches[id] = m
	r.publish(id, state)
	return m, nil
}

// Get returns the match entry, or false when absent.
func (r *Registry) Get(id string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// State returns the current snapshot for a match.
func (r *Registry) State(id string) (*tactics.GameState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, false
	}
	return m.State, true
}

// UpdateState replaces the match's state snapshot.
func (r *Registry) UpdateState(id string, state *tactics.GameState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return ErrMatchNotFound
	}
	m.State = state
	r.publish(id, state)
	return nil
}

// Restore attempts to recover a match from the mirror, registering it
// locally on success. Used when a player joins a match id unknown to this
// process, which happens after a restart with a mirror configured.
func (r *Registry) Restore(id string) (*tactics.GameState, bool) {
	if state, ok := r.State(id); ok {
		return state, true
	}
	r.mu.RLock()
	mirror := r.mirror
	r.mu.RUnlock()
	if mirror == nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := mirror.GetMatchState(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("matchId", id).Msg("Failed to read mirrored match state")
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	var state tactics.GameState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Error().Err(err).Str("matchId", id).Msg("Mirrored match state is malformed")
		return nil, false
	}
	if _, err := r.Create(id, &state); err != nil {
		// Lost a restore race; whoever won registered the same snapshot.
		return r.State(id)
	}
	log.Info().Str("matchId", id).Msg("Restored match from mirror")
	return &state, true
}

// List returns a snapshot of all registered matches.
func (r *Registry) List() []Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, *m)
	}
	return out
}

// Remove drops a match and clears its mirror entry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.matches, id)
	mirror := r.mirror
	r.mu.Unlock()

	if mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := mirror.DeleteMatchState(ctx, id); err != nil {
			log.Warn().Err(err).Str("matchId", id).Msg("Failed to delete mirrored match state")
		}
	}()
}

// publish mirrors the snapshot asynchronously. Called with r.mu held;
// the marshal and network hop happen off the lock.
func (r *Registry) publish(id string, state *tactics.GameState) {
	if r.mirror == nil {
		return
	}
	mirror := r.mirror
	go func() {
		data, err := json.Marshal(state)
		if err != nil {
			log.Error().Err(err).Str("matchId", id).Msg("Failed to marshal match state for mirror")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := mirror.SetMatchState(ctx, id, data); err != nil {
			log.Warn().Err(err).Str("matchId", id).Msg("Failed to mirror match state")
		}
	}()
}
