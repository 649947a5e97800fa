// Package snapshot persists conversation state so sessions survive a
// restart. Two backends are provided: a local SQLite file and Redis.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/normanking/cortex-emotion/internal/config"
	"github.com/normanking/cortex-emotion/internal/conversation"
)

// ErrNotFound is returned by Get for unknown session ids.
var ErrNotFound = errors.New("snapshot not found")

// Store persists conversation states.
type Store interface {
	// Save replaces the stored set with states.
	Save(ctx context.Context, states []conversation.State) error
	// Load returns every stored state, most recently active first.
	Load(ctx context.Context) ([]conversation.State, error)
	// Get returns one state or ErrNotFound.
	Get(ctx context.Context, sessionID string) (conversation.State, error)
	// Delete removes one state. Unknown ids are not an error.
	Delete(ctx context.Context, sessionID string) error
	Close() error
	// Backend names the implementation for logs and metrics.
	Backend() string
}

// Open creates the store selected by cfg.Backend. "none" and "" give a store
// that keeps nothing.
func Open(cfg config.SnapshotConfig) (Store, error) {
	switch cfg.Backend {
	case "", "none":
		return Discard{}, nil
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path)
	case "redis":
		return NewRedisStore(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown snapshot backend: %s", cfg.Backend)
	}
}

// Discard is a Store that keeps nothing.
type Discard struct{}

func (Discard) Save(context.Context, []conversation.State) error        { return nil }
func (Discard) Load(context.Context) ([]conversation.State, error)      { return nil, nil }
func (Discard) Delete(context.Context, string) error                    { return nil }
func (Discard) Close() error                                            { return nil }
func (Discard) Backend() string                                         { return "none" }
func (Discard) Get(context.Context, string) (conversation.State, error) { return conversation.State{}, ErrNotFound }

func sortByActivity(states []conversation.State) {
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].LastInteraction.After(states[j].LastInteraction)
	})
}
