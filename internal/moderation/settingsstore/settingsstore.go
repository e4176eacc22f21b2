// Package settingsstore persists the per-installation moderation Settings
// (§6) that arrive via the AppInstall webhook trigger and are looked up by
// subreddit on every subsequent PostSubmit/CommentSubmit/ModAction trigger.
// This is distinct from pkg/config, which loads operator-facing ambient
// configuration (server port, store DSN, log level) from the environment:
// Settings come from the host platform, not the process environment.
package settingsstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modsentinel/automod/internal/moderation/model"
	"github.com/modsentinel/automod/internal/store"
)

// Store reads and writes Settings blobs keyed by subreddit.
type Store struct {
	store store.Store
}

// New returns a Store backed by s.
func New(s store.Store) *Store {
	return &Store{store: s}
}

func settingsKey(subreddit string) string {
	return fmt.Sprintf("settings:%s", subreddit)
}

const installsKey = "settings:installs"

// Get returns the Settings for subreddit, or (Settings{}, false, nil) if no
// installation has been recorded yet.
func (st *Store) Get(ctx context.Context, subreddit string) (model.Settings, bool, error) {
	raw, err := st.store.Get(ctx, settingsKey(subreddit))
	if err == store.ErrNotFound {
		return model.Settings{}, false, nil
	}
	if err != nil {
		return model.Settings{}, false, fmt.Errorf("read settings: %w", err)
	}

	var settings model.Settings
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return model.Settings{}, false, fmt.Errorf("parse settings: %w", err)
	}
	return settings, true, nil
}

// Put persists settings for subreddit, overwriting any prior installation.
func (st *Store) Put(ctx context.Context, subreddit string, settings model.Settings) error {
	settings.Subreddit = subreddit
	encoded, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := st.store.Set(ctx, settingsKey(subreddit), string(encoded), 0); err != nil {
		return err
	}
	return st.store.ZAdd(ctx, installsKey, store.ZMember{Member: subreddit, Score: 0})
}

// List returns every subreddit with a recorded installation, used by the
// daily digest scheduler to know which installs to report on.
func (st *Store) List(ctx context.Context) ([]string, error) {
	return st.store.ZRange(ctx, installsKey, 0, -1)
}
