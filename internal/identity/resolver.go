package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"dayplan-cli/internal/model"
	"dayplan-cli/internal/store"
)

type Resolution struct {
	ID     model.UserID `json:"userId"`
	Source Source       `json:"source"`

	// Previous is the id that was current before this resolution (empty on first run).
	Previous  model.UserID         `json:"previous,omitempty"`
	Migration *store.MigrateResult `json:"migration,omitempty"`
}

// Select tries strategies in order and returns the first id found.
// It has no side effects beyond what the strategies' lookups do.
func Select(ctx context.Context, strategies ...Strategy) (Resolution, bool) {
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if id, ok := s.Lookup(ctx); ok && !id.IsZero() {
			return Resolution{ID: model.UserID(strings.TrimSpace(string(id))), Source: s.Source()}, true
		}
	}
	return Resolution{}, false
}

// Resolver picks the current user and records it on this device.
type Resolver struct {
	Strategies []Strategy

	// KV holds the current-user key; States performs the one-time data migration.
	KV         store.KV
	CurrentKey string
	States     store.StateStore

	Logger *slog.Logger
}

// NewResolver builds the standard chain: platform, launch params, persisted, generated.
func NewResolver(kv store.KV, prefix string, platform PlatformSDK, launch string) *Resolver {
	return &Resolver{
		Strategies: []Strategy{
			FromPlatform(platform),
			FromLaunchParams(launch),
			FromPersisted(kv, store.CurrentUserKey),
			Generated(nil),
		},
		KV:         kv,
		CurrentKey: store.CurrentUserKey,
		States:     store.StateStore{KV: kv, Prefix: prefix},
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (r *Resolver) currentKey() string {
	if r.CurrentKey != "" {
		return r.CurrentKey
	}
	return store.CurrentUserKey
}

// Resolve never fails: commit errors are logged and the selected id is still returned.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	prev := r.previous(ctx)

	res, ok := Select(ctx, r.Strategies...)
	if !ok {
		res = Resolution{ID: FallbackID, Source: SourceFallback}
	}

	committed, err := r.Commit(ctx, prev, res)
	if err != nil {
		r.logger().Warn("persist current user failed", "userId", res.ID, "source", res.Source, "err", err)
	}
	r.logger().Debug("user resolved", "userId", committed.ID, "source", committed.Source, "previous", committed.Previous)
	return committed
}

// Use forces id as the current user, going through the same migration path as Resolve.
func (r *Resolver) Use(ctx context.Context, id model.UserID) (Resolution, error) {
	id = model.UserID(strings.TrimSpace(string(id)))
	if id.IsZero() {
		return Resolution{}, errors.New("missing user id")
	}
	return r.Commit(ctx, r.previous(ctx), Resolution{ID: id, Source: SourceExplicit})
}

// Commit migrates prev's data to res.ID (when they differ) and then records res.ID as current.
// Migration runs before the current-user key is rewritten so an interrupted commit is retried
// on the next run.
func (r *Resolver) Commit(ctx context.Context, prev model.UserID, res Resolution) (Resolution, error) {
	res.Previous = prev
	if r.KV == nil {
		return res, errors.New("no local storage")
	}

	if !prev.IsZero() && prev != res.ID {
		states := r.States
		if states.KV == nil {
			states.KV = r.KV
		}
		mr, err := states.Migrate(ctx, prev, res.ID)
		if err != nil {
			return res, fmt.Errorf("migrate %s -> %s: %w", prev, res.ID, err)
		}
		res.Migration = &mr
		if mr.Status == store.MigrateCopied {
			r.logger().Info("migrated local data", "from", mr.From, "to", mr.To)
		}
	}

	if err := r.KV.Set(ctx, r.currentKey(), string(res.ID)); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Resolver) previous(ctx context.Context) model.UserID {
	if r.KV == nil {
		return ""
	}
	v, ok, err := r.KV.Get(ctx, r.currentKey())
	if err != nil || !ok {
		return ""
	}
	return model.UserID(strings.TrimSpace(v))
}
