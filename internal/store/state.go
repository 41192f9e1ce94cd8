package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"dayplan-cli/internal/model"
)

const (
	// DefaultPrefix versions the per-user state key.
	DefaultPrefix = "mobile_task_app_v1"

	// CurrentUserKey holds the last resolved user id across runs.
	CurrentUserKey = "max_user_id"
)

// StorageKey derives the key a user's state blob lives under.
func StorageKey(prefix string, id model.UserID) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + string(id)
}

type LoadStatus string

const (
	LoadFound       LoadStatus = "found"
	LoadEmpty       LoadStatus = "empty"
	LoadCorrupt     LoadStatus = "corrupt"
	LoadUnavailable LoadStatus = "unavailable"
)

// LoadResult always carries a usable State. Err is set only for LoadCorrupt and LoadUnavailable.
type LoadResult struct {
	State  model.PersistedState
	Status LoadStatus
	Err    error
}

type MigrateStatus string

const (
	MigrateCopied         MigrateStatus = "copied"
	MigrateNoSource       MigrateStatus = "skipped-no-source"
	MigrateDestinationSet MigrateStatus = "skipped-destination-exists"
	MigrateSameIdentity   MigrateStatus = "skipped-same"
)

type MigrateResult struct {
	From   string        `json:"from"`
	To     string        `json:"to"`
	Status MigrateStatus `json:"status"`
}

// StateStore reads and writes one user's PersistedState.
type StateStore struct {
	KV     KV
	Prefix string
	ID     model.UserID
}

func NewStateStore(kv KV, prefix string, id model.UserID) StateStore {
	return StateStore{KV: kv, Prefix: prefix, ID: id}
}

func (s StateStore) Key() string {
	return StorageKey(s.Prefix, s.ID)
}

func (s StateStore) Load(ctx context.Context) LoadResult {
	raw, ok, err := s.KV.Get(ctx, s.Key())
	if err != nil {
		return LoadResult{Status: LoadUnavailable, Err: err}
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return LoadResult{Status: LoadEmpty}
	}
	var st model.PersistedState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		// Corrupted blobs are treated as "no data".
		return LoadResult{Status: LoadCorrupt, Err: err}
	}
	return LoadResult{State: st, Status: LoadFound}
}

func (s StateStore) Save(ctx context.Context, st model.PersistedState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, s.Key(), string(b))
}

func (s StateStore) Clear(ctx context.Context) error {
	return s.KV.Remove(ctx, s.Key())
}

// Migrate copies the blob stored for from to to, verbatim, only when to has nothing yet.
// The source is never modified.
func (s StateStore) Migrate(ctx context.Context, from, to model.UserID) (MigrateResult, error) {
	oldKey := StorageKey(s.Prefix, from)
	newKey := StorageKey(s.Prefix, to)
	res := MigrateResult{From: oldKey, To: newKey}
	if from.IsZero() || to.IsZero() {
		return res, errors.New("migrate: missing identity")
	}
	if from == to {
		res.Status = MigrateSameIdentity
		return res, nil
	}

	data, ok, err := s.KV.Get(ctx, oldKey)
	if err != nil {
		return res, err
	}
	if !ok || data == "" {
		res.Status = MigrateNoSource
		return res, nil
	}

	if c, ok := s.KV.(setIfAbsenter); ok {
		wrote, err := c.SetIfAbsent(ctx, newKey, data)
		if err != nil {
			return res, err
		}
		if !wrote {
			res.Status = MigrateDestinationSet
			return res, nil
		}
		res.Status = MigrateCopied
		return res, nil
	}

	existing, ok, err := s.KV.Get(ctx, newKey)
	if err != nil {
		return res, err
	}
	if ok && existing != "" {
		res.Status = MigrateDestinationSet
		return res, nil
	}
	if err := s.KV.Set(ctx, newKey, data); err != nil {
		return res, err
	}
	res.Status = MigrateCopied
	return res, nil
}
