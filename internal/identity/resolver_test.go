package identity

import (
	"context"
	"regexp"
	"testing"
	"time"

	"dayplan-cli/internal/model"
	"dayplan-cli/internal/store"
)

type fixedStrategy struct {
	src   Source
	id    model.UserID
	calls *int
}

func (f fixedStrategy) Source() Source { return f.src }

func (f fixedStrategy) Lookup(context.Context) (model.UserID, bool) {
	if f.calls != nil {
		*f.calls++
	}
	return f.id, f.id != ""
}

func TestSelect_PriorityOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	laterCalls := 0
	res, ok := Select(ctx,
		fixedStrategy{src: SourcePlatform},
		fixedStrategy{src: SourceLaunch, id: "42"},
		fixedStrategy{src: SourcePersisted, id: "7", calls: &laterCalls},
	)
	if !ok || res.ID != "42" || res.Source != SourceLaunch {
		t.Fatalf("got %#v ok=%v", res, ok)
	}
	if laterCalls != 0 {
		t.Fatalf("lower-priority strategy should not be consulted; calls=%d", laterCalls)
	}

	if _, ok := Select(ctx, fixedStrategy{src: SourcePlatform}, nil); ok {
		t.Fatalf("expected no selection")
	}
}

func TestUserIDFromLaunchParams(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "userId=42", want: "42"},
		{in: "?userId=42&x=1", want: "42"},
		{in: "https://app.example/?foo=bar&userId=42#top", want: "42"},
		{in: "https://app.example/?user_id=9", want: "9"},
		{in: "uid=5&userId=6", want: "6"},
		{in: "https://app.example/", want: ""},
		{in: "userId=", want: ""},
	}
	for _, tt := range tests {
		if got := UserIDFromLaunchParams(tt.in); got != tt.want {
			t.Fatalf("UserIDFromLaunchParams(%q) = %q want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerated_Format(t *testing.T) {
	t.Parallel()

	now := func() time.Time { return time.UnixMilli(1700000000123) }
	id, ok := Generated(now).Lookup(context.Background())
	if !ok {
		t.Fatalf("generated strategy must always yield")
	}
	if !regexp.MustCompile(`^dev_1700000000123_[0-9a-z]{9}$`).MatchString(string(id)) {
		t.Fatalf("unexpected placeholder: %q", id)
	}
}

func TestResolve_PlatformWinsOverLaunchAndPersisted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := store.NewMemoryKV()
	_ = kv.Set(ctx, store.CurrentUserKey, "7")

	r := NewResolver(kv, "", StaticPlatform("100"), "userId=42")
	res := r.Resolve(ctx)
	if res.ID != "100" || res.Source != SourcePlatform {
		t.Fatalf("got %#v", res)
	}
	cur, _, _ := kv.Get(ctx, store.CurrentUserKey)
	if cur != "100" {
		t.Fatalf("current user not persisted: %q", cur)
	}
}

func TestResolve_LaunchParamMigratesCachedIdentity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := store.NewMemoryKV()
	_ = kv.Set(ctx, store.CurrentUserKey, "7")
	old := store.NewStateStore(kv, "", "7")
	seed := model.PersistedState{Tasks: []model.Task{{ID: "1", Name: "Write report", ComplexityHours: 3}}}
	if err := old.Save(ctx, seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := NewResolver(kv, "", nil, "https://app.example/?userId=42")
	res := r.Resolve(ctx)
	if res.ID != "42" || res.Source != SourceLaunch || res.Previous != "7" {
		t.Fatalf("got %#v", res)
	}
	if res.Migration == nil || res.Migration.Status != store.MigrateCopied {
		t.Fatalf("expected migration to copy; got %#v", res.Migration)
	}

	loaded := store.NewStateStore(kv, "", "42").Load(ctx)
	if loaded.Status != store.LoadFound || len(loaded.State.Tasks) != 1 || loaded.State.Tasks[0].Name != "Write report" {
		t.Fatalf("expected 7's tasks visible under 42; got %#v", loaded)
	}
	if src := old.Load(ctx); src.Status != store.LoadFound {
		t.Fatalf("source must stay intact; got %#v", src)
	}
}

func TestResolve_DoesNotClobberExistingDestination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := store.NewMemoryKV()
	_ = kv.Set(ctx, store.CurrentUserKey, "7")
	_ = store.NewStateStore(kv, "", "7").Save(ctx, model.PersistedState{ResultNumber: "old"})
	_ = store.NewStateStore(kv, "", "42").Save(ctx, model.PersistedState{ResultNumber: "mine"})

	res := NewResolver(kv, "", nil, "userId=42").Resolve(ctx)
	if res.Migration == nil || res.Migration.Status != store.MigrateDestinationSet {
		t.Fatalf("expected skipped migration; got %#v", res.Migration)
	}
	got := store.NewStateStore(kv, "", "42").Load(ctx)
	if got.State.ResultNumber != "mine" {
		t.Fatalf("destination clobbered: %#v", got.State)
	}
}

func TestResolve_PersistedThenGenerated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := store.NewMemoryKV()
	r := NewResolver(kv, "", nil, "")

	first := r.Resolve(ctx)
	if first.Source != SourceGenerated {
		t.Fatalf("expected generated on a fresh device; got %#v", first)
	}
	second := r.Resolve(ctx)
	if second.ID != first.ID || second.Source != SourcePersisted {
		t.Fatalf("expected generated id to be reused; first=%#v second=%#v", first, second)
	}
	if second.Migration != nil {
		t.Fatalf("same identity must not migrate; got %#v", second.Migration)
	}
}

func TestResolve_NeverFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := store.NewMemoryKV()
	kv.Fail = true
	r := NewResolver(kv, "", nil, "userId=42")
	if res := r.Resolve(ctx); res.ID != "42" {
		t.Fatalf("expected launch id despite broken storage; got %#v", res)
	}

	empty := &Resolver{KV: store.NewMemoryKV()}
	if res := empty.Resolve(ctx); res.ID != FallbackID || res.Source != SourceFallback {
		t.Fatalf("expected fallback; got %#v", res)
	}
}

func TestUse_ForcesIdentityAndMigrates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	kv := store.NewMemoryKV()
	_ = kv.Set(ctx, store.CurrentUserKey, "dev_1_abc")
	_ = store.NewStateStore(kv, "", "dev_1_abc").Save(ctx, model.PersistedState{ResultNumber: "3"})

	r := NewResolver(kv, "", nil, "")
	res, err := r.Use(ctx, " 55 ")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	if res.ID != "55" || res.Source != SourceExplicit {
		t.Fatalf("got %#v", res)
	}
	if got := store.NewStateStore(kv, "", "55").Load(ctx); got.State.ResultNumber != "3" {
		t.Fatalf("expected migrated state; got %#v", got)
	}
	if _, err := r.Use(ctx, ""); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
