package identity

import (
	"context"
	"crypto/rand"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dayplan-cli/internal/model"
	"dayplan-cli/internal/store"
)

type Source string

const (
	SourcePlatform  Source = "platform"
	SourceLaunch    Source = "launch"
	SourcePersisted Source = "persisted"
	SourceGenerated Source = "generated"
	SourceExplicit  Source = "explicit"
	SourceFallback  Source = "fallback"
)

// FallbackID is returned when no strategy yields an id.
const FallbackID model.UserID = "anonymous"

// Strategy is one identity source. Lookup reports false when the source has nothing.
type Strategy interface {
	Source() Source
	Lookup(ctx context.Context) (model.UserID, bool)
}

// PlatformSDK is the host platform's view of the authenticated in-app user.
type PlatformSDK interface {
	UserID(ctx context.Context) (string, bool)
}

// StaticPlatform is a PlatformSDK backed by a fixed value (flag/env in the CLI).
type StaticPlatform string

func (p StaticPlatform) UserID(context.Context) (string, bool) {
	v := strings.TrimSpace(string(p))
	return v, v != ""
}

type platformStrategy struct{ sdk PlatformSDK }

func FromPlatform(sdk PlatformSDK) Strategy { return platformStrategy{sdk: sdk} }

func (platformStrategy) Source() Source { return SourcePlatform }

func (p platformStrategy) Lookup(ctx context.Context) (model.UserID, bool) {
	if p.sdk == nil {
		return "", false
	}
	v, ok := p.sdk.UserID(ctx)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		return "", false
	}
	return model.UserID(v), true
}

// LaunchParamKeys are checked in order.
var LaunchParamKeys = []string{"userId", "user_id", "uid"}

type launchStrategy struct{ raw string }

// FromLaunchParams reads the user id handed over by a bot/launcher. raw may be a full
// URL, a "?query" or a bare "k=v&..." string.
func FromLaunchParams(raw string) Strategy { return launchStrategy{raw: raw} }

func (launchStrategy) Source() Source { return SourceLaunch }

func (l launchStrategy) Lookup(context.Context) (model.UserID, bool) {
	v := UserIDFromLaunchParams(l.raw)
	return model.UserID(v), v != ""
}

func UserIDFromLaunchParams(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	query := raw
	if i := strings.Index(raw, "?"); i >= 0 {
		query = raw[i+1:]
	} else if strings.Contains(raw, "://") {
		return ""
	}
	if i := strings.Index(query, "#"); i >= 0 {
		query = query[:i]
	}
	vals, err := url.ParseQuery(query)
	if err != nil {
		return ""
	}
	for _, k := range LaunchParamKeys {
		if v := strings.TrimSpace(vals.Get(k)); v != "" {
			return v
		}
	}
	return ""
}

type persistedStrategy struct {
	kv  store.KV
	key string
}

// FromPersisted returns the id saved by a previous run on this device.
func FromPersisted(kv store.KV, key string) Strategy {
	if key == "" {
		key = store.CurrentUserKey
	}
	return persistedStrategy{kv: kv, key: key}
}

func (persistedStrategy) Source() Source { return SourcePersisted }

func (p persistedStrategy) Lookup(ctx context.Context) (model.UserID, bool) {
	if p.kv == nil {
		return "", false
	}
	v, ok, err := p.kv.Get(ctx, p.key)
	v = strings.TrimSpace(v)
	if err != nil || !ok || v == "" {
		return "", false
	}
	return model.UserID(v), true
}

type generatedStrategy struct{ now func() time.Time }

// Generated always yields a fresh dev_<unix-ms>_<random> placeholder.
func Generated(now func() time.Time) Strategy {
	if now == nil {
		now = time.Now
	}
	return generatedStrategy{now: now}
}

func (generatedStrategy) Source() Source { return SourceGenerated }

func (g generatedStrategy) Lookup(context.Context) (model.UserID, bool) {
	return model.UserID("dev_" + strconv.FormatInt(g.now().UnixMilli(), 10) + "_" + randomBase36(9)), true
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomBase36(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(base36)))
	for i := 0; i < n; i++ {
		k, err := rand.Int(rand.Reader, max)
		if err != nil {
			b.WriteByte('0')
			continue
		}
		b.WriteByte(base36[k.Int64()])
	}
	return b.String()
}
