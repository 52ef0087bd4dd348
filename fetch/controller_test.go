package fetch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/project-starfall/identity"
	"github.com/project-starfall/identity/client"
)

// fakeSession is an in-memory Session.
type fakeSession struct {
	values map[string]string
}

func newFakeSession() *fakeSession {
	return &fakeSession{values: map[string]string{}}
}

func (s *fakeSession) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}
func (s *fakeSession) Set(key, value string) { s.values[key] = value }
func (s *fakeSession) Delete(key string)     { delete(s.values, key) }

// fakeRemote counts calls and serves a canned payload or error.
type fakeRemote struct {
	payload client.UserPayload
	err     error
	calls   int
}

func (r *fakeRemote) FetchSelf(context.Context, identity.Origin, string) (client.UserPayload, error) {
	r.calls++
	if r.err != nil {
		return client.UserPayload{}, r.err
	}
	return r.payload, nil
}

var alicePayload = client.UserPayload{
	UID:      7,
	Username: "alice",
	Email:    "alice@example.com",
	Active:   true,
	Verified: true,
}

func newTestController(t *testing.T, remote Remote, at time.Time) *Controller {
	t.Helper()

	ctrl, err := NewController(remote, Config{
		HalfValidTime:  30 * time.Minute,
		CacheValidTime: time.Hour,
		RefreshPath:    "/user/refresh",
	}, WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl
}

// seedCache installs a cached identity stamped at cachedAt.
func seedCache(t *testing.T, sess Session, cachedAt time.Time) {
	t.Helper()

	id := FromPayload(alicePayload, identity.LocalOrigin(), cachedAt)
	if err := StoreCache(sess, id); err != nil {
		t.Fatalf("StoreCache: %v", err)
	}
}

func TestResolveNoToken(t *testing.T) {
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, time.Now())
	sess := newFakeSession()

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if !d.Identity.IsGuest() {
		t.Fatalf("got %+v, want guest", d.Identity)
	}
	if d.ShortCircuit() {
		t.Fatal("guest resolution must not redirect")
	}
	if remote.calls != 0 {
		t.Fatalf("remote called %d times for a token-less session", remote.calls)
	}
}

func TestResolveTokenWithoutCache(t *testing.T) {
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, time.Now())
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if d.Identity.UID != 7 || d.Identity.Username != "alice" {
		t.Fatalf("got %+v", d.Identity)
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want 1", remote.calls)
	}
	if _, ok := sess.Get(KeyUserCache); !ok {
		t.Fatal("fetched identity was not cached")
	}
}

func TestResolveTokenWithoutCacheFetchFails(t *testing.T) {
	remote := &fakeRemote{err: errors.New("boom")}
	ctrl := newTestController(t, remote, time.Now())
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	sess.Set(KeyHost, "local")

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if !d.Identity.IsGuest() {
		t.Fatalf("got %+v, want guest", d.Identity)
	}
	// The token itself failed, so every credential key must go.
	for _, key := range []string{KeyAuthToken, KeyUserCache, KeyHost} {
		if _, ok := sess.Get(key); ok {
			t.Fatalf("session key %q survived a rejected token", key)
		}
	}
}

func TestResolveFreshCache(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, now)
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	seedCache(t, sess, now.Add(-time.Minute))

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if d.Identity.UID != 7 {
		t.Fatalf("got %+v", d.Identity)
	}
	if d.ShortCircuit() {
		t.Fatal("fresh cache must not redirect")
	}
	if remote.calls != 0 {
		t.Fatalf("remote called %d times on a fresh cache", remote.calls)
	}
}

func TestResolveStaleCacheRedirects(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, now)
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	seedCache(t, sess, now.Add(-31*time.Minute))

	d := ctrl.Resolve(context.Background(), sess, "/account/settings")

	if want := "/user/refresh?redirect=%2Faccount%2Fsettings"; d.Redirect != want {
		t.Fatalf("redirect = %q, want %q", d.Redirect, want)
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want 1", remote.calls)
	}

	// The cache must carry the new stamp so the next request is fresh.
	raw, ok := sess.Get(KeyUserCache)
	if !ok {
		t.Fatal("cache cleared")
	}
	cached, err := decodeCache(raw)
	if err != nil {
		t.Fatalf("decodeCache: %v", err)
	}
	if cached.CachedAt != now.Unix() {
		t.Fatalf("cache stamped %d, want %d", cached.CachedAt, now.Unix())
	}
}

func TestResolveStaleCacheOnRefreshPath(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, now)
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	seedCache(t, sess, now.Add(-45*time.Minute))

	d := ctrl.Resolve(context.Background(), sess, "/user/refresh")

	if d.ShortCircuit() {
		t.Fatalf("redirect loop: %q", d.Redirect)
	}
	if d.Identity.UID != 7 {
		t.Fatalf("got %+v", d.Identity)
	}
}

func TestResolveStaleCacheFetchFailureServesCache(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{err: errors.New("unreachable")}
	ctrl := newTestController(t, remote, now)
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	seedCache(t, sess, now.Add(-40*time.Minute))

	d := ctrl.Resolve(context.Background(), sess, "/page")

	// Still within the full window, so the cached identity is good enough.
	if d.Identity.UID != 7 {
		t.Fatalf("got %+v, want cached identity", d.Identity)
	}
	if _, ok := sess.Get(KeyAuthToken); !ok {
		t.Fatal("token cleared while the cache was still valid")
	}
}

func TestResolveExpiredCache(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, now)
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	seedCache(t, sess, now.Add(-2*time.Hour))

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if d.Identity.UID != 7 {
		t.Fatalf("got %+v", d.Identity)
	}
	if d.ShortCircuit() {
		t.Fatal("successful expired refetch must not redirect")
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want 1", remote.calls)
	}
}

func TestResolveExpiredCacheFetchFails(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{err: errors.New("unreachable")}
	ctrl := newTestController(t, remote, now)
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	sess.Set(KeyHost, "local")
	seedCache(t, sess, now.Add(-2*time.Hour))

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if !d.Identity.IsGuest() {
		t.Fatalf("got %+v, want guest", d.Identity)
	}
	// Only the cache goes; the token may still be good once the service
	// comes back.
	if _, ok := sess.Get(KeyUserCache); ok {
		t.Fatal("cache survived")
	}
	if _, ok := sess.Get(KeyAuthToken); !ok {
		t.Fatal("token cleared on an expired-cache failure")
	}
}

func TestResolveUndecodableCacheRefetches(t *testing.T) {
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, time.Now())
	sess := newFakeSession()
	sess.Set(KeyAuthToken, "tok")
	sess.Set(KeyUserCache, "{not json")

	d := ctrl.Resolve(context.Background(), sess, "/page")

	if d.Identity.UID != 7 {
		t.Fatalf("got %+v", d.Identity)
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want 1", remote.calls)
	}
}

func TestGuestShape(t *testing.T) {
	g := Guest(identity.RemoteOrigin("auth.example.com"))
	if g.UID != 0 || g.Username != "Guest" || g.Email != "guest@example.com" {
		t.Fatalf("guest = %+v", g)
	}
	if g.Active || g.Verified {
		t.Fatal("guest must be inactive and unverified")
	}
	if g.Origin.Host() != "auth.example.com" {
		t.Fatalf("guest origin = %q", g.Origin.Host())
	}
}

func TestControllerStats(t *testing.T) {
	now := time.Now()
	remote := &fakeRemote{payload: alicePayload}
	ctrl := newTestController(t, remote, now)
	ctx := context.Background()

	ctrl.Resolve(ctx, newFakeSession(), "/page") // guest

	fresh := newFakeSession()
	fresh.Set(KeyAuthToken, "tok")
	seedCache(t, fresh, now.Add(-time.Minute))
	ctrl.Resolve(ctx, fresh, "/page")

	stale := newFakeSession()
	stale.Set(KeyAuthToken, "tok")
	seedCache(t, stale, now.Add(-40*time.Minute))
	ctrl.Resolve(ctx, stale, "/page")

	expired := newFakeSession()
	expired.Set(KeyAuthToken, "tok")
	seedCache(t, expired, now.Add(-2*time.Hour))
	ctrl.Resolve(ctx, expired, "/page")

	got := ctrl.Stats()
	want := Stats{Guest: 1, Fresh: 1, Stale: 1, Expired: 1}
	if got != want {
		t.Fatalf("Stats = %+v, want %+v", got, want)
	}
}

func TestNewControllerValidatesWindows(t *testing.T) {
	remote := &fakeRemote{}
	cases := []Config{
		{HalfValidTime: 0, CacheValidTime: time.Hour},
		{HalfValidTime: time.Hour, CacheValidTime: time.Hour},
		{HalfValidTime: 2 * time.Hour, CacheValidTime: time.Hour},
	}
	for _, cfg := range cases {
		if _, err := NewController(remote, cfg); err == nil {
			t.Fatalf("NewController accepted %+v", cfg)
		}
	}
}
