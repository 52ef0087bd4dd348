package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/project-starfall/identity"
	"github.com/project-starfall/identity/client"
	"github.com/project-starfall/identity/fetch"
)

// UserFlow serves the session-backed browser endpoints under /user. Unlike
// AuthAPI, callers here carry no bearer token; credentials live in the
// cookie session and the flow talks to the credential service (local or
// remote) through the wire client.
type UserFlow struct {
	client   *client.Client
	sessions fetch.SessionProvider
	log      *slog.Logger
	now      func() time.Time
}

// NewUserFlow builds the /user endpoint group.
func NewUserFlow(c *client.Client, sessions fetch.SessionProvider, log *slog.Logger) *UserFlow {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &UserFlow{client: c, sessions: sessions, log: log, now: time.Now}
}

// Register mounts the flow's routes on r, which is expected to be a
// subrouter under /user carrying the fetch middleware. /cached_info in
// particular reads the identity that middleware resolved.
func (f *UserFlow) Register(r *mux.Router) {
	r.HandleFunc("/login", f.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", f.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/refresh", f.handleRefresh).Methods(http.MethodGet)
	r.HandleFunc("/cached_info", f.handleCachedInfo).Methods(http.MethodGet)
}

type userLoginRequest struct {
	ID       string `json:"id"`
	Password string `json:"password"`

	// Host selects which credential service to log in against. Empty means
	// the local one.
	Host string `json:"host"`
}

func (f *UserFlow) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req userLoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == "" || req.Password == "" {
		respondErr(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	sess, err := f.sessions.Load(r)
	if err != nil {
		f.log.Error("loading session", "error", err)
		respondErr(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	origin := identity.ParseOrigin(req.Host)
	result, err := f.client.Login(r.Context(), origin, req.ID, req.Password)
	if err != nil {
		f.log.Info("login against credential service failed",
			"origin", origin.Host(), "error", err)
		respondErr(w, http.StatusUnauthorized, remoteMessage(err))
		return
	}

	sess.Set(fetch.KeyAuthToken, result.AccessToken)
	sess.Set(fetch.KeyHost, origin.Host())

	// Cache the account up front so the first page load after login does
	// not need another round trip. A failure here is harmless; the
	// controller fetches on demand.
	if payload, err := f.client.FetchSelf(r.Context(), origin, result.AccessToken); err == nil {
		id := fetch.FromPayload(payload, origin, f.now())
		if err := fetch.StoreCache(sess, id); err != nil {
			f.log.Warn("caching identity after login", "error", err)
		}
	}

	if err := f.sessions.Save(w, r, sess); err != nil {
		f.log.Error("saving session", "error", err)
		respondErr(w, http.StatusInternalServerError, "Session unavailable")
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"message": "Logged in"})
}

func (f *UserFlow) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, err := f.sessions.Load(r)
	if err != nil {
		f.log.Error("loading session", "error", err)
		respondErr(w, http.StatusInternalServerError, "Session unavailable")
		return
	}

	// Revoke remotely on a best-effort basis; the session is cleared even
	// if the credential service is unreachable.
	if tok, ok := sess.Get(fetch.KeyAuthToken); ok && tok != "" {
		host, _ := sess.Get(fetch.KeyHost)
		origin := identity.ParseOrigin(host)
		if err := f.client.Logout(r.Context(), origin, tok); err != nil {
			f.log.Warn("remote logout failed", "origin", origin.Host(), "error", err)
		}
	}
	fetch.ClearCredentials(sess)

	if err := f.sessions.Save(w, r, sess); err != nil {
		f.log.Error("saving session", "error", err)
		respondErr(w, http.StatusInternalServerError, "Session unavailable")
		return
	}
	respondOK(w, http.StatusOK, map[string]any{"message": "Logged out"})
}

// handleRefresh re-validates the session's identity and bounces the
// visitor back where they came from. This is the landing spot for the
// stale-cache redirect.
func (f *UserFlow) handleRefresh(w http.ResponseWriter, r *http.Request) {
	target := safeRedirect(r.URL.Query().Get("redirect"))

	sess, err := f.sessions.Load(r)
	if err != nil {
		f.log.Error("loading session", "error", err)
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	tok, ok := sess.Get(fetch.KeyAuthToken)
	if ok && tok != "" {
		host, _ := sess.Get(fetch.KeyHost)
		origin := identity.ParseOrigin(host)

		payload, err := f.client.FetchSelf(r.Context(), origin, tok)
		if err != nil {
			f.log.Info("refresh fetch failed, dropping cached identity",
				"origin", origin.Host(), "error", err)
			sess.Delete(fetch.KeyUserCache)
		} else {
			id := fetch.FromPayload(payload, origin, f.now())
			if err := fetch.StoreCache(sess, id); err != nil {
				f.log.Warn("caching refreshed identity", "error", err)
			}
		}
	}

	if err := f.sessions.Save(w, r, sess); err != nil {
		f.log.Error("saving session", "error", err)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleCachedInfo reports the identity the middleware resolved, without
// any remote traffic of its own.
func (f *UserFlow) handleCachedInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := fetch.IdentityFromContext(r.Context())
	if !ok {
		id = fetch.Guest(identity.LocalOrigin())
	}
	respondOK(w, http.StatusOK, map[string]any{
		"user": id,
		"host": id.Origin.Host(),
	})
}

// safeRedirect restricts redirect targets to same-site paths.
func safeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return "/"
	}
	return target
}

// remoteMessage extracts the server-provided explanation from a client
// call failure.
func remoteMessage(err error) string {
	var rerr *client.RemoteError
	if errors.As(err, &rerr) && rerr.Message != "" {
		return rerr.Message
	}
	return "Login failed"
}
