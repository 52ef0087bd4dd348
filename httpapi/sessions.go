package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/project-starfall/identity/fetch"
)

const sessionName = "identity_session"

// CookieSessions adapts a gorilla/sessions store to the session surface the
// fetch controller works against. Values are kept as strings only.
type CookieSessions struct {
	store sessions.Store
}

// NewCookieSessions builds a cookie-backed session provider keyed by
// secret. HttpOnly and SameSite=Lax are always set.
func NewCookieSessions(secret []byte) *CookieSessions {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &CookieSessions{store: store}
}

type cookieSession struct {
	inner *sessions.Session
}

func (s *cookieSession) Get(key string) (string, bool) {
	v, ok := s.inner.Values[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *cookieSession) Set(key, value string) {
	s.inner.Values[key] = value
}

func (s *cookieSession) Delete(key string) {
	delete(s.inner.Values, key)
}

// Load fetches (or lazily creates) the request's session. New sessions get
// a random ID so audit trails can correlate a browser across requests.
func (p *CookieSessions) Load(r *http.Request) (fetch.Session, error) {
	sess, err := p.store.Get(r, sessionName)
	if err != nil {
		// A bad or tampered cookie decodes to a fresh session; only
		// store-level failures are worth surfacing.
		if sess == nil {
			return nil, err
		}
	}
	if sess.IsNew {
		sess.Values["sid"] = uuid.NewString()
	}
	return &cookieSession{inner: sess}, nil
}

// Save persists sess back onto the response.
func (p *CookieSessions) Save(w http.ResponseWriter, r *http.Request, sess fetch.Session) error {
	cs, ok := sess.(*cookieSession)
	if !ok {
		return nil
	}
	return cs.inner.Save(r, w)
}
