package fetch

import (
	"context"
	"net/http"

	"github.com/project-starfall/identity"
)

// SessionProvider loads and persists the per-visitor session a request
// carries. Save must be called after the controller has mutated the
// session, before the response body is written.
type SessionProvider interface {
	Load(r *http.Request) (Session, error)
	Save(w http.ResponseWriter, r *http.Request, sess Session) error
}

type contextKey struct{}

// IdentityFromContext returns the identity resolved by Middleware for this
// request. ok is false when the request did not pass through it.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// WithIdentity returns a context carrying id. Exposed for handler tests.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// Middleware resolves the request's identity through ctrl and injects it
// into the request context. Requests whose cached identity is stale are
// redirected through the refresh path instead of reaching the handler.
// Session load failures degrade to Guest rather than failing the request.
func Middleware(ctrl *Controller, sessions SessionProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r)
			if err != nil {
				ctx := WithIdentity(r.Context(), Guest(identity.LocalOrigin()))
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			d := ctrl.Resolve(r.Context(), sess, r.URL.Path)
			if err := sessions.Save(w, r, sess); err != nil {
				ctrl.log.Warn("saving session failed", "error", err)
			}

			if d.ShortCircuit() {
				http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
				return
			}

			ctx := WithIdentity(r.Context(), d.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
