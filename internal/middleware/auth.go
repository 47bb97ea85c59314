package middleware

import (
	"context"
	"log"
	"net/http"

	"tush00nka/phonechat/internal/model"
	"tush00nka/phonechat/internal/pkg/auth"
	"tush00nka/phonechat/internal/pkg/httputils"
)

type contextKey struct{}

// SessionResolver turns a session token into the live user it belongs to.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (*model.User, error)
}

// Authenticator guards routes that need a signed in user.
type Authenticator struct {
	sessions SessionResolver
}

func NewAuthenticator(sessions SessionResolver) *Authenticator {
	return &Authenticator{sessions: sessions}
}

// Wrap rejects requests without a valid auth cookie and stores the user in the request context.
func (a *Authenticator) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Resolve(r)
		if err != nil {
			log.Printf("Failed to resolve session: %v", err)
			httputils.ResponseError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if user == nil {
			httputils.ResponseError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), user)))
	}
}

// Resolve returns the user of the request's auth cookie, or nil when there is none.
func (a *Authenticator) Resolve(r *http.Request) (*model.User, error) {
	cookie, err := r.Cookie(auth.CookieName)
	if err != nil {
		return nil, nil
	}
	return a.sessions.ResolveSession(r.Context(), cookie.Value)
}

func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(contextKey{}).(*model.User)
	return user, ok && user != nil
}
