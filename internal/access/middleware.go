package access

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/solarlink-crm/solarlink/internal/shared"
)

// Actor describes the authenticated principal acting on a request.
type Actor struct {
	ID          int64
	DisplayName string
	Role        Role
	// Approved reports whether the account cleared the approval gate. Head
	// roles bypass the gate; a PENDING field user may authenticate but is
	// blocked from lifecycle-mutating operations until approved.
	Approved bool
}

// ActorSource resolves the session user ID to an Actor.
type ActorSource interface {
	ResolveActor(ctx context.Context, userID string) (Actor, error)
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Middleware wires access policy checks into HTTP routes.
type Middleware struct {
	Source ActorSource
	Logger *slog.Logger
}

// Authenticated resolves the session user and stores the actor in context
// without any policy check. Profile completion and read-your-own endpoints
// mount under this.
func (m Middleware) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Require ensures the current user may invoke the action. The check runs
// before any handler state mutation, so a denied call never touches the
// timeline or ledger.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.resolve(w, r)
			if !ok {
				return
			}
			if !actor.Approved {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if !CanPerform(actor.Role, action) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

func (m Middleware) resolve(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.User() == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return Actor{}, false
	}
	actor, err := m.Source.ResolveActor(r.Context(), sess.User())
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("resolve actor", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return Actor{}, false
	}
	return actor, true
}
