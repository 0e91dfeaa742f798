// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/carterperez-dev/coursegate/internal/audit"
	"github.com/carterperez-dev/coursegate/internal/core"
	"github.com/carterperez-dev/coursegate/internal/principal"
)

type TokenVerifier interface {
	VerifyAccessToken(
		ctx context.Context,
		token string,
	) (principal.Principal, error)
}

var errNoToken = errors.New("missing authorization token")

// authenticate resolves the bearer token on r to a principal with a known
// role.
func authenticate(r *http.Request, verifier TokenVerifier) (principal.Principal, error) {
	token := ExtractToken(r)
	if token == "" {
		return principal.Principal{}, errNoToken
	}

	p, err := verifier.VerifyAccessToken(r.Context(), token)
	if err != nil {
		return principal.Principal{}, err
	}
	if err := p.Validate(); err != nil {
		return principal.Principal{}, core.ErrTokenInvalid
	}
	return p, nil
}

func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authenticate(r, verifier)
			if err != nil {
				core.JSONError(w, authFailure(err))
				return
			}
			next.ServeHTTP(w, r.WithContext(principal.WithContext(r.Context(), p)))
		})
	}
}

// Provisioner maps a verified token subject to its stored account.
type Provisioner interface {
	Provision(ctx context.Context, p principal.Principal) (principal.Principal, error)
}

// Provision runs after Authenticator. It creates the subject's row on first
// sight and replaces the token's role with the stored one, so role changes
// made by an admin apply without reissuing tokens.
func Provision(store Provisioner) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(w, r)
			if !ok {
				return
			}
			stored, err := store.Provision(r.Context(), p)
			if err != nil {
				core.JSONError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(principal.WithContext(r.Context(), stored)))
		})
	}
}

// Chain composes middleware so the first runs outermost.
func Chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

func authFailure(err error) error {
	var appErr *core.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, errNoToken):
		return core.UnauthorizedError(errNoToken.Error())
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		return core.TokenRevokedError()
	}
	return core.TokenInvalidError()
}

// RequireRole rejects principals outside roles and records each denial on
// sink.
func RequireRole(
	sink audit.Sink,
	roles ...principal.Role,
) func(http.Handler) http.Handler {
	allowed := make(map[principal.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := CurrentPrincipal(w, r)
			if !ok {
				return
			}
			if !allowed[p.Role] {
				recordDenial(r, sink, p)
				core.JSONError(w, core.ForbiddenError("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireAdmin(sink audit.Sink) func(http.Handler) http.Handler {
	return RequireRole(sink, principal.RoleAdmin)
}

func recordDenial(r *http.Request, sink audit.Sink, p principal.Principal) {
	e := audit.NewEvent(audit.KindAdminDenied, p.UserID)
	e.Path = r.URL.Path
	e.RemoteAddr = r.RemoteAddr
	sink.Record(r.Context(), e.With("role", p.Role.String()))
}

// CurrentPrincipal writes a 401 and reports false when the request did not
// pass through Authenticator.
func CurrentPrincipal(
	w http.ResponseWriter,
	r *http.Request,
) (principal.Principal, bool) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		core.JSONError(w, core.UnauthorizedError("authentication required"))
		return principal.Principal{}, false
	}
	return p, true
}

// ExtractToken returns the credentials of a Bearer Authorization header.
func ExtractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func GetUserID(ctx context.Context) string {
	p, _ := principal.FromContext(ctx)
	return p.UserID
}
