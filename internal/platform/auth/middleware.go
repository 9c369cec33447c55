package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
)

const (
	defaultRoleClaim     = "role"
	defaultLocaleClaim   = "locale"
	defaultEmailClaim    = "email"
	defaultFallbackRole  = RoleUser
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier checks a Firebase ID token and returns its decoded claims.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// UserGetter loads Firebase user records on demand.
type UserGetter interface {
	GetUser(ctx context.Context, uid string) (*firebaseauth.UserRecord, error)
}

// Authenticator turns Firebase token verification into chi middleware.
type Authenticator struct {
	verifier TokenVerifier
	users    UserGetter

	roleClaim   string
	localeClaim string
	emailClaim  string

	fallbackRole string
	timeout      time.Duration
}

// Option adjusts Authenticator construction.
type Option func(*Authenticator)

// WithUserGetter lets identities load their Firebase user record lazily.
func WithUserGetter(getter UserGetter) Option {
	return func(a *Authenticator) {
		a.users = getter
	}
}

// WithRoleClaim changes which custom claim carries roles.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithLocaleClaim changes which claim fills Identity.Locale.
func WithLocaleClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.localeClaim = claim
		}
	}
}

// WithEmailClaim changes which claim fills Identity.Email.
func WithEmailClaim(claim string) Option {
	return func(a *Authenticator) {
		claim = strings.TrimSpace(claim)
		if claim != "" {
			a.emailClaim = claim
		}
	}
}

// WithFallbackRole assigns this role to tokens carrying no role claim.
func WithFallbackRole(role string) Option {
	return func(a *Authenticator) {
		role = canonicalRole(role)
		if role != "" {
			a.fallbackRole = role
		}
	}
}

// WithVerificationTimeout bounds token verification and user lookups.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator builds an Authenticator over the given verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:     verifier,
		roleClaim:    defaultRoleClaim,
		localeClaim:  defaultLocaleClaim,
		emailClaim:   defaultEmailClaim,
		fallbackRole: defaultFallbackRole,
		timeout:      defaultVerifyTimeout,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	return a
}

// RequireFirebaseAuth rejects requests without a valid bearer token; when roles
// are given, the identity must hold at least one of them.
func (a *Authenticator) RequireFirebaseAuth(allowedRoles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		if role = canonicalRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearer(r.Header.Get("Authorization"))
			if !ok {
				denyRequest(w, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				denyRequest(w, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := a.boundedContext(r.Context())
			if cancel != nil {
				defer cancel()
			}

			token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
			if err != nil {
				denyVerifyFailure(w, err)
				return
			}

			identity := a.identityFromToken(token)
			if len(identity.Roles) == 0 {
				denyRequest(w, "missing_role", "no roles associated with identity")
				return
			}
			if len(allowed) > 0 && !holdsAllowedRole(identity.Roles, allowed) {
				denyRequest(w, "insufficient_role", "identity does not have required role")
				return
			}

			if a.users != nil {
				identity.userLoader = func(ctx context.Context, uid string) (*firebaseauth.UserRecord, error) {
					if uid == "" {
						uid = identity.UID
					}
					ctx, cancel := a.boundedContext(ctx)
					if cancel != nil {
						defer cancel()
					}
					return a.users.GetUser(ctx, uid)
				}
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// identityFromToken maps the verified token onto an Identity, falling back to
// the standard claim names when the configured ones are absent.
func (a *Authenticator) identityFromToken(token *firebaseauth.Token) *Identity {
	identity := &Identity{
		UID:    token.UID,
		Email:  claimString(token.Claims, a.emailClaim),
		Locale: claimString(token.Claims, a.localeClaim),
		Roles:  claimRoles(token.Claims, a.roleClaim),
		token:  token,
	}
	if identity.Email == "" {
		identity.Email = claimString(token.Claims, defaultEmailClaim)
	}
	if identity.Locale == "" {
		identity.Locale = claimString(token.Claims, defaultLocaleClaim)
	}
	if len(identity.Roles) == 0 && a.fallbackRole != "" {
		identity.Roles = []string{a.fallbackRole}
	}
	return identity
}

func (a *Authenticator) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a == nil || a.timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, a.timeout)
}

func holdsAllowedRole(roles []string, allowed map[string]struct{}) bool {
	for _, role := range roles {
		if _, ok := allowed[canonicalRole(role)]; ok {
			return true
		}
	}
	return false
}

// claimRoles reads the role claim in the shapes Firebase custom claims take:
// a single string, a list, or a role-to-bool map.
func claimRoles(claims map[string]interface{}, key string) []string {
	raw, ok := claims[key]
	if !ok {
		return nil
	}

	var collected roleList
	switch v := raw.(type) {
	case string:
		collected.add(v)
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				collected.add(str)
			}
		}
	case []string:
		for _, item := range v {
			collected.add(item)
		}
	case map[string]interface{}:
		for name, value := range v {
			if granted, ok := value.(bool); ok && granted {
				collected.add(name)
			}
		}
	}
	return collected.roles
}

type roleList struct {
	roles []string
	seen  map[string]struct{}
}

func (l *roleList) add(raw string) {
	role := canonicalRole(raw)
	if role == "" {
		return
	}
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	if _, dup := l.seen[role]; dup {
		return
	}
	l.seen[role] = struct{}{}
	l.roles = append(l.roles, role)
}

func claimString(claims map[string]interface{}, key string) string {
	if str, ok := claims[key].(string); ok {
		return strings.TrimSpace(str)
	}
	return ""
}

func canonicalRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func extractBearer(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func denyRequest(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  http.StatusUnauthorized,
	})
}

func denyVerifyFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		denyRequest(w, "token_expired", "firebase id token expired")
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		denyRequest(w, "invalid_token", "firebase id token invalid")
	default:
		denyRequest(w, "invalid_token", "firebase id token verification failed")
	}
}
