// Package gatewayauth implements the platform's dual-path authentication:
// bearer JWTs verified against the identity provider's JWKS, and opaque API
// keys looked up by their SHA-256 hash. Both paths resolve to the same
// Principal shape so downstream handlers never branch on how a caller
// authenticated.
package gatewayauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"chatinvoice/apperror"
	"chatinvoice/storage"
)

// Principal is the authenticated caller, resolved from either auth path.
type Principal struct {
	UserID         string
	OrganizationID string
	Role           string
	AuthMethod     string // "bearer" or "api_key"
}

type contextKey struct{}

var principalKey = contextKey{}

// WithPrincipal returns a context carrying principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the Principal carried on ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// JWKSResolver fetches the current signing key for a JWT's key ID. Kept as
// an interface so the authenticator can be tested without a live JWKS
// endpoint.
type JWKSResolver interface {
	ResolveKey(keyID string) (any, error)
}

// Authenticator resolves a Principal from an inbound request.
type Authenticator struct {
	store    storage.Store
	jwks     JWKSResolver
	audience string
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(store storage.Store, jwks JWKSResolver, audience string) *Authenticator {
	return &Authenticator{store: store, jwks: jwks, audience: audience}
}

// Authenticate resolves a Principal from the request's Authorization
// header (a bearer JWT) or X-Api-Key header (an opaque key), provisioning
// a new user record just-in-time on a JWT's first use.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Principal, error) {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return a.authenticateAPIKey(ctx, key)
	}
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return a.authenticateBearer(ctx, strings.TrimPrefix(authz, "Bearer "))
	}
	return nil, apperror.New(apperror.Unauthenticated, "missing credentials")
}

func (a *Authenticator) authenticateAPIKey(ctx context.Context, rawKey string) (*Principal, error) {
	hash := HashAPIKey(rawKey)
	record, err := a.store.LookupAPIKeyByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	_ = a.store.TouchAPIKey(ctx, record.ID)
	return &Principal{
		OrganizationID: record.OrganizationID,
		AuthMethod:     "api_key",
	}, nil
}

// HashAPIKey returns the hex-encoded SHA-256 hash of an opaque API key;
// the raw key is never persisted, only its hash.
func HashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

func (a *Authenticator) authenticateBearer(ctx context.Context, raw string) (*Principal, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return a.jwks.ResolveKey(kid)
	}, jwt.WithAudience(a.audience), jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !token.Valid {
		return nil, apperror.Wrap(apperror.Unauthenticated, "invalid bearer token", err)
	}

	subject, _ := claims["sub"].(string)
	if subject == "" {
		return nil, apperror.New(apperror.Unauthenticated, "token missing subject")
	}
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	user, err := a.store.GetUserBySubject(ctx, subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		provisioned, err := a.store.CreateUser(ctx, storage.User{
			ID:        subject,
			Email:     email,
			Name:      name,
			Role:      "member",
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			return nil, err
		}
		user = provisioned
	}

	principal := &Principal{UserID: user.ID, Role: user.Role, AuthMethod: "bearer"}
	if user.OrganizationID != nil {
		principal.OrganizationID = *user.OrganizationID
	}
	return principal, nil
}

// RequireOrg returns an error unless principal is scoped to an
// organization, the gate every org-scoped handler runs after
// authentication.
func RequireOrg(p *Principal) error {
	if p == nil || p.OrganizationID == "" {
		return apperror.New(apperror.Forbidden, "account is not associated with an organization")
	}
	return nil
}
