// Package auth verifies caller identity at the request boundary and holds
// the single ownership predicate applied to every mutable entity.
//
// Tokens are issued by an external identity provider; this package only
// verifies HS256 bearer tokens and reads the caller id from the "sub" claim.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
)

// Caller is a verified request identity.
type Caller struct {
	ID string
}

type callerKey struct{}

// WithCaller returns a context carrying the caller.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller stored in ctx.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.ID != ""
}

// Require returns the caller stored in ctx or an ErrUnauthorized error.
func Require(ctx context.Context) (Caller, error) {
	c, ok := FromContext(ctx)
	if !ok {
		return Caller{}, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	return c, nil
}

// CanMutate reports whether caller may change an entity created by creatorID.
func CanMutate(caller Caller, creatorID string) bool {
	return caller.ID != "" && caller.ID == creatorID
}

// RequireOwner returns an ErrForbidden error unless caller created the entity.
func RequireOwner(caller Caller, creatorID, what string) error {
	if !CanMutate(caller, creatorID) {
		return apperr.New(apperr.ErrForbidden, "Permission denied. You are not the creator of this %s.", what)
	}
	return nil
}

// Verifier validates bearer tokens.
type Verifier struct {
	secret []byte
	issuer string
}

// NewVerifier creates a verifier for HS256 tokens signed with secret. When
// issuer is non-empty the "iss" claim must match it.
func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses a token and returns its caller.
func (v *Verifier) Verify(tokenStr string) (Caller, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %w", apperr.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return Caller{}, fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
	}
	return Caller{ID: claims.Subject}, nil
}

// Sign issues a token for userID valid for ttl. The identity provider owns
// issuance in production; this exists for tests and local tooling.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("authorization header is required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid authorization header format")
	}
	return token, nil
}

// Middleware attaches the verified caller to the request context when a
// valid bearer token is present. Requests without a valid token pass
// through anonymous; handlers that need a caller use Require.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := BearerToken(r)
		if err == nil {
			if caller, err := v.Verify(token); err == nil {
				r = r.WithContext(WithCaller(r.Context(), caller))
			}
		}
		next.ServeHTTP(w, r)
	})
}
