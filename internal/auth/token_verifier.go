package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
)

const extractOp = "auth.extract_user_id"

// Failure reasons, emitted as the suffix of the verify counter.
const (
	reasonMalformed        = "malformed_token"
	reasonMissingUserID    = "invalid_token"
	reasonMissingExpiry    = "missing_expiry"
	reasonExpired          = "expired_token"
	reasonInvalidSignature = "invalid_signature"
	reasonFailure          = "failure"
)

// tokenClaims is the claim set shared by identity and session tokens.
type tokenClaims struct {
	UserID string `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier decodes a bearer JWT and checks its userId and exp claims.
//
// Without a key it only decodes the token structurally. With a key it also
// requires a valid HS256 signature.
type TokenVerifier struct {
	op         string
	key        []byte
	requireKey bool
	parser     *jwt.Parser
	opts       options
}

// NewIdentityVerifier verifies tokens minted by the external identity provider.
// providerKey is optional; when empty only the token structure is checked.
func NewIdentityVerifier(providerKey string, opts ...Option) *TokenVerifier {
	v := newTokenVerifier("auth.verify_identity_token", opts)
	if providerKey != "" {
		v.key = []byte(providerKey)
	}
	return v
}

// NewSessionVerifier verifies session tokens minted by Issuer with the same secret.
func NewSessionVerifier(secretKey string, opts ...Option) *TokenVerifier {
	v := newTokenVerifier("auth.verify_session_token", opts)
	v.requireKey = true
	if secretKey != "" {
		v.key = []byte(secretKey)
	}
	return v
}

func newTokenVerifier(op string, opts []Option) *TokenVerifier {
	return &TokenVerifier{
		op: op,
		parser: jwt.NewParser(
			jwt.WithoutClaimsValidation(),
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		),
		opts: buildOptions(opts),
	}
}

func (v *TokenVerifier) Verify(ctx context.Context, token string) (Claims, error) {
	v.opts.metrics.Increment(v.op + ".count")

	claims, reason, err := v.verify(token)
	if err != nil {
		v.opts.metrics.Increment(v.op + "." + reason)
		return Claims{}, err
	}

	v.opts.metrics.Increment(v.op + ".success")
	return claims, nil
}

func (v *TokenVerifier) verify(token string) (Claims, string, error) {
	decoded, reason, err := v.decode(v.op, token)
	if err != nil {
		return Claims{}, reason, err
	}

	if decoded.UserID == "" {
		return Claims{}, reasonMissingUserID, apperr.Unauthenticated(v.op, "invalid token: user id is missing", nil)
	}
	if decoded.ExpiresAt == nil {
		return Claims{}, reasonMissingExpiry, apperr.Unauthenticated(v.op, "invalid token: expiry is missing", nil)
	}
	// exp equal to the current second is still valid.
	if decoded.ExpiresAt.Unix() < v.opts.now().Unix() {
		return Claims{}, reasonExpired, apperr.Unauthenticated(v.op, "token has expired", nil)
	}

	claims := Claims{
		UserID:    decoded.UserID,
		ExpiresAt: decoded.ExpiresAt.Time,
	}
	if decoded.IssuedAt != nil {
		claims.IssuedAt = decoded.IssuedAt.Time
	}
	return claims, "", nil
}

// ExtractUserID returns the userId claim without checking expiry. A token
// that decodes but has no userId yields ok == false and a nil error.
func (v *TokenVerifier) ExtractUserID(token string) (userID string, ok bool, err error) {
	v.opts.metrics.Increment(extractOp + ".count")

	decoded, _, err := v.decode(extractOp, token)
	if err != nil {
		v.opts.metrics.Increment(extractOp + ".failure")
		return "", false, err
	}

	v.opts.metrics.Increment(extractOp + ".success")
	if decoded.UserID == "" {
		return "", false, nil
	}
	return decoded.UserID, true, nil
}

func (v *TokenVerifier) decode(op, token string) (*tokenClaims, string, error) {
	if v.requireKey && len(v.key) == 0 {
		return nil, reasonFailure, apperr.Configuration(op, "session secret key is not configured", nil)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, reasonMalformed, apperr.Unauthenticated(op, "token is required", nil)
	}

	claims := &tokenClaims{}
	if len(v.key) == 0 {
		if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
			return nil, reasonMalformed, apperr.Unauthenticated(op, "invalid token", err)
		}
		return claims, "", nil
	}

	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
			return nil, reasonInvalidSignature, apperr.Unauthenticated(op, "invalid token signature", err)
		}
		return nil, reasonMalformed, apperr.Unauthenticated(op, "invalid token", err)
	}
	return claims, "", nil
}
