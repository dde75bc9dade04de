package auth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
)

const (
	issueOp = "auth.issue_session_token"

	DefaultSessionExpiry = "1h"
)

// SessionConfig holds the signing secret and expiry used for session tokens.
// ExpiresIn accepts Go duration syntax, a day count such as "7d", or a bare
// number of seconds.
type SessionConfig struct {
	SecretKey string
	ExpiresIn string
}

type SessionToken struct {
	Token     string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Issuer struct {
	cfg  SessionConfig
	opts options
}

func NewIssuer(cfg SessionConfig, opts ...Option) *Issuer {
	return &Issuer{cfg: cfg, opts: buildOptions(opts)}
}

// Issue signs a session token for userID. A missing secret is reported here
// rather than at startup.
func (i *Issuer) Issue(userID string) (SessionToken, error) {
	i.opts.metrics.Increment(issueOp + ".count")

	token, err := i.issue(userID)
	if err != nil {
		i.opts.metrics.Increment(issueOp + ".failure")
		return SessionToken{}, err
	}

	i.opts.metrics.Increment(issueOp + ".success")
	i.opts.metrics.Increment(issueOp + ".issued")
	return token, nil
}

func (i *Issuer) issue(userID string) (SessionToken, error) {
	if i.cfg.SecretKey == "" {
		return SessionToken{}, apperr.Configuration(issueOp, "secret key is not configured", nil)
	}
	expiry, err := ParseExpiry(i.cfg.ExpiresIn)
	if err != nil {
		return SessionToken{}, apperr.Configuration(issueOp, "invalid session token expiry", err)
	}
	if strings.TrimSpace(userID) == "" {
		return SessionToken{}, apperr.Unauthenticated(issueOp, "user id is required", nil)
	}

	issuedAt := i.opts.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(expiry)

	claims := tokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.SecretKey))
	if err != nil {
		return SessionToken{}, apperr.Configuration(issueOp, "failed to sign session token", err)
	}

	return SessionToken{
		Token:     signed,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseExpiry parses a session expiry. An empty value yields DefaultSessionExpiry.
func ParseExpiry(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = DefaultSessionExpiry
	}

	var d time.Duration
	switch {
	case strings.HasSuffix(value, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(value, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", value)
		}
		d = time.Duration(days) * 24 * time.Hour
	default:
		if secs, err := strconv.Atoi(value); err == nil {
			d = time.Duration(secs) * time.Second
			break
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, err
		}
		d = parsed
	}

	if d <= 0 {
		return 0, fmt.Errorf("expiry must be positive, got %q", value)
	}
	return d, nil
}
