package auth

import (
	"context"

	"github.com/ncfakude30/personal-asset-manager/internal/apperr"
)

const exchangeOp = "auth.exchange"

// Service exchanges a verified identity-provider token for a session token.
type Service struct {
	identity *TokenVerifier
	issuer   *Issuer
	opts     options
}

func NewService(identity *TokenVerifier, issuer *Issuer, opts ...Option) *Service {
	return &Service{identity: identity, issuer: issuer, opts: buildOptions(opts)}
}

// Exchange verifies identityToken and issues a session token for the user it names.
func (s *Service) Exchange(ctx context.Context, identityToken string) (SessionToken, error) {
	s.opts.metrics.Increment(exchangeOp + ".count")

	token, err := s.exchange(ctx, identityToken)
	if err != nil {
		s.opts.metrics.Increment(exchangeOp + ".failure")
		return SessionToken{}, err
	}

	s.opts.metrics.Increment(exchangeOp + ".success")
	return token, nil
}

func (s *Service) exchange(ctx context.Context, identityToken string) (SessionToken, error) {
	if _, err := s.identity.Verify(ctx, identityToken); err != nil {
		return SessionToken{}, err
	}

	userID, ok, err := s.identity.ExtractUserID(identityToken)
	if err != nil {
		return SessionToken{}, err
	}
	if !ok {
		return SessionToken{}, apperr.Unauthenticated(exchangeOp, "user id could not be extracted", nil)
	}

	return s.issuer.Issue(userID)
}
