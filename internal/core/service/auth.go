package service

import (
	"context"
	"fmt"

	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
)

// AuthService logs a user in by signing a portal challenge.
type AuthService struct {
	signer Signer
	portal Portal
}

// NewAuthService creates a new AuthService.
func NewAuthService(s Signer, p Portal) *AuthService {
	return &AuthService{signer: s, portal: p}
}

// Login fetches a nonce, has the agent sign it and submits the signature.
// The returned identity carries the portal user ID; the portal session
// cookie stays in the Portal's cookie jar.
func (s *AuthService) Login(ctx context.Context) (*domain.Identity, error) {
	log := logger.L(ctx)

	nonce, err := s.portal.Nonce(ctx)
	if err != nil {
		return nil, fmt.Errorf("issue challenge: %w", err)
	}

	signature, err := s.signer.Sign(ctx, nonce)
	if err != nil {
		log.Warn("login signing failed", "error", err)
		return nil, fmt.Errorf("sign challenge: %w", err)
	}

	userID, err := s.portal.Check(ctx, signature, nonce)
	if err != nil {
		log.Warn("login rejected", "error", err)
		return nil, fmt.Errorf("verify signature: %w", err)
	}
	if userID <= 0 {
		return nil, domain.ErrRemote.WithDetails("portal returned no user id")
	}

	log.Info("login succeeded", "user_id", userID)
	return &domain.Identity{UserID: userID, Nonce: nonce}, nil
}
