package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/security"
)

var (
	// ErrTokenInvalid covers not-found and wrong-secret alike; callers never
	// learn which.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenExpired is only returned after the hash matched, since the
	// presenter already knows the secret.
	ErrTokenExpired = errors.New("token has expired")
)

const tokenSecretLength = 40

// TokenService is the bearer-token ledger: it issues, authenticates and
// revokes capability-bearing credentials.
type TokenService struct {
	tokens repository.TokenRepository
}

func NewTokenService(tokens repository.TokenRepository) *TokenService {
	return &TokenService{tokens: tokens}
}

// Issue creates a token for the user and returns the record plus the
// plaintext credential "{id}|{secret}". The plaintext is never stored and
// cannot be recovered later. Empty abilities default to the wildcard.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID, name string, abilities []string, expiresAt *time.Time) (*models.AccessToken, string, error) {
	if len(abilities) == 0 {
		abilities = []string{roles.Wildcard}
	}

	secret, err := security.RandomToken(tokenSecretLength)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token secret: %w", err)
	}

	encoded, err := json.Marshal(abilities)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode abilities: %w", err)
	}

	token := &models.AccessToken{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		TokenHash: security.HashToken(secret),
		Abilities: datatypes.JSON(encoded),
		ExpiresAt: expiresAt,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, "", err
	}

	return token, token.ID.String() + "|" + secret, nil
}

// Authenticate resolves a presented credential to its token record. Expired
// tokens are deleted eagerly and reported as expired; every other failure is
// ErrTokenInvalid. On success the last-used timestamp is touched off the
// request path.
func (s *TokenService) Authenticate(ctx context.Context, presented string) (*models.AccessToken, error) {
	id, secret, ok := strings.Cut(presented, "|")
	if !ok || secret == "" {
		return nil, ErrTokenInvalid
	}

	tokenID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	token, err := s.tokens.ByID(ctx, tokenID)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	if !security.HashEquals(token.TokenHash, secret) {
		return nil, ErrTokenInvalid
	}

	if token.Expired(time.Now()) {
		if err := s.tokens.Delete(ctx, token.ID); err != nil {
			slog.Error("failed to delete expired token", "token_id", token.ID, "error", err)
		}
		return nil, ErrTokenExpired
	}

	go func(id uuid.UUID) {
		if err := s.tokens.TouchLastUsed(context.Background(), id, time.Now()); err != nil {
			slog.Error("failed to touch token last_used_at", "token_id", id, "error", err)
		}
	}(token.ID)

	return token, nil
}

func (s *TokenService) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	return s.tokens.Delete(ctx, tokenID)
}

func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.DeleteForUser(ctx, userID)
}

func (s *TokenService) RevokeAllExcept(ctx context.Context, userID, keepID uuid.UUID) error {
	return s.tokens.DeleteForUserExcept(ctx, userID, keepID)
}

func (s *TokenService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.AccessToken, error) {
	return s.tokens.ListForUser(ctx, userID)
}

func (s *TokenService) CountActiveForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.tokens.CountActiveForUser(ctx, userID, time.Now())
}

// Find returns a token owned by the given user, repository.ErrNotFound
// otherwise. Ownership is part of the lookup so a foreign token id behaves
// exactly like a missing one.
func (s *TokenService) Find(ctx context.Context, userID, tokenID uuid.UUID) (*models.AccessToken, error) {
	token, err := s.tokens.ByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return token, nil
}
