package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/security"
)

var ErrTwoFactorNotEnrolled = errors.New("two-factor authentication is not set up")

const recoveryCodeCount = 8

// TwoFactorService drives the disabled -> pending -> enabled state machine.
// The shared secret is encrypted at rest with the app key; recovery codes are
// single use and replaced only as a full set.
type TwoFactorService struct {
	users  repository.UserRepository
	key    []byte
	issuer string
}

func NewTwoFactorService(users repository.UserRepository, key []byte, issuer string) *TwoFactorService {
	return &TwoFactorService{users: users, key: key, issuer: issuer}
}

// Enroll generates a fresh secret and recovery codes and parks the user in
// the pending state. The secret is returned once for the authenticator app;
// enabling requires a Confirm with a valid code.
func (s *TwoFactorService) Enroll(ctx context.Context, user *models.User) (secret, otpauthURL string, codes []string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	encrypted, err := security.EncryptSecret(s.key, key.Secret())
	if err != nil {
		return "", "", nil, err
	}

	codes, err = security.GenerateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return "", "", nil, err
	}
	encodedCodes, err := json.Marshal(codes)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to encode recovery codes: %w", err)
	}

	err = s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
		"two_factor_secret":         encrypted,
		"two_factor_enabled":        false,
		"two_factor_recovery_codes": string(encodedCodes),
		"two_factor_confirmed_at":   nil,
	})
	if err != nil {
		return "", "", nil, err
	}

	user.TwoFactorSecret = encrypted
	user.TwoFactorEnabled = false
	user.TwoFactorRecoveryCodes = encodedCodes
	user.TwoFactorConfirmedAt = nil

	return key.Secret(), key.URL(), codes, nil
}

// Confirm validates a code against the pending secret and, on success,
// flips the state to enabled. A failed code leaves everything untouched.
func (s *TwoFactorService) Confirm(ctx context.Context, user *models.User, code string) (bool, error) {
	ok, err := s.Verify(user, code)
	if err != nil || !ok {
		return false, err
	}

	now := time.Now()
	err = s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
		"two_factor_enabled":      true,
		"two_factor_confirmed_at": now,
	})
	if err != nil {
		return false, err
	}

	user.TwoFactorEnabled = true
	user.TwoFactorConfirmedAt = &now
	return true, nil
}

// Verify checks a TOTP code against the stored secret with one step of
// allowed clock drift. It mutates nothing.
func (s *TwoFactorService) Verify(user *models.User, code string) (bool, error) {
	if user.TwoFactorSecret == "" {
		return false, ErrTwoFactorNotEnrolled
	}

	secret, err := security.DecryptSecret(s.key, user.TwoFactorSecret)
	if err != nil {
		return false, err
	}

	ok, err := totp.ValidateCustom(code, secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// VerifyRecovery consumes a recovery code: on exact match the code is
// removed from the set and the reduced set persisted. No match, no mutation.
func (s *TwoFactorService) VerifyRecovery(ctx context.Context, user *models.User, code string) (bool, error) {
	codes := user.RecoveryCodes()
	idx := -1
	for i, c := range codes {
		if c == code {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}

	remaining := append(append([]string{}, codes[:idx]...), codes[idx+1:]...)
	encoded, err := json.Marshal(remaining)
	if err != nil {
		return false, fmt.Errorf("failed to encode recovery codes: %w", err)
	}

	err = s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
		"two_factor_recovery_codes": string(encoded),
	})
	if err != nil {
		return false, err
	}

	user.TwoFactorRecoveryCodes = encoded
	return true, nil
}

// Disable performs a full reset: flag, secret, recovery codes and the
// confirmation timestamp are all cleared, whether the enrollment was pending
// or confirmed. Re-enrollment always starts from scratch.
func (s *TwoFactorService) Disable(ctx context.Context, user *models.User) error {
	err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
		"two_factor_enabled":        false,
		"two_factor_secret":         "",
		"two_factor_recovery_codes": nil,
		"two_factor_confirmed_at":   nil,
	})
	if err != nil {
		return err
	}

	user.TwoFactorEnabled = false
	user.TwoFactorSecret = ""
	user.TwoFactorRecoveryCodes = nil
	user.TwoFactorConfirmedAt = nil
	return nil
}

// RegenerateRecoveryCodes replaces the entire set.
func (s *TwoFactorService) RegenerateRecoveryCodes(ctx context.Context, user *models.User) ([]string, error) {
	if user.TwoFactorSecret == "" {
		return nil, ErrTwoFactorNotEnrolled
	}

	codes, err := security.GenerateRecoveryCodes(recoveryCodeCount)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(codes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode recovery codes: %w", err)
	}

	err = s.users.UpdateFields(ctx, user.ID, map[string]interface{}{
		"two_factor_recovery_codes": string(encoded),
	})
	if err != nil {
		return nil, err
	}

	user.TwoFactorRecoveryCodes = encoded
	return codes, nil
}

// ProvisioningURI rebuilds the otpauth URL for the stored secret, used by
// the QR-code endpoint during a pending enrollment.
func (s *TwoFactorService) ProvisioningURI(user *models.User) (string, error) {
	if user.TwoFactorSecret == "" {
		return "", ErrTwoFactorNotEnrolled
	}
	secret, err := security.DecryptSecret(s.key, user.TwoFactorSecret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		s.issuer, user.Email, secret, s.issuer), nil
}
