package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/security"
)

type mockMailer struct {
	mu            sync.Mutex
	verifications int
	resets        int
	lastToken     string
}

func (m *mockMailer) SendVerificationEmail(_ context.Context, _ *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications++
	m.lastToken = token
	return nil
}

func (m *mockMailer) SendPasswordResetEmail(_ context.Context, _ *models.User, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.lastToken = token
	return nil
}

type authFixture struct {
	svc       *AuthService
	tokens    *TokenService
	tokenRepo *mockTokenRepo
	users     *mockUserRepo
	socials   *mockSocialRepo
	resets    *mockResetTokenRepo
	verifies  *mockVerificationTokenRepo
	twoFactor *TwoFactorService
	mailer    *mockMailer
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		tokenRepo: newMockTokenRepo(),
		users:     &mockUserRepo{},
		socials:   &mockSocialRepo{},
		resets:    &mockResetTokenRepo{},
		verifies:  &mockVerificationTokenRepo{},
		mailer:    &mockMailer{},
	}
	f.tokens = NewTokenService(f.tokenRepo)
	f.twoFactor = NewTwoFactorService(f.users, twoFactorKey, "Timberline")
	f.svc = NewAuthService(AuthServiceParams{
		Users:        f.users,
		Socials:      f.socials,
		ResetTokens:  f.resets,
		VerifyTokens: f.verifies,
		Tokens:       f.tokens,
		TwoFactor:    f.twoFactor,
		Mailer:       f.mailer,
		TokenExpiry:  30 * 24 * time.Hour,
		ResetExpiry:  time.Hour,
	})
	return f
}

func activeUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &models.User{
		ID:       uuid.New(),
		Name:     "Hans",
		Email:    "hans@example.com",
		Password: string(hash),
		Role:     roles.Free,
		IsActive: true,
	}
}

func TestRegister(t *testing.T) {
	t.Run("new account gets a free-tier token", func(t *testing.T) {
		f := newAuthFixture()
		var created *models.User
		f.users.CreateFunc = func(_ context.Context, user *models.User) error {
			created = user
			return nil
		}

		auth, err := f.svc.Register(context.Background(), RegisterParams{
			Name:     "Hans",
			Email:    "Hans@Example.com",
			Password: "correct-horse",
		})
		require.NoError(t, err)

		require.NotNil(t, created)
		assert.Equal(t, "hans@example.com", created.Email)
		assert.Equal(t, roles.Free, created.Role)
		assert.True(t, created.IsActive)
		assert.NotEqual(t, "correct-horse", created.Password)

		assert.Equal(t, "Bearer", auth.TokenType)
		assert.NotEmpty(t, auth.Token)
		assert.Equal(t, roles.Abilities(roles.Free), auth.Abilities)

		token, err := f.tokens.Authenticate(context.Background(), auth.Token)
		require.NoError(t, err)
		assert.True(t, token.Can("timber:read"))
		assert.False(t, token.Can("timber:create"))
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		f := newAuthFixture()
		f.users.ByEmailFunc = func(_ context.Context, email string) (*models.User, error) {
			return &models.User{Email: email}, nil
		}

		_, err := f.svc.Register(context.Background(), RegisterParams{Email: "hans@example.com", Password: "pw"})
		assert.ErrorIs(t, err, ErrEmailTaken)
	})
}

func TestLogin(t *testing.T) {
	t.Run("valid credentials issue a token", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")
		f.users.ByEmailFunc = func(context.Context, string) (*models.User, error) { return user, nil }

		result, err := f.svc.Login(context.Background(), LoginParams{
			Email:    "hans@example.com",
			Password: "correct-horse",
			IP:       "203.0.113.9",
		})
		require.NoError(t, err)
		assert.False(t, result.RequiresTwoFactor)
		require.NotNil(t, result.Auth)
		assert.NotEmpty(t, result.Auth.Token)
		assert.NotNil(t, user.LastLoginAt)
		assert.Equal(t, "203.0.113.9", user.LastLoginIP)
	})

	t.Run("unknown email and wrong password look identical", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")
		f.users.ByEmailFunc = func(_ context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, repository.ErrNotFound
		}

		_, errUnknown := f.svc.Login(context.Background(), LoginParams{Email: "nobody@example.com", Password: "x"})
		_, errWrongPw := f.svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "wrong"})
		assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
		assert.ErrorIs(t, errWrongPw, ErrInvalidCredentials)
	})

	t.Run("deactivated account is refused after the password check", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")
		user.IsActive = false
		f.users.ByEmailFunc = func(context.Context, string) (*models.User, error) { return user, nil }

		_, err := f.svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "correct-horse"})
		assert.ErrorIs(t, err, ErrAccountDisabled)

		_, err = f.svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "wrong"})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestLoginTwoFactor(t *testing.T) {
	setup := func(t *testing.T) (*authFixture, *models.User, string) {
		t.Helper()
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")
		f.users.ByEmailFunc = func(context.Context, string) (*models.User, error) { return user, nil }

		secret, _, _, err := f.twoFactor.Enroll(context.Background(), user)
		require.NoError(t, err)
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)
		ok, err := f.twoFactor.Confirm(context.Background(), user, code)
		require.NoError(t, err)
		require.True(t, ok)
		return f, user, secret
	}

	t.Run("password alone yields a challenge, not a token", func(t *testing.T) {
		f, user, _ := setup(t)

		result, err := f.svc.Login(context.Background(), LoginParams{Email: user.Email, Password: "correct-horse"})
		require.NoError(t, err)
		assert.True(t, result.RequiresTwoFactor)
		assert.Nil(t, result.Auth)

		count, err := f.tokens.CountActiveForUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("valid code completes the login", func(t *testing.T) {
		f, user, secret := setup(t)
		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		result, err := f.svc.Login(context.Background(), LoginParams{
			Email:         user.Email,
			Password:      "correct-horse",
			TwoFactorCode: code,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Auth)
		assert.NotEmpty(t, result.Auth.Token)
	})

	t.Run("invalid code is rejected", func(t *testing.T) {
		f, user, _ := setup(t)

		_, err := f.svc.Login(context.Background(), LoginParams{
			Email:         user.Email,
			Password:      "correct-horse",
			TwoFactorCode: "000000",
		})
		assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	})

	t.Run("recovery code works once", func(t *testing.T) {
		f, user, _ := setup(t)
		codes := user.RecoveryCodes()
		require.NotEmpty(t, codes)

		result, err := f.svc.Login(context.Background(), LoginParams{
			Email:        user.Email,
			Password:     "correct-horse",
			RecoveryCode: codes[0],
		})
		require.NoError(t, err)
		require.NotNil(t, result.Auth)

		_, err = f.svc.Login(context.Background(), LoginParams{
			Email:        user.Email,
			Password:     "correct-horse",
			RecoveryCode: codes[0],
		})
		assert.ErrorIs(t, err, ErrInvalidTwoFactorCode)
	})
}

func TestChangePassword(t *testing.T) {
	t.Run("wrong current password is refused", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")

		err := f.svc.ChangePassword(context.Background(), user, "wrong", "new-password", uuid.New())
		assert.ErrorIs(t, err, ErrWrongPassword)
	})

	t.Run("other sessions are revoked, the current survives", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")

		current, currentPlain, err := f.tokens.Issue(context.Background(), user.ID, "auth-token", nil, nil)
		require.NoError(t, err)
		_, otherPlain, err := f.tokens.Issue(context.Background(), user.ID, "auth-token", nil, nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.ChangePassword(context.Background(), user, "correct-horse", "new-password", current.ID))

		_, err = f.tokens.Authenticate(context.Background(), currentPlain)
		assert.NoError(t, err)
		_, err = f.tokens.Authenticate(context.Background(), otherPlain)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}

func TestPasswordReset(t *testing.T) {
	t.Run("forgot password is silent for unknown addresses", func(t *testing.T) {
		f := newAuthFixture()
		created := false
		f.resets.CreateFunc = func(context.Context, *models.PasswordResetToken) error {
			created = true
			return nil
		}

		err := f.svc.ForgotPassword(context.Background(), "nobody@example.com", "203.0.113.9")
		assert.NoError(t, err)
		assert.False(t, created)
	})

	t.Run("forgot password stores a hash, not the token", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")
		f.users.ByEmailFunc = func(context.Context, string) (*models.User, error) { return user, nil }

		var stored *models.PasswordResetToken
		f.resets.CreateFunc = func(_ context.Context, token *models.PasswordResetToken) error {
			stored = token
			return nil
		}

		require.NoError(t, f.svc.ForgotPassword(context.Background(), user.Email, "203.0.113.9"))
		require.NotNil(t, stored)
		assert.Len(t, stored.TokenHash, 64)
		assert.True(t, stored.ExpiresAt.After(time.Now()))
	})

	t.Run("reset consumes the token and revokes every session", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "old-password")
		f.users.ByEmailFunc = func(context.Context, string) (*models.User, error) { return user, nil }

		raw := "the-reset-token"
		consumed := 0
		f.resets.ConsumeFunc = func(_ context.Context, email, tokenHash string, _ time.Time) (bool, error) {
			if email == user.Email && tokenHash == security.HashToken(raw) && consumed == 0 {
				consumed++
				return true, nil
			}
			return false, nil
		}

		_, plain, err := f.tokens.Issue(context.Background(), user.ID, "auth-token", nil, nil)
		require.NoError(t, err)

		require.NoError(t, f.svc.ResetPassword(context.Background(), user.Email, raw, "new-password"))

		_, err = f.tokens.Authenticate(context.Background(), plain)
		assert.ErrorIs(t, err, ErrTokenInvalid)

		err = f.svc.ResetPassword(context.Background(), user.Email, raw, "another-password")
		assert.ErrorIs(t, err, ErrInvalidResetToken)
	})
}

func TestSocialLogin(t *testing.T) {
	identity := SocialIdentity{
		Provider:   "google",
		ProviderID: "sub-12345",
		Email:      "hans@example.com",
		Name:       "Hans Holz",
		AvatarURL:  "https://example.com/a.png",
	}

	t.Run("first sign-in creates a verified free account", func(t *testing.T) {
		f := newAuthFixture()
		var createdUser *models.User
		f.users.CreateFunc = func(_ context.Context, user *models.User) error {
			createdUser = user
			return nil
		}
		var link *models.SocialAccount
		f.socials.CreateFunc = func(_ context.Context, account *models.SocialAccount) error {
			link = account
			return nil
		}

		auth, err := f.svc.SocialLogin(context.Background(), identity)
		require.NoError(t, err)

		require.NotNil(t, createdUser)
		assert.Equal(t, "hans@example.com", createdUser.Email)
		assert.Equal(t, "Hans", createdUser.Name)
		assert.Equal(t, "Holz", createdUser.Surname)
		assert.Equal(t, roles.Free, createdUser.Role)
		assert.NotNil(t, createdUser.EmailVerifiedAt)

		require.NotNil(t, link)
		assert.Equal(t, "google", link.Provider)
		assert.Equal(t, "sub-12345", link.ProviderID)

		assert.NotEmpty(t, auth.Token)
	})

	t.Run("matching email auto-links to the existing account", func(t *testing.T) {
		f := newAuthFixture()
		existing := activeUser(t, "correct-horse")
		f.users.ByEmailFunc = func(context.Context, string) (*models.User, error) { return existing, nil }

		var link *models.SocialAccount
		f.socials.CreateFunc = func(_ context.Context, account *models.SocialAccount) error {
			link = account
			return nil
		}

		auth, err := f.svc.SocialLogin(context.Background(), identity)
		require.NoError(t, err)
		require.NotNil(t, link)
		assert.Equal(t, existing.ID, link.UserID)
		assert.Equal(t, existing.ID, auth.User.ID)
	})

	t.Run("linked identity resolves straight to its user", func(t *testing.T) {
		f := newAuthFixture()
		existing := activeUser(t, "correct-horse")
		f.socials.ByProviderFunc = func(_ context.Context, provider, providerID string) (*models.SocialAccount, error) {
			assert.Equal(t, "google", provider)
			return &models.SocialAccount{UserID: existing.ID}, nil
		}
		f.users.ByIDFunc = func(context.Context, uuid.UUID) (*models.User, error) { return existing, nil }

		auth, err := f.svc.SocialLogin(context.Background(), identity)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, auth.User.ID)
	})

	t.Run("deactivated account cannot enter through a provider", func(t *testing.T) {
		f := newAuthFixture()
		existing := activeUser(t, "correct-horse")
		existing.IsActive = false
		f.socials.ByProviderFunc = func(context.Context, string, string) (*models.SocialAccount, error) {
			return &models.SocialAccount{UserID: existing.ID}, nil
		}
		f.users.ByIDFunc = func(context.Context, uuid.UUID) (*models.User, error) { return existing, nil }

		_, err := f.svc.SocialLogin(context.Background(), identity)
		assert.ErrorIs(t, err, ErrAccountDisabled)
	})
}

func TestUpgradeRole(t *testing.T) {
	t.Run("upgrade revokes old tokens and grants fresh abilities", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")

		_, oldPlain, err := f.tokens.Issue(context.Background(), user.ID, "auth-token", roles.Abilities(roles.Free), nil)
		require.NoError(t, err)

		auth, err := f.svc.UpgradeRole(context.Background(), user, roles.Premium)
		require.NoError(t, err)
		assert.Equal(t, roles.Premium, user.Role)

		// The pre-upgrade token kept its issue-time snapshot and is gone.
		_, err = f.tokens.Authenticate(context.Background(), oldPlain)
		assert.ErrorIs(t, err, ErrTokenInvalid)

		token, err := f.tokens.Authenticate(context.Background(), auth.Token)
		require.NoError(t, err)
		assert.True(t, token.Can("timber:create"))
		assert.True(t, token.Can("analytics:read"))
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")

		_, err := f.svc.UpgradeRole(context.Background(), user, roles.Role("platinum"))
		assert.ErrorIs(t, err, ErrInvalidRole)
	})
}

func TestCreateNamedToken(t *testing.T) {
	t.Run("abilities clamp to the role grant", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")
		user.Role = roles.Basic

		token, _, err := f.svc.CreateNamedToken(context.Background(), user, "ci-token",
			[]string{"timber:read", "admin:*"}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"timber:read"}, token.AbilityList())
	})

	t.Run("entirely out-of-plan abilities are refused", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")

		_, _, err := f.svc.CreateNamedToken(context.Background(), user, "ci-token",
			[]string{"admin:*"}, nil)
		assert.Error(t, err)
	})

	t.Run("no requested abilities means the full role set", func(t *testing.T) {
		f := newAuthFixture()
		user := activeUser(t, "correct-horse")

		token, _, err := f.svc.CreateNamedToken(context.Background(), user, "ci-token", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, roles.Abilities(roles.Free), token.AbilityList())
	})
}

func TestReactivateUser(t *testing.T) {
	f := newAuthFixture()
	user := activeUser(t, "correct-horse")
	user.IsActive = false
	f.users.ByIDFunc = func(_ context.Context, id uuid.UUID) (*models.User, error) {
		if id == user.ID {
			return user, nil
		}
		return nil, repository.ErrNotFound
	}

	reactivated := false
	f.users.UpdateFieldsFunc = func(_ context.Context, _ uuid.UUID, fields map[string]interface{}) error {
		if v, ok := fields["is_active"]; ok {
			assert.Equal(t, true, v)
			reactivated = true
		}
		return nil
	}

	t.Run("reopens a closed account", func(t *testing.T) {
		got, err := f.svc.ReactivateUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.True(t, got.IsActive)
		assert.True(t, reactivated)
	})

	t.Run("already active is a no-op", func(t *testing.T) {
		reactivated = false
		_, err := f.svc.ReactivateUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.False(t, reactivated)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.svc.ReactivateUser(context.Background(), uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestDeactivate(t *testing.T) {
	f := newAuthFixture()
	user := activeUser(t, "correct-horse")

	deactivated := false
	f.users.UpdateFieldsFunc = func(_ context.Context, _ uuid.UUID, fields map[string]interface{}) error {
		if v, ok := fields["is_active"]; ok {
			assert.Equal(t, false, v)
			deactivated = true
		}
		return nil
	}

	_, plain, err := f.tokens.Issue(context.Background(), user.ID, "auth-token", nil, nil)
	require.NoError(t, err)

	t.Run("wrong password keeps the account open", func(t *testing.T) {
		err := f.svc.Deactivate(context.Background(), user, "wrong")
		assert.ErrorIs(t, err, ErrWrongPassword)
		assert.False(t, deactivated)
	})

	t.Run("correct password closes the account and revokes tokens", func(t *testing.T) {
		require.NoError(t, f.svc.Deactivate(context.Background(), user, "correct-horse"))
		assert.True(t, deactivated)

		_, err := f.tokens.Authenticate(context.Background(), plain)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
