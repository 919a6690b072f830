package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkaraoglu/timberline-api/internal/models"
)

var twoFactorKey = []byte("0123456789abcdef0123456789abcdef")

func newTestTwoFactorService() *TwoFactorService {
	return NewTwoFactorService(&mockUserRepo{}, twoFactorKey, "Timberline")
}

func testUser() *models.User {
	return &models.User{
		ID:    uuid.New(),
		Email: "hans@example.com",
	}
}

func TestTwoFactorEnroll(t *testing.T) {
	svc := newTestTwoFactorService()
	user := testUser()

	secret, uri, codes, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)

	assert.NotEmpty(t, secret)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "Timberline")
	assert.Len(t, codes, 8)

	t.Run("enrollment is pending until confirmed", func(t *testing.T) {
		assert.False(t, user.TwoFactorEnabled)
		assert.Nil(t, user.TwoFactorConfirmedAt)
		assert.NotEmpty(t, user.TwoFactorSecret)
	})

	t.Run("secret is not stored in the clear", func(t *testing.T) {
		assert.NotEqual(t, secret, user.TwoFactorSecret)
	})

	t.Run("recovery codes round trip through the user record", func(t *testing.T) {
		assert.ElementsMatch(t, codes, user.RecoveryCodes())
	})
}

func TestTwoFactorConfirm(t *testing.T) {
	t.Run("valid code enables", func(t *testing.T) {
		svc := newTestTwoFactorService()
		user := testUser()

		secret, _, _, err := svc.Enroll(context.Background(), user)
		require.NoError(t, err)

		code, err := totp.GenerateCode(secret, time.Now())
		require.NoError(t, err)

		ok, err := svc.Confirm(context.Background(), user, code)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, user.TwoFactorEnabled)
		assert.NotNil(t, user.TwoFactorConfirmedAt)
	})

	t.Run("wrong code leaves enrollment pending", func(t *testing.T) {
		svc := newTestTwoFactorService()
		user := testUser()

		_, _, _, err := svc.Enroll(context.Background(), user)
		require.NoError(t, err)

		ok, err := svc.Confirm(context.Background(), user, "000000")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.False(t, user.TwoFactorEnabled)
		assert.Nil(t, user.TwoFactorConfirmedAt)
	})

	t.Run("without enrollment it errors", func(t *testing.T) {
		svc := newTestTwoFactorService()

		_, err := svc.Confirm(context.Background(), testUser(), "123456")
		assert.ErrorIs(t, err, ErrTwoFactorNotEnrolled)
	})
}

func TestTwoFactorVerify(t *testing.T) {
	svc := newTestTwoFactorService()
	user := testUser()

	secret, _, _, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)

	t.Run("accepts a code from the previous step", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now().Add(-30*time.Second))
		require.NoError(t, err)

		ok, err := svc.Verify(user, code)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("rejects a stale code", func(t *testing.T) {
		code, err := totp.GenerateCode(secret, time.Now().Add(-5*time.Minute))
		require.NoError(t, err)

		ok, err := svc.Verify(user, code)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("rejects garbage input without error", func(t *testing.T) {
		ok, err := svc.Verify(user, "not-a-code")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTwoFactorRecoveryCodes(t *testing.T) {
	t.Run("a code works exactly once", func(t *testing.T) {
		svc := newTestTwoFactorService()
		user := testUser()

		_, _, codes, err := svc.Enroll(context.Background(), user)
		require.NoError(t, err)

		ok, err := svc.VerifyRecovery(context.Background(), user, codes[0])
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, user.RecoveryCodes(), 7)

		ok, err = svc.VerifyRecovery(context.Background(), user, codes[0])
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown code mutates nothing", func(t *testing.T) {
		svc := newTestTwoFactorService()
		user := testUser()

		_, _, _, err := svc.Enroll(context.Background(), user)
		require.NoError(t, err)

		ok, err := svc.VerifyRecovery(context.Background(), user, "WRONGCODE1")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Len(t, user.RecoveryCodes(), 8)
	})

	t.Run("regenerate replaces the whole set", func(t *testing.T) {
		svc := newTestTwoFactorService()
		user := testUser()

		_, _, old, err := svc.Enroll(context.Background(), user)
		require.NoError(t, err)

		fresh, err := svc.RegenerateRecoveryCodes(context.Background(), user)
		require.NoError(t, err)
		assert.Len(t, fresh, 8)
		assert.NotElementsMatch(t, old, fresh)

		ok, err := svc.VerifyRecovery(context.Background(), user, old[0])
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestTwoFactorDisable(t *testing.T) {
	svc := newTestTwoFactorService()
	user := testUser()

	secret, _, _, err := svc.Enroll(context.Background(), user)
	require.NoError(t, err)
	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	ok, err := svc.Confirm(context.Background(), user, code)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.Disable(context.Background(), user))

	assert.False(t, user.TwoFactorEnabled)
	assert.Empty(t, user.TwoFactorSecret)
	assert.Empty(t, user.RecoveryCodes())
	assert.Nil(t, user.TwoFactorConfirmedAt)

	t.Run("a fresh enrollment starts from scratch", func(t *testing.T) {
		secret2, _, _, err := svc.Enroll(context.Background(), user)
		require.NoError(t, err)
		assert.NotEqual(t, secret, secret2)
		assert.False(t, user.TwoFactorEnabled)
	})
}
