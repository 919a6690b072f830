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
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"

	"github.com/bkaraoglu/timberline-api/internal/mail"
	"github.com/bkaraoglu/timberline-api/internal/models"
	"github.com/bkaraoglu/timberline-api/internal/repository"
	"github.com/bkaraoglu/timberline-api/internal/roles"
	"github.com/bkaraoglu/timberline-api/internal/security"
)

var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrAccountDisabled      = errors.New("account has been deactivated")
	ErrInvalidTwoFactorCode = errors.New("invalid authentication code")
	ErrInvalidResetToken    = errors.New("invalid or expired password reset token")
	ErrWrongPassword        = errors.New("current password is incorrect")
	ErrInvalidRole          = errors.New("unknown role")
)

// dummyHash keeps password verification cost flat when the email does not
// resolve to a user.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timberline-dummy-password"), bcrypt.DefaultCost)

// AuthService sequences the identity store, token ledger and two-factor
// engine into the request-level auth flows.
type AuthService struct {
	users        repository.UserRepository
	socials      repository.SocialAccountRepository
	resetTokens  repository.ResetTokenRepository
	verifyTokens repository.VerificationTokenRepository
	tokens       *TokenService
	twoFactor    *TwoFactorService
	mailer       mail.Mailer
	google       *GoogleJWKSClient

	tokenExpiry    time.Duration
	resetExpiry    time.Duration
	googleAudience string
}

type AuthServiceParams struct {
	Users        repository.UserRepository
	Socials      repository.SocialAccountRepository
	ResetTokens  repository.ResetTokenRepository
	VerifyTokens repository.VerificationTokenRepository
	Tokens       *TokenService
	TwoFactor    *TwoFactorService
	Mailer       mail.Mailer
	Google       *GoogleJWKSClient

	TokenExpiry    time.Duration
	ResetExpiry    time.Duration
	GoogleAudience string
}

func NewAuthService(p AuthServiceParams) *AuthService {
	if p.TokenExpiry <= 0 {
		p.TokenExpiry = 30 * 24 * time.Hour
	}
	if p.ResetExpiry <= 0 {
		p.ResetExpiry = time.Hour
	}
	return &AuthService{
		users:          p.Users,
		socials:        p.Socials,
		resetTokens:    p.ResetTokens,
		verifyTokens:   p.VerifyTokens,
		tokens:         p.Tokens,
		twoFactor:      p.TwoFactor,
		mailer:         p.Mailer,
		google:         p.Google,
		tokenExpiry:    p.TokenExpiry,
		resetExpiry:    p.ResetExpiry,
		googleAudience: p.GoogleAudience,
	}
}

// AuthResult is the shape returned by every flow that issues a token. Token
// holds the plaintext credential; this is the only time it exists outside
// the caller.
type AuthResult struct {
	User      *models.User
	Token     string
	TokenType string
	ExpiresAt *time.Time
	Abilities []string
}

// LoginResult distinguishes a completed login from a pending two-factor
// challenge. When RequiresTwoFactor is set, no token was issued.
type LoginResult struct {
	RequiresTwoFactor bool
	Auth              *AuthResult
}

type RegisterParams struct {
	Name        string
	Surname     string
	Email       string
	Password    string
	Phone       string
	DateOfBirth *time.Time
}

type LoginParams struct {
	Email         string
	Password      string
	TwoFactorCode string
	RecoveryCode  string
	IP            string
}

// SocialIdentity is what the provider hands over after its own handshake.
type SocialIdentity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string
	AvatarURL  string
}

// Register creates a free-tier account and issues its first token. The
// verification email is fire-and-forget; its failure never surfaces in the
// auth response.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (*AuthResult, error) {
	email := normalizeEmail(p.Email)
	if _, err := s.users.ByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:          uuid.New(),
		Name:        p.Name,
		Surname:     p.Surname,
		Email:       email,
		Password:    string(hash),
		Phone:       p.Phone,
		DateOfBirth: p.DateOfBirth,
		Role:        roles.Free,
		IsActive:    true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerificationEmail(user)

	return s.issueFor(ctx, user, "auth-token")
}

// Login verifies credentials and, when two-factor is enabled, gates token
// issuance behind a TOTP or recovery code. Credential failures are
// indistinguishable between unknown email and wrong password.
func (s *AuthService) Login(ctx context.Context, p LoginParams) (*LoginResult, error) {
	user, err := s.users.ByEmail(ctx, normalizeEmail(p.Email))
	if errors.Is(err, repository.ErrNotFound) {
		// Burn comparable time so a missing account is not observable.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(p.Password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(p.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if user.TwoFactorEnabled {
		if p.TwoFactorCode == "" && p.RecoveryCode == "" {
			return &LoginResult{RequiresTwoFactor: true}, nil
		}
		ok, err := s.checkSecondFactor(ctx, user, p.TwoFactorCode, p.RecoveryCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidTwoFactorCode
		}
	}

	s.recordLogin(ctx, user, p.IP)

	auth, err := s.issueFor(ctx, user, "auth-token")
	if err != nil {
		return nil, err
	}
	return &LoginResult{Auth: auth}, nil
}

func (s *AuthService) checkSecondFactor(ctx context.Context, user *models.User, totpCode, recoveryCode string) (bool, error) {
	if totpCode != "" {
		return s.twoFactor.Verify(user, totpCode)
	}
	return s.twoFactor.VerifyRecovery(ctx, user, recoveryCode)
}

// Logout revokes only the presenting token.
func (s *AuthService) Logout(ctx context.Context, tokenID uuid.UUID) error {
	return s.tokens.Revoke(ctx, tokenID)
}

// LogoutAll revokes every token the user holds.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	return s.tokens.RevokeAll(ctx, userID)
}

// Refresh rotates the current token. Abilities are resolved afresh, so a
// role change since issuance is reflected in the replacement.
func (s *AuthService) Refresh(ctx context.Context, user *models.User, currentTokenID uuid.UUID) (*AuthResult, error) {
	if err := s.tokens.Revoke(ctx, currentTokenID); err != nil {
		return nil, err
	}
	return s.issueFor(ctx, user, "refreshed-auth-token")
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every other session. The wrong-password case is user-actionable
// and surfaces as a field-level error.
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, currentPassword, newPassword string, keepTokenID uuid.UUID) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(currentPassword)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"password": string(hash)}); err != nil {
		return err
	}
	return s.tokens.RevokeAllExcept(ctx, user.ID, keepTokenID)
}

// ForgotPassword mints a single-use reset token and mails it. A missing
// account is a silent no-op so the endpoint never leaks existence.
func (s *AuthService) ForgotPassword(ctx context.Context, email, ip string) error {
	user, err := s.users.ByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	raw, err := security.RandomToken(40)
	if err != nil {
		return err
	}
	token := &models.PasswordResetToken{
		Email:     user.Email,
		TokenHash: security.HashToken(raw),
		ExpiresAt: time.Now().Add(s.resetExpiry),
		IPAddress: ip,
	}
	if err := s.resetTokens.Create(ctx, token); err != nil {
		return err
	}

	go func(u models.User) {
		if err := s.mailer.SendPasswordResetEmail(context.Background(), &u, raw); err != nil {
			slog.Error("failed to send password reset email", "user_id", u.ID, "error", err)
		}
	}(*user)

	return nil
}

// ResetPassword consumes the reset token (compare-and-set, single use),
// updates the password and revokes every existing token so all sessions
// must log in again.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	email = normalizeEmail(email)

	consumed, err := s.resetTokens.Consume(ctx, email, security.HashToken(token), time.Now())
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidResetToken
	}

	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"password": string(hash)}); err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, user.ID)
}

// VerifyEmail consumes a verification token and stamps the address
// verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, token string) error {
	email = normalizeEmail(email)

	consumed, err := s.verifyTokens.Consume(ctx, email, security.HashToken(token), time.Now())
	if err != nil {
		return err
	}
	if !consumed {
		return ErrInvalidResetToken
	}
	return s.users.UpdateFieldsByEmail(ctx, email, map[string]interface{}{
		"email_verified_at": time.Now(),
	})
}

// ResendVerification mints a fresh verification token and mails it.
func (s *AuthService) ResendVerification(ctx context.Context, user *models.User) {
	s.sendVerificationEmail(user)
}

// GoogleSignIn verifies the identity token and runs the shared social-login
// linking logic.
func (s *AuthService) GoogleSignIn(ctx context.Context, idToken string) (*AuthResult, error) {
	claims, err := s.google.VerifyToken(idToken, s.googleAudience)
	if err != nil {
		slog.Error("google token verification failed", "error", err)
		return nil, ErrInvalidCredentials
	}
	return s.SocialLogin(ctx, SocialIdentity{
		Provider:   "google",
		ProviderID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
		AvatarURL:  claims.Picture,
	})
}

// SocialLogin resolves the external identity to a user: by provider link
// first, then by email with auto-link, else a brand new free-tier account
// with an unusable random password and a pre-verified address. Token
// issuance is identical to direct login.
func (s *AuthService) SocialLogin(ctx context.Context, identity SocialIdentity) (*AuthResult, error) {
	var user *models.User

	account, err := s.socials.ByProvider(ctx, identity.Provider, identity.ProviderID)
	switch {
	case err == nil:
		user, err = s.users.ByID(ctx, account.UserID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.linkOrCreate(ctx, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if identity.AvatarURL != "" && user.Avatar == "" {
		if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"avatar": identity.AvatarURL}); err != nil {
			slog.Error("failed to backfill avatar", "user_id", user.ID, "error", err)
		} else {
			user.Avatar = identity.AvatarURL
		}
	}

	s.recordLogin(ctx, user, "")

	return s.issueFor(ctx, user, "social-auth-"+identity.Provider)
}

func (s *AuthService) linkOrCreate(ctx context.Context, identity SocialIdentity) (*models.User, error) {
	email := normalizeEmail(identity.Email)

	user, err := s.users.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.createFromSocial(ctx, identity)
	}
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(map[string]string{
		"name":   identity.Name,
		"avatar": identity.AvatarURL,
	})
	link := &models.SocialAccount{
		UserID:        user.ID,
		Provider:      identity.Provider,
		ProviderID:    identity.ProviderID,
		ProviderEmail: email,
		ProviderData:  datatypes.JSON(data),
	}
	if err := s.socials.Create(ctx, link); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) createFromSocial(ctx context.Context, identity SocialIdentity) (*models.User, error) {
	// Nobody can log in with this password; social accounts authenticate
	// through their provider.
	random, err := security.RandomToken(32)
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(random), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	name, surname := splitName(identity.Name)
	now := time.Now()
	user := &models.User{
		ID:              uuid.New(),
		Name:            name,
		Surname:         surname,
		Email:           normalizeEmail(identity.Email),
		Password:        string(hash),
		Avatar:          identity.AvatarURL,
		Role:            roles.Free,
		IsActive:        true,
		EmailVerifiedAt: &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpgradeRole changes the user's tier, revokes every outstanding token and
// issues a fresh one carrying the new ability set. Old tokens keep their
// issued-at-time snapshot by design, which is why they must go.
func (s *AuthService) UpgradeRole(ctx context.Context, user *models.User, newRole roles.Role) (*AuthResult, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"role": string(newRole)}); err != nil {
		return nil, err
	}
	user.Role = newRole

	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.issueFor(ctx, user, "role-upgrade-token")
}

// ChangeUserRole is the administrative role change. All of the target
// user's tokens are revoked; they log in again under the new tier.
func (s *AuthService) ChangeUserRole(ctx context.Context, userID uuid.UUID, newRole roles.Role) (*models.User, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"role": string(newRole)}); err != nil {
		return nil, err
	}
	user.Role = newRole

	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return nil, err
	}
	return user, nil
}

// Deactivate soft-closes the account after a password check and revokes all
// tokens. The record stays for reactivation.
// ReactivateUser flips a soft-deactivated account back to active. No token
// is issued; the user signs in again on their own.
func (s *AuthService) ReactivateUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		if err := s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"is_active": true}); err != nil {
			return nil, err
		}
		user.IsActive = true
	}
	return user, nil
}

func (s *AuthService) Deactivate(ctx context.Context, user *models.User, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	if err := s.tokens.RevokeAll(ctx, user.ID); err != nil {
		return err
	}
	return s.users.UpdateFields(ctx, user.ID, map[string]interface{}{"is_active": false})
}

// CreateNamedToken issues an API token restricted to the intersection of
// the requested abilities and what the user's role currently grants.
func (s *AuthService) CreateNamedToken(ctx context.Context, user *models.User, name string, requested []string, expiresAt *time.Time) (*models.AccessToken, string, error) {
	granted := roles.Abilities(user.Role)
	abilities := requested
	if len(requested) > 0 && !contains(granted, roles.Wildcard) {
		abilities = intersect(requested, granted)
		if len(abilities) == 0 {
			return nil, "", ErrInvalidCredentials
		}
	}
	if len(abilities) == 0 {
		abilities = granted
	}
	return s.tokens.Issue(ctx, user.ID, name, abilities, expiresAt)
}

func (s *AuthService) issueFor(ctx context.Context, user *models.User, name string) (*AuthResult, error) {
	abilities := roles.Abilities(user.Role)
	expiresAt := time.Now().Add(s.tokenExpiry)

	_, plaintext, err := s.tokens.Issue(ctx, user.ID, name, abilities, &expiresAt)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:      user,
		Token:     plaintext,
		TokenType: "Bearer",
		ExpiresAt: &expiresAt,
		Abilities: abilities,
	}, nil
}

func (s *AuthService) recordLogin(ctx context.Context, user *models.User, ip string) {
	now := time.Now()
	fields := map[string]interface{}{"last_login_at": now}
	if ip != "" {
		fields["last_login_ip"] = ip
	}
	if err := s.users.UpdateFields(ctx, user.ID, fields); err != nil {
		slog.Error("failed to record login", "user_id", user.ID, "error", err)
		return
	}
	user.LastLoginAt = &now
	if ip != "" {
		user.LastLoginIP = ip
	}
}

func (s *AuthService) sendVerificationEmail(user *models.User) {
	go func(u models.User) {
		ctx := context.Background()

		raw, err := security.RandomToken(40)
		if err != nil {
			slog.Error("failed to mint verification token", "user_id", u.ID, "error", err)
			return
		}
		token := &models.EmailVerificationToken{
			Email:     u.Email,
			TokenHash: security.HashToken(raw),
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		if err := s.verifyTokens.Create(ctx, token); err != nil {
			slog.Error("failed to store verification token", "user_id", u.ID, "error", err)
			return
		}
		if err := s.mailer.SendVerificationEmail(ctx, &u, raw); err != nil {
			slog.Error("failed to send verification email", "user_id", u.ID, "error", err)
		}
	}(*user)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "User", ""
	}
	parts := strings.SplitN(full, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func contains(list []string, val string) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		if contains(b, x) {
			out = append(out, x)
		}
	}
	return out
}
