// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/yomira-identity/internal/platform/apperr"
	"github.com/taibuivan/yomira-identity/internal/platform/clock"
	"github.com/taibuivan/yomira-identity/internal/platform/ctxutil"
	"github.com/taibuivan/yomira-identity/internal/platform/metrics"
	"github.com/taibuivan/yomira-identity/internal/platform/sec"
	"github.com/taibuivan/yomira-identity/pkg/uuid"
)

// ProviderLocal marks accounts that registered with an email and password.
const ProviderLocal = "local"

// Auth event labels used for metrics.
const (
	eventRegister       = "register"
	eventVerifyEmail    = "verify_email"
	eventLogin          = "login"
	eventSocialLogin    = "social_login"
	eventRefresh        = "refresh"
	eventLogout         = "logout"
	eventPasswordReset  = "password_reset"
	eventPasswordChange = "password_change"
)

var (
	errInvalidCredentials  = apperr.Unauthorized("Invalid email or password")
	errAccountDisabled     = apperr.Unauthorized("Account is disabled")
	errInvalidRefreshToken = apperr.Unauthorized("Invalid or expired refresh token")
	errWrongPassword       = apperr.BadRequest("Current password is incorrect")
)

// # Contracts & Types

// PasswordHasher hashes and verifies credentials. Satisfied by [sec.PasswordHasher].
type PasswordHasher interface {
	Hash(plainTextPassword string) (string, error)

	// Verify must spend comparable time for an empty digest as for a real one.
	Verify(plainTextPassword, digest string) bool
}

// AccessTokenSigner mints access tokens. Satisfied by [sec.TokenCodec].
type AccessTokenSigner interface {
	Sign(principal sec.Principal, timeToLive time.Duration) (string, error)
}

// Dependencies groups the collaborators of [Service].
type Dependencies struct {
	Users         UserDirectory
	RefreshTokens *RefreshTokenStore
	Ephemeral     *EphemeralTokenIssuer
	Hasher        PasswordHasher
	Tokens        AccessTokenSigner
	Notifier      Notifier
	Transactor    Transactor
	Clock         clock.Clock
}

// Options tunes token issuance.
type Options struct {
	AccessTokenTTL time.Duration

	// RotateRefreshTokens replaces the presented refresh token on every refresh.
	RotateRefreshTokens bool
}

// Service implements the authentication lifecycle.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, registration,
// or login logic must be reviewed by the security team.
type Service struct {
	users         UserDirectory
	refreshTokens *RefreshTokenStore
	ephemeral     *EphemeralTokenIssuer
	hasher        PasswordHasher
	tokens        AccessTokenSigner
	notifier      Notifier
	transactor    Transactor
	clock         clock.Clock
	options       Options
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(deps Dependencies, options Options) *Service {
	return &Service{
		users:         deps.Users,
		refreshTokens: deps.RefreshTokens,
		ephemeral:     deps.Ephemeral,
		hasher:        deps.Hasher,
		tokens:        deps.Tokens,
		notifier:      deps.Notifier,
		transactor:    deps.Transactor,
		clock:         deps.Clock,
		options:       options,
	}
}

// TokenPair is returned by login and refresh.
//
// RefreshToken is empty on a non-rotating refresh.
type TokenPair struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken,omitempty"`
	TokenType             string    `json:"tokenType"`
	ExpiresIn             int64     `json:"expiresIn"`
	RefreshTokenExpiresAt time.Time `json:"-"`
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

/*
Register creates an unverified account and sends its verification token.

Parameters:
  - ctx: context.Context
  - input: RegisterInput

Returns:
  - *PublicUser: Created account, without credentials
  - error: Conflict if the email is taken, or storage failures
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*PublicUser, error) {
	email := NormalizeEmail(input.Email)

	// Cheap pre-check; the unique index below is what actually guards the race.
	if _, err := service.users.FindByEmail(ctx, email); err == nil {
		metrics.RecordAuthEvent(eventRegister, metrics.OutcomeFailure)
		return nil, apperr.Conflict("Email is already registered")
	} else if !apperr.HasCode(err, apperr.CodeNotFound) {
		return nil, fmt.Errorf("auth_service_register_lookup_failed: %w", err)
	}

	passwordHash, err := service.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	currentTime := service.clock.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Roles:        []string{string(sec.RoleUser)},
		IsActive:     true,
		IsVerified:   false,
		AuthProvider: ProviderLocal,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
	}

	var verificationToken string
	err = service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		if err := service.users.Create(ctx, user); err != nil {
			return err
		}

		token, err := service.ephemeral.IssueVerificationToken(ctx, user)
		verificationToken = token
		return err
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeConflict) {
			metrics.RecordAuthEvent(eventRegister, metrics.OutcomeFailure)
			return nil, apperr.Conflict("Email is already registered")
		}
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	service.dispatch(ctx, "verification", func(ctx context.Context) error {
		return service.notifier.SendVerification(ctx, user.Email, verificationToken, user.FullName())
	})

	metrics.RecordAuthEvent(eventRegister, metrics.OutcomeSuccess)
	return user.ToPublic(), nil
}

/*
VerifyEmail confirms a user's email address using a verification token.

Parameters:
  - ctx: context.Context
  - token: string

Returns:
  - error: InvalidToken for unknown or expired tokens, or storage failures
*/
func (service *Service) VerifyEmail(ctx context.Context, token string) error {
	var user *User
	err := service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		verified, err := service.ephemeral.ConsumeVerificationToken(ctx, token)
		user = verified
		return err
	})
	if err != nil {
		if apperr.IsAppError(err) {
			metrics.RecordAuthEvent(eventVerifyEmail, metrics.OutcomeFailure)
			return err
		}
		return fmt.Errorf("auth_service_verify_email_failed: %w", err)
	}

	service.dispatch(ctx, "welcome", func(ctx context.Context) error {
		return service.notifier.SendWelcome(ctx, user.Email, user.FullName())
	})

	metrics.RecordAuthEvent(eventVerifyEmail, metrics.OutcomeSuccess)
	return nil
}

/*
ResendVerification reissues the verification token of an unverified account.

Description: Unknown emails succeed silently so the response never reveals
whether an account exists.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: AlreadyVerified, or storage failures
*/
func (service *Service) ResendVerification(ctx context.Context, email string) error {
	user, err := service.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("auth_service_resend_lookup_failed: %w", err)
	}

	if user.IsVerified {
		return apperr.AlreadyVerified("Email is already verified")
	}

	token, err := service.ephemeral.IssueVerificationToken(ctx, user)
	if err != nil {
		return fmt.Errorf("auth_service_resend_verification_failed: %w", err)
	}

	service.dispatch(ctx, "verification", func(ctx context.Context) error {
		return service.notifier.SendVerification(ctx, user.Email, token, user.FullName())
	})

	return nil
}

// # Authentication Flow

/*
Login validates credentials and issues an access and refresh token.

Description: The password is checked before account state, and an unknown
email still pays for one hash comparison, so response timing does not reveal
which emails are registered.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - *TokenPair: Fresh credentials
  - error: Unauthorized, UnverifiedEmail or internal failures
*/
func (service *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := service.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			service.hasher.Verify(password, "")
			metrics.RecordAuthEvent(eventLogin, metrics.OutcomeFailure)
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	// Accounts without a local password never pass, whatever the hasher says.
	passwordMatches := service.hasher.Verify(password, user.PasswordHash)
	if !user.HasLocalPassword() || !passwordMatches {
		metrics.RecordAuthEvent(eventLogin, metrics.OutcomeFailure)
		return nil, errInvalidCredentials
	}

	if !user.IsActive {
		metrics.RecordAuthEvent(eventLogin, metrics.OutcomeFailure)
		return nil, errAccountDisabled
	}

	if !user.IsVerified {
		metrics.RecordAuthEvent(eventLogin, metrics.OutcomeFailure)
		return nil, apperr.UnverifiedEmail("Please verify your email before logging in")
	}

	pair, err := service.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_login_succeeded", slog.String("user_id", user.ID))
	metrics.RecordAuthEvent(eventLogin, metrics.OutcomeSuccess)
	return pair, nil
}

// SocialProfile is the identity asserted by an external provider.
type SocialProfile struct {
	Email      string
	FirstName  string
	LastName   string
	Provider   string
	ProviderID string
}

/*
LoginWithSocial finds or creates the account for an external identity and logs it in.

Description: New accounts are created verified and without a local password,
so they can never pass credential login. An existing unverified account is
marked verified since the provider vouched for the address.

Parameters:
  - ctx: context.Context
  - profile: SocialProfile

Returns:
  - *TokenPair: Fresh credentials
  - error: Unauthorized for disabled accounts, or storage failures
*/
func (service *Service) LoginWithSocial(ctx context.Context, profile SocialProfile) (*TokenPair, error) {
	email := NormalizeEmail(profile.Email)

	user, err := service.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsActive {
			metrics.RecordAuthEvent(eventSocialLogin, metrics.OutcomeFailure)
			return nil, errAccountDisabled
		}
		if !user.IsVerified {
			user.IsVerified = true
			user.VerificationTokenHash = ""
			user.VerificationExpiresAt = nil
			user.UpdatedAt = service.clock.Now()
			if err := service.users.MarkVerified(ctx, user.ID, user.UpdatedAt); err != nil {
				return nil, fmt.Errorf("auth_service_social_verify_failed: %w", err)
			}
		}

	case apperr.HasCode(err, apperr.CodeNotFound):
		user, err = service.createSocialUser(ctx, email, profile)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("auth_service_social_lookup_failed: %w", err)
	}

	pair, err := service.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.RecordAuthEvent(eventSocialLogin, metrics.OutcomeSuccess)
	return pair, nil
}

func (service *Service) createSocialUser(ctx context.Context, email string, profile SocialProfile) (*User, error) {
	currentTime := service.clock.Now()
	user := &User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    profile.FirstName,
		LastName:     profile.LastName,
		Roles:        []string{string(sec.RoleUser)},
		IsActive:     true,
		IsVerified:   true,
		AuthProvider: profile.Provider,
		ProviderID:   profile.ProviderID,
		CreatedAt:    currentTime,
		UpdatedAt:    currentTime,
	}

	err := service.users.Create(ctx, user)
	if err == nil {
		return user, nil
	}

	// Lost a race against a concurrent first login for the same address.
	if apperr.HasCode(err, apperr.CodeConflict) {
		existing, lookupErr := service.users.FindByEmail(ctx, email)
		if lookupErr != nil {
			return nil, fmt.Errorf("auth_service_social_refetch_failed: %w", lookupErr)
		}
		return existing, nil
	}

	return nil, fmt.Errorf("auth_service_social_create_failed: %w", err)
}

// startSession stamps the login time and issues a token pair.
func (service *Service) startSession(ctx context.Context, user *User) (*TokenPair, error) {
	loginTime := service.clock.Now()
	if err := service.users.UpdateLastLogin(ctx, user.ID, loginTime); err != nil {
		return nil, fmt.Errorf("auth_service_last_login_failed: %w", err)
	}
	user.LastLoginAt = &loginTime

	return service.issueTokenPair(ctx, user)
}

func (service *Service) issueTokenPair(ctx context.Context, user *User) (*TokenPair, error) {
	accessToken, err := service.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	refreshToken, expiresAt, err := service.refreshTokens.Issue(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	return &TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		TokenType:             TokenTypeBearer,
		ExpiresIn:             int64(service.options.AccessTokenTTL / time.Second),
		RefreshTokenExpiresAt: expiresAt,
	}, nil
}

func (service *Service) signAccessToken(user *User) (string, error) {
	accessToken, err := service.tokens.Sign(user.Principal(), service.options.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}
	return accessToken, nil
}

// # Session Management

/*
Refresh exchanges a refresh token for a new access token.

Description: By default the refresh token is left untouched and stays valid
until logout or expiry. With rotation enabled the presented token is consumed
and a replacement is returned in the same transaction.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *TokenPair: New access token (plus a new refresh token when rotating)
  - error: Unauthorized for unknown, expired or disabled sessions
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if service.options.RotateRefreshTokens {
		return service.rotate(ctx, refreshToken)
	}

	user, err := service.refreshTokens.Redeem(ctx, refreshToken)
	if err != nil {
		return nil, service.refreshFailure(err)
	}

	if !user.IsActive {
		metrics.RecordAuthEvent(eventRefresh, metrics.OutcomeFailure)
		return nil, errInvalidRefreshToken
	}

	accessToken, err := service.signAccessToken(user)
	if err != nil {
		return nil, err
	}

	metrics.RecordAuthEvent(eventRefresh, metrics.OutcomeSuccess)
	return &TokenPair{
		AccessToken: accessToken,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   int64(service.options.AccessTokenTTL / time.Second),
	}, nil
}

func (service *Service) rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair
	err := service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		user, err := service.refreshTokens.Rotate(ctx, refreshToken)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return errInvalidRefreshToken
		}

		pair, err = service.issueTokenPair(ctx, user)
		return err
	})

	if err != nil {
		// The lazy delete of an expired token was rolled back with the transaction.
		if errors.Is(err, ErrRefreshTokenExpired) {
			if revokeErr := service.refreshTokens.Revoke(ctx, refreshToken); revokeErr != nil {
				return nil, fmt.Errorf("auth_service_refresh_expire_failed: %w", revokeErr)
			}
		}
		return nil, service.refreshFailure(err)
	}

	metrics.RecordAuthEvent(eventRefresh, metrics.OutcomeSuccess)
	return pair, nil
}

func (service *Service) refreshFailure(err error) error {
	if isRefreshFailure(err) || errors.Is(err, errInvalidRefreshToken) {
		metrics.RecordAuthEvent(eventRefresh, metrics.OutcomeFailure)
		return errInvalidRefreshToken
	}
	return fmt.Errorf("auth_service_refresh_failed: %w", err)
}

// Logout revokes the presented refresh token. Unknown tokens are not an error.
func (service *Service) Logout(ctx context.Context, refreshToken string) error {
	if err := service.refreshTokens.Revoke(ctx, refreshToken); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	metrics.RecordAuthEvent(eventLogout, metrics.OutcomeSuccess)
	return nil
}

// LogoutAll revokes every refresh token held by userID.
func (service *Service) LogoutAll(ctx context.Context, userID string) error {
	removed, err := service.refreshTokens.RevokeAllForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("auth_service_logout_all_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "auth_sessions_revoked",
		slog.String("user_id", userID),
		slog.Int64("sessions", removed),
	)
	return nil
}

// # Password Recovery

/*
ForgotPassword issues a reset token when the email belongs to an active account.

Description: Every outcome short of a storage failure returns nil, so the
caller answers known and unknown emails identically.

Parameters:
  - ctx: context.Context
  - email: string

Returns:
  - error: Storage failures only
*/
func (service *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := service.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("auth_service_forgot_lookup_failed: %w", err)
	}

	if !user.IsActive {
		return nil
	}

	token, err := service.ephemeral.IssueResetToken(ctx, user)
	if err != nil {
		// Deleted between the lookup and the write.
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil
		}
		return fmt.Errorf("auth_service_forgot_password_failed: %w", err)
	}

	service.dispatch(ctx, "password_reset", func(ctx context.Context) error {
		return service.notifier.SendPasswordReset(ctx, user.Email, token, user.FullName())
	})

	return nil
}

/*
ResetPassword completes the forgot-password flow.

Description: The token is consumed, the password replaced and every refresh
token revoked in one transaction, so two concurrent resets with the same token
cannot both succeed.

Parameters:
  - ctx: context.Context
  - token: string
  - newPassword: string

Returns:
  - error: InvalidToken, or storage failures
*/
func (service *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	var user *User
	err = service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		updated, err := service.ephemeral.ConsumeResetToken(ctx, token, passwordHash)
		if err != nil {
			return err
		}
		user = updated

		_, err = service.refreshTokens.RevokeAllForUser(ctx, updated.ID)
		return err
	})
	if err != nil {
		if apperr.IsAppError(err) {
			metrics.RecordAuthEvent(eventPasswordReset, metrics.OutcomeFailure)
			return err
		}
		return fmt.Errorf("auth_service_reset_password_failed: %w", err)
	}

	service.dispatch(ctx, "password_changed", func(ctx context.Context) error {
		return service.notifier.SendPasswordChanged(ctx, user.Email, user.FullName())
	})

	metrics.RecordAuthEvent(eventPasswordReset, metrics.OutcomeSuccess)
	return nil
}

/*
ChangePassword replaces the password of an authenticated user.

Description: Every refresh token of the user is revoked, including the one
the caller is currently holding.

Parameters:
  - ctx: context.Context
  - userID: string
  - currentPassword: string
  - newPassword: string

Returns:
  - error: BadRequest for a wrong current password, NotFound, or storage failures
*/
func (service *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	passwordHash, err := service.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	// The row stays locked from the check of the current password until the
	// new digest is written, so a concurrent reset cannot slip in between.
	var user *User
	err = service.transactor.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := service.users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		passwordMatches := service.hasher.Verify(currentPassword, locked.PasswordHash)
		if !locked.HasLocalPassword() || !passwordMatches {
			return errWrongPassword
		}

		if err := service.users.SetPassword(ctx, locked.ID, passwordHash, service.clock.Now()); err != nil {
			return err
		}
		user = locked

		_, err = service.refreshTokens.RevokeAllForUser(ctx, locked.ID)
		return err
	})
	if err != nil {
		if errors.Is(err, errWrongPassword) {
			metrics.RecordAuthEvent(eventPasswordChange, metrics.OutcomeFailure)
		}
		if apperr.IsAppError(err) {
			return err
		}
		return fmt.Errorf("auth_service_change_password_failed: %w", err)
	}

	service.dispatch(ctx, "password_changed", func(ctx context.Context) error {
		return service.notifier.SendPasswordChanged(ctx, user.Email, user.FullName())
	})

	metrics.RecordAuthEvent(eventPasswordChange, metrics.OutcomeSuccess)
	return nil
}

// # Profile

// GetProfile returns the public view of userID.
func (service *Service) GetProfile(ctx context.Context, userID string) (*PublicUser, error) {
	user, err := service.users.FindByID(ctx, userID)
	if err != nil {
		if apperr.IsAppError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("auth_service_profile_failed: %w", err)
	}
	return user.ToPublic(), nil
}

// # Maintenance

// CleanupReport counts what a [Service.Cleanup] run removed.
type CleanupReport struct {
	RefreshTokens      int64
	ResetTokens        int64
	VerificationTokens int64
}

/*
Cleanup sweeps expired refresh tokens and clears expired reset and
verification tokens.

Description: Every step always runs; a failure in one does not skip the others.

Parameters:
  - ctx: context.Context

Returns:
  - CleanupReport: Rows affected per kind
  - error: Joined failures of either step
*/
func (service *Service) Cleanup(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport

	refreshRemoved, refreshErr := service.refreshTokens.SweepExpired(ctx)
	report.RefreshTokens = refreshRemoved
	metrics.RecordCleanup("refresh_token", refreshRemoved)

	resetCleared, resetErr := service.users.ClearExpiredResetTokens(ctx, service.clock.Now())
	if resetErr != nil {
		resetErr = fmt.Errorf("auth_service_clear_reset_tokens_failed: %w", resetErr)
	}
	report.ResetTokens = resetCleared
	metrics.RecordCleanup("reset_token", resetCleared)

	verificationCleared, verificationErr := service.users.ClearExpiredVerificationTokens(ctx, service.clock.Now())
	if verificationErr != nil {
		verificationErr = fmt.Errorf("auth_service_clear_verification_tokens_failed: %w", verificationErr)
	}
	report.VerificationTokens = verificationCleared
	metrics.RecordCleanup("verification_token", verificationCleared)

	return report, errors.Join(refreshErr, resetErr, verificationErr)
}

// # Notifications

// dispatch runs a notifier call and logs its failure without propagating it.
func (service *Service) dispatch(ctx context.Context, kind string, send func(ctx context.Context) error) {
	if err := send(ctx); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "notification_dispatch_failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
}
