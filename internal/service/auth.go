package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/talentbridge/marketplace-api/internal/mailer"
	"github.com/talentbridge/marketplace-api/internal/model"
	"github.com/talentbridge/marketplace-api/internal/repository"
	"github.com/talentbridge/marketplace-api/internal/utils"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrEmailNotVerified    = errors.New("email not verified")
	ErrAccountSuspended    = errors.New("account suspended")
	ErrInvalidRole         = errors.New("invalid role")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// AuthConfig carries the settings AuthService needs from config.Config.
type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	BaseURL        string // front-end origin used in emailed links
}

// Session is the token pair returned on login and refresh.
type Session struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// SignupInput is the validated signup request.
type SignupInput struct {
	Email    string
	Username string
	Password string
	Role     string
}

// AuthService implements the account lifecycle: signup, login, session
// refresh, email verification and password reset.
type AuthService struct {
	db       *sql.DB
	accounts *repository.AccountRepo
	wallets  *repository.WalletRepo
	refresh  *repository.RefreshTokenRepo
	creds    *CredentialService
	mail     mailer.Sender
	cfg      AuthConfig
	log      *zap.Logger
}

func NewAuthService(db *sql.DB, accounts *repository.AccountRepo, wallets *repository.WalletRepo,
	refresh *repository.RefreshTokenRepo, creds *CredentialService, mail mailer.Sender,
	cfg AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		db:       db,
		accounts: accounts,
		wallets:  wallets,
		refresh:  refresh,
		creds:    creds,
		mail:     mail,
		cfg:      cfg,
		log:      log.Named("auth"),
	}
}

// Signup creates the account and its empty wallet in one transaction,
// then issues a verification token and emails it.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (model.Account, error) {
	if !model.IsSelfAssignableRole(in.Role) {
		return model.Account{}, ErrInvalidRole
	}
	hash, err := utils.HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return model.Account{}, err
	}
	acc := model.Account{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Username:     in.Username,
		PasswordHash: sql.NullString{String: hash, Valid: true},
		Role:         in.Role,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Account{}, fmt.Errorf("begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	id, err := s.accounts.CreateTx(ctx, tx, acc)
	if err != nil {
		return model.Account{}, err
	}
	if err := s.wallets.CreateTx(ctx, tx, id); err != nil {
		return model.Account{}, fmt.Errorf("create wallet: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Account{}, fmt.Errorf("commit: %w", err)
	}
	committed = true
	acc.ID = id

	if err := s.sendVerification(ctx, acc); err != nil {
		return acc, err
	}
	s.log.Info("account created", zap.Uint64("account_id", id), zap.String("role", acc.Role))
	return acc, nil
}

// Login checks the password and returns a session.  An unverified account
// gets a fresh verification email if its outstanding token is missing or
// expired, and the login fails with ErrEmailNotVerified either way.
func (s *AuthService) Login(ctx context.Context, email, password string) (Session, error) {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if !acc.PasswordHash.Valid || !utils.VerifyPassword(acc.PasswordHash.String, password) {
		return Session{}, ErrInvalidCredentials
	}
	if acc.Suspended {
		return Session{}, ErrAccountSuspended
	}
	if !acc.EmailVerified {
		if err := s.resendIfStale(ctx, acc); err != nil {
			return Session{}, err
		}
		return Session{}, ErrEmailNotVerified
	}
	return s.newSession(ctx, acc)
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, raw string) (Session, error) {
	hash := utils.HashRefreshRaw(raw)
	accountID, err := s.refresh.Validate(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return Session{}, err
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return Session{}, err
	}
	if acc.Suspended {
		return Session{}, ErrAccountSuspended
	}
	if err := s.refresh.Revoke(ctx, hash); err != nil {
		return Session{}, err
	}
	return s.newSession(ctx, acc)
}

// Logout revokes the refresh token.  Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	return s.refresh.Revoke(ctx, utils.HashRefreshRaw(raw))
}

// VerifyEmail consumes an email verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	id, err := s.creds.Consume(ctx, token, PurposeEmail, s.accounts.MarkEmailVerifiedTx)
	if err != nil {
		return err
	}
	s.log.Info("email verified", zap.Uint64("account_id", id))
	return nil
}

// ResendVerification sends a new verification email under the same rule
// as Login.  Unknown and already verified addresses are silently accepted
// so the endpoint cannot be used to probe for accounts.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	if acc.EmailVerified {
		return nil
	}
	return s.resendIfStale(ctx, acc)
}

// ForgotPassword issues a token and emails a reset link.  Unknown
// addresses succeed without sending anything.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		s.log.Debug("password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := s.creds.Issue(ctx, acc.ID, PurposePassword)
	if err != nil {
		return err
	}
	msg, err := mailer.PasswordResetEmail(acc.Email, acc.Username,
		mailer.Link(s.cfg.BaseURL, "/reset-password", tok.Token), tok.TokenExpiry.Format(time.RFC1123))
	if err != nil {
		return err
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword consumes a reset token, stores the new password hash and
// revokes every refresh token of the account in the same transaction.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	id, err := s.creds.Consume(ctx, token, PurposePassword, func(ctx context.Context, tx *sql.Tx, accountID uint64) error {
		if err := s.accounts.UpdatePasswordTx(ctx, tx, accountID, hash); err != nil {
			return err
		}
		return s.refresh.RevokeAllForAccountTx(ctx, tx, accountID)
	})
	if err != nil {
		return err
	}
	s.log.Info("password reset", zap.Uint64("account_id", id))
	return nil
}

// Me returns the account behind an access token.
func (s *AuthService) Me(ctx context.Context, accountID uint64) (model.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// UpdateRole switches between the self-assignable roles.  Admins keep
// their role.
func (s *AuthService) UpdateRole(ctx context.Context, accountID uint64, role string) (model.Account, error) {
	if !model.IsSelfAssignableRole(role) {
		return model.Account{}, ErrInvalidRole
	}
	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if acc.Role == model.RoleAdmin {
		return model.Account{}, repository.ErrForbidden
	}
	if err := s.accounts.UpdateRole(ctx, accountID, role); err != nil {
		return model.Account{}, err
	}
	acc.Role = role
	return acc, nil
}

// SetSuspension toggles a target account's suspension.  Suspending also
// revokes its refresh tokens; access tokens lapse on their own.
func (s *AuthService) SetSuspension(ctx context.Context, actorID, targetID uint64, suspended bool) error {
	if actorID == targetID {
		return repository.ErrForbidden
	}
	if err := s.accounts.SetSuspended(ctx, targetID, suspended); err != nil {
		return err
	}
	if suspended {
		if err := s.refresh.RevokeAllForAccount(ctx, targetID); err != nil {
			return err
		}
	}
	s.log.Info("suspension changed", zap.Uint64("actor_id", actorID),
		zap.Uint64("account_id", targetID), zap.Bool("suspended", suspended))
	return nil
}

func (s *AuthService) resendIfStale(ctx context.Context, acc model.Account) error {
	need, err := s.creds.NeedsReissue(ctx, acc.ID)
	if err != nil {
		return err
	}
	if !need {
		return nil
	}
	return s.sendVerification(ctx, acc)
}

func (s *AuthService) sendVerification(ctx context.Context, acc model.Account) error {
	tok, err := s.creds.Issue(ctx, acc.ID, PurposeEmail)
	if err != nil {
		return err
	}
	msg, err := mailer.VerificationEmail(acc.Email, acc.Username,
		mailer.Link(s.cfg.BaseURL, "/verify-email", tok.Token), tok.TokenExpiry.Format(time.RFC1123))
	if err != nil {
		return err
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func (s *AuthService) newSession(ctx context.Context, acc model.Account) (Session, error) {
	at, err := utils.NewAccessToken(s.cfg.JWTSecret, acc.ID, acc.Role, s.cfg.AccessTTLMin)
	if err != nil {
		return Session{}, err
	}
	rt, err := utils.NewRefreshToken(s.cfg.RefreshTTLDays)
	if err != nil {
		return Session{}, err
	}
	if err := s.refresh.Store(ctx, acc.ID, utils.HashRefreshRaw(rt.Raw), rt.Exp); err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken:      at.Token,
		AccessExpiresAt:  at.Exp,
		RefreshToken:     rt.Raw,
		RefreshExpiresAt: rt.Exp,
	}, nil
}
