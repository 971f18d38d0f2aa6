package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/repository"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/security"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

type AuthConfig struct {
	SessionTTL            time.Duration
	RememberMeTTL         time.Duration
	PasswordResetTTL      time.Duration
	EmailConfirmationTTL  time.Duration
	RequireConfirmedEmail bool
	PasswordMinLength     int
	PasswordResetURL      string
	EmailConfirmationURL  string
}

type AuthService struct {
	cfg      AuthConfig
	accounts AccountRepository
	store    tokenstore.Store
	hasher   *security.PasswordHasher
	codec    *security.TokenCodec
	notifier Notifier
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

type LoginResult struct {
	AccountID  uint      `json:"account_id"`
	Email      string    `json:"email"`
	Token      string    `json:"-"`
	ExpiresAt  time.Time `json:"expires_at"`
	RememberMe bool      `json:"remember_me"`
}

const (
	// decoySubjectID signs throwaway tokens for unknown accounts. The tokens
	// are never saved, so they can never be redeemed.
	decoySubjectID      = math.MaxUint32
	decoyPassword       = "decoy-password-for-unknown-accounts"
	tokenRestoreTimeout = 5 * time.Second
)

var (
	letterRe = regexp.MustCompile(`[A-Za-z]`)
	digitRe  = regexp.MustCompile(`[0-9]`)
)

func NewAuthService(
	cfg AuthConfig,
	accounts AccountRepository,
	store tokenstore.Store,
	hasher *security.PasswordHasher,
	codec *security.TokenCodec,
	notifier Notifier,
) *AuthService {
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = 8
	}
	return &AuthService{
		cfg:      cfg,
		accounts: accounts,
		store:    store,
		hasher:   hasher,
		codec:    codec,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.Account, error) {
	email = repository.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validatePassword(password); err != nil {
		return nil, err
	}
	_, err := s.accounts.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, ErrEmailAlreadyRegistered
	case !errors.Is(err, repository.ErrAccountNotFound):
		return nil, unavailable("find account", err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	account := &domain.Account{Email: email, PasswordHash: hash}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrAccountEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, unavailable("create account", err)
	}
	// Confirmation delivery is best effort; RequestEmailConfirmation re-sends.
	_ = s.issueEmailConfirmation(ctx, account)
	return account, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, authFailed(ReasonMissingCredentials, nil)
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrAccountNotFound) {
			return nil, unavailable("find account", err)
		}
		s.hasher.Verify(password, s.decoyHash())
		return nil, authFailed(ReasonUnknownAccount, nil)
	}
	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, authFailed(ReasonBadPassword, nil)
	}
	if s.cfg.RequireConfirmedEmail && !account.EmailConfirmed {
		return nil, authFailed(ReasonUnconfirmedEmail, nil)
	}
	if s.hasher.NeedsRehash(account.PasswordHash) {
		if upgraded, err := s.hasher.Hash(password); err == nil {
			_ = s.accounts.UpdatePasswordHash(ctx, account.ID, upgraded)
		}
	}

	ttl := s.cfg.SessionTTL
	if rememberMe {
		ttl = s.cfg.RememberMeTTL
	}
	token, expiresAt, err := s.codec.Issue(account.ID, security.PurposeSession, ttl)
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, token); err != nil {
		return nil, unavailable("save session token", err)
	}
	return &LoginResult{
		AccountID:  account.ID,
		Email:      account.Email,
		Token:      token,
		ExpiresAt:  expiresAt,
		RememberMe: rememberMe,
	}, nil
}

// ValidateToken resolves a live session token to its account id.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (uint, error) {
	token = strings.TrimSpace(token)
	claims, err := s.decode(token, security.PurposeSession)
	if err != nil {
		return 0, err
	}
	live, err := s.store.Exists(ctx, token)
	if err != nil {
		return 0, unavailable("check session token", err)
	}
	if !live {
		return 0, authFailed(ReasonTokenNotLive, nil)
	}
	account, err := s.lookupSubject(ctx, claims.SubjectID)
	if err != nil {
		return 0, err
	}
	return account.ID, nil
}

// Logout revokes token whether or not it was ever registered.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.store.Revoke(ctx, strings.TrimSpace(token)); err != nil {
		return unavailable("revoke token", err)
	}
	return nil
}

// RequestPasswordReset behaves identically for known and unknown emails as
// seen by the caller: same return value and one sign plus one store round
// trip either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return s.decoyIssue(ctx, security.PurposePasswordReset, s.cfg.PasswordResetTTL)
		}
		return unavailable("find account", err)
	}
	token, expiresAt, err := s.codec.Issue(account.ID, security.PurposePasswordReset, s.cfg.PasswordResetTTL)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, token); err != nil {
		return unavailable("save reset token", err)
	}
	_ = s.notifier.SendPasswordReset(ctx, TokenNotification{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: expiresAt,
		Link:      buildLink(s.cfg.PasswordResetURL, token),
	})
	return nil
}

func (s *AuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	claims, err := s.decode(token, security.PurposePasswordReset)
	if err != nil {
		return err
	}
	account, err := s.lookupSubject(ctx, claims.SubjectID)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.consume(ctx, token); err != nil {
		return err
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, hash); err != nil {
		return s.restoreToken(ctx, token, "update password", err)
	}
	return nil
}

// RequestEmailConfirmation re-sends a confirmation token. Unknown and already
// confirmed accounts are silent no-ops with the same cost profile.
func (s *AuthService) RequestEmailConfirmation(ctx context.Context, email string) error {
	email = repository.NormalizeEmail(email)
	if email == "" {
		return nil
	}
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return s.decoyIssue(ctx, security.PurposeEmailConfirmation, s.cfg.EmailConfirmationTTL)
		}
		return unavailable("find account", err)
	}
	if account.EmailConfirmed {
		return s.decoyIssue(ctx, security.PurposeEmailConfirmation, s.cfg.EmailConfirmationTTL)
	}
	return s.issueEmailConfirmation(ctx, account)
}

func (s *AuthService) ConfirmEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	claims, err := s.decode(token, security.PurposeEmailConfirmation)
	if err != nil {
		return err
	}
	account, err := s.lookupSubject(ctx, claims.SubjectID)
	if err != nil {
		return err
	}
	if err := s.consume(ctx, token); err != nil {
		return err
	}
	if _, err := s.accounts.MarkEmailConfirmed(ctx, account.ID, s.now().UTC()); err != nil {
		return s.restoreToken(ctx, token, "confirm email", err)
	}
	return nil
}

func (s *AuthService) issueEmailConfirmation(ctx context.Context, account *domain.Account) error {
	token, expiresAt, err := s.codec.Issue(account.ID, security.PurposeEmailConfirmation, s.cfg.EmailConfirmationTTL)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, token); err != nil {
		return unavailable("save confirmation token", err)
	}
	_ = s.notifier.SendEmailConfirmation(ctx, TokenNotification{
		AccountID: account.ID,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: expiresAt,
		Link:      buildLink(s.cfg.EmailConfirmationURL, token),
	})
	return nil
}

func (s *AuthService) decode(token string, purpose security.TokenPurpose) (*security.TokenClaims, error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil, decodeFailure(err)
	}
	if claims.Purpose != purpose {
		return nil, authFailed(ReasonWrongPurpose, nil)
	}
	return claims, nil
}

func (s *AuthService) lookupSubject(ctx context.Context, id uint) (*domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, authFailed(ReasonUnknownAccount, err)
		}
		return nil, unavailable("find account", err)
	}
	return account, nil
}

// consume is the single atomic exists-then-revoke; losers of a race see
// ErrAuthenticationFailed.
func (s *AuthService) consume(ctx context.Context, token string) error {
	removed, err := s.store.Consume(ctx, token)
	if err != nil {
		return unavailable("consume token", err)
	}
	if !removed {
		return authFailed(ReasonTokenNotLive, nil)
	}
	return nil
}

// restoreToken puts a consumed token back after the account write that
// should have accompanied it failed, so the token stays redeemable.
func (s *AuthService) restoreToken(ctx context.Context, token, op string, cause error) error {
	restoreCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tokenRestoreTimeout)
	defer cancel()
	if err := s.store.Save(restoreCtx, token); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, errors.Join(cause, fmt.Errorf("restore token: %w", err)))
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreUnavailable, op, cause)
}

func (s *AuthService) decoyHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash(decoyPassword)
	})
	return s.dummyHash
}

func (s *AuthService) decoyIssue(ctx context.Context, purpose security.TokenPurpose, ttl time.Duration) error {
	token, _, err := s.codec.Issue(decoySubjectID, purpose, ttl)
	if err != nil {
		return err
	}
	if _, err := s.store.Exists(ctx, token); err != nil {
		return unavailable("check token", err)
	}
	return nil
}

func (s *AuthService) validatePassword(password string) error {
	if len(password) < s.cfg.PasswordMinLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, s.cfg.PasswordMinLength)
	}
	if !letterRe.MatchString(password) || !digitRe.MatchString(password) {
		return fmt.Errorf("%w: password must contain a letter and a digit", ErrInvalidInput)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	return nil
}

func buildLink(base, token string) string {
	if strings.TrimSpace(base) == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
