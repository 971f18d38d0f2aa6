package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/domain"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/repository"
	repogomock "github.com/sandeepkv93/auth-token-lifecycle/internal/repository/gomock"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/security"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
	storegomock "github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore/gomock"
	"go.uber.org/mock/gomock"
)

const testSigningSecret = "0123456789abcdef0123456789abcdef"

type authServiceFixture struct {
	cfg      AuthConfig
	auth     *AuthService
	accounts *accountRepoState
	store    *storeState
	notifier *notifierState
	hasher   *security.PasswordHasher
	codec    *security.TokenCodec
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newAuthServiceFixture(t testing.TB) *authServiceFixture {
	t.Helper()
	return newAuthServiceFixtureWithConfig(t, func(*AuthConfig) {})
}

func newAuthServiceFixtureWithConfig(t testing.TB, mutate func(*AuthConfig)) *authServiceFixture {
	t.Helper()
	cfg := AuthConfig{
		SessionTTL:           time.Hour,
		RememberMeTTL:        30 * 24 * time.Hour,
		PasswordResetTTL:     30 * time.Minute,
		EmailConfirmationTTL: 24 * time.Hour,
		PasswordMinLength:    8,
		PasswordResetURL:     "https://app.example.com/reset-password",
		EmailConfirmationURL: "https://app.example.com/confirm-email",
	}
	mutate(&cfg)

	clock := &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	codec, err := security.NewTokenCodec(&security.TokenCodecConfig{
		Issuer: "auth-test",
		Secret: []byte(testSigningSecret),
		Now:    clock.Now,
	})
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	hasher := security.NewPasswordHasher(security.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1})

	ctrl := gomock.NewController(t)
	accounts := newAccountRepoState()
	accountMock := repogomock.NewMockAccountRepository(ctrl)
	accountMock.EXPECT().FindByEmail(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(accounts.FindByEmail)
	accountMock.EXPECT().FindByID(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(accounts.FindByID)
	accountMock.EXPECT().Create(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(accounts.Create)
	accountMock.EXPECT().UpdatePasswordHash(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(accounts.UpdatePasswordHash)
	accountMock.EXPECT().MarkEmailConfirmed(gomock.Any(), gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(accounts.MarkEmailConfirmed)

	store := newStoreState()
	storeMock := storegomock.NewMockStore(ctrl)
	storeMock.EXPECT().Save(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.Save)
	storeMock.EXPECT().Exists(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.Exists)
	storeMock.EXPECT().Revoke(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.Revoke)
	storeMock.EXPECT().Consume(gomock.Any(), gomock.Any()).AnyTimes().DoAndReturn(store.Consume)

	notifier := &notifierState{}
	auth := NewAuthService(cfg, accountMock, storeMock, hasher, codec, notifier)
	auth.now = clock.Now

	return &authServiceFixture{
		cfg:      cfg,
		auth:     auth,
		accounts: accounts,
		store:    store,
		notifier: notifier,
		hasher:   hasher,
		codec:    codec,
		clock:    clock,
	}
}

func (fx *authServiceFixture) seedAccount(t testing.TB, email, password string, confirmed bool) uint {
	t.Helper()
	hash, err := fx.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := &domain.Account{Email: email, PasswordHash: hash, EmailConfirmed: confirmed}
	if err := fx.accounts.Create(context.Background(), a); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a.ID
}

// issueStored issues a token for id and registers it the way the service does.
func (fx *authServiceFixture) issueStored(t testing.TB, id uint, purpose security.TokenPurpose, ttl time.Duration) string {
	t.Helper()
	token, _, err := fx.codec.Issue(id, purpose, ttl)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := fx.store.mem.Save(context.Background(), token); err != nil {
		t.Fatalf("save: %v", err)
	}
	return token
}

type accountRepoState struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*domain.Account
	byMail map[string]uint

	findErr          error
	createErr        error
	updatePasswordFn func(id uint) error
	markConfirmedErr error
	updatePasswordN  int
}

func newAccountRepoState() *accountRepoState {
	return &accountRepoState{nextID: 1, byID: map[uint]*domain.Account{}, byMail: map[string]uint{}}
}

func (r *accountRepoState) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	id, ok := r.byMail[repository.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *accountRepoState) FindByID(ctx context.Context, id uint) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	a, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	out := *a
	return &out, nil
}

func (r *accountRepoState) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	email := repository.NormalizeEmail(account.Email)
	if _, exists := r.byMail[email]; exists {
		return repository.ErrAccountEmailTaken
	}
	account.ID = r.nextID
	account.Email = email
	r.nextID++
	stored := *account
	r.byID[account.ID] = &stored
	r.byMail[email] = account.ID
	return nil
}

func (r *accountRepoState) UpdatePasswordHash(ctx context.Context, id uint, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updatePasswordN++
	if r.updatePasswordFn != nil {
		if err := r.updatePasswordFn(id); err != nil {
			return err
		}
	}
	a, ok := r.byID[id]
	if !ok {
		return repository.ErrAccountNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *accountRepoState) MarkEmailConfirmed(ctx context.Context, id uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markConfirmedErr != nil {
		return false, r.markConfirmedErr
	}
	a, ok := r.byID[id]
	if !ok || a.EmailConfirmed {
		return false, nil
	}
	a.EmailConfirmed = true
	a.EmailConfirmedAt = &at
	return true, nil
}

func (r *accountRepoState) get(id uint) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.byID[id]
}

func (r *accountRepoState) delete(id uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		delete(r.byMail, a.Email)
		delete(r.byID, id)
	}
}

type storeState struct {
	mem *tokenstore.MemoryStore

	mu          sync.Mutex
	saveErr     error
	existsErr   error
	revokeErr   error
	consumeErr  error
	saveCalls   int
	existsCalls int
}

func newStoreState() *storeState {
	return &storeState{mem: tokenstore.NewMemoryStore()}
}

func (s *storeState) Save(ctx context.Context, token string) error {
	s.mu.Lock()
	s.saveCalls++
	err := s.saveErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.mem.Save(ctx, token)
}

func (s *storeState) Exists(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	s.existsCalls++
	err := s.existsErr
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.mem.Exists(ctx, token)
}

func (s *storeState) Revoke(ctx context.Context, token string) error {
	s.mu.Lock()
	err := s.revokeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.mem.Revoke(ctx, token)
}

func (s *storeState) Consume(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	err := s.consumeErr
	s.mu.Unlock()
	if err != nil {
		return false, err
	}
	return s.mem.Consume(ctx, token)
}

func (s *storeState) has(token string) bool {
	ok, _ := s.mem.Exists(context.Background(), token)
	return ok
}

func (s *storeState) counts() (saves, exists int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveCalls, s.existsCalls
}

type notifierState struct {
	mu            sync.Mutex
	resets        []TokenNotification
	confirmations []TokenNotification
	err           error
}

func (n *notifierState) SendPasswordReset(ctx context.Context, notification TokenNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, notification)
	return n.err
}

func (n *notifierState) SendEmailConfirmation(ctx context.Context, notification TokenNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, notification)
	return n.err
}

func (n *notifierState) lastReset(t *testing.T) TokenNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		t.Fatal("expected a password reset notification")
	}
	return n.resets[len(n.resets)-1]
}

func (n *notifierState) lastConfirmation(t *testing.T) TokenNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.confirmations) == 0 {
		t.Fatal("expected an email confirmation notification")
	}
	return n.confirmations[len(n.confirmations)-1]
}

func (n *notifierState) counts() (resets, confirmations int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.resets), len(n.confirmations)
}
