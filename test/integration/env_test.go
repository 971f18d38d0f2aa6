package integration

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/database"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/repository"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/security"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

const integrationSecret = "integration-signing-secret-0123456789abcdef"

type captureNotifier struct {
	mu            sync.Mutex
	resets        []service.TokenNotification
	confirmations []service.TokenNotification
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, notification service.TokenNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, notification)
	return nil
}

func (n *captureNotifier) SendEmailConfirmation(_ context.Context, notification service.TokenNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, notification)
	return nil
}

func (n *captureNotifier) LastResetToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		return ""
	}
	return n.resets[len(n.resets)-1].Token
}

func (n *captureNotifier) LastConfirmationToken() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.confirmations) == 0 {
		return ""
	}
	return n.confirmations[len(n.confirmations)-1].Token
}

type lifecycleEnv struct {
	db       *gorm.DB
	store    tokenstore.Store
	auth     service.AuthServiceInterface
	notifier *captureNotifier
}

type lifecycleOptions struct {
	store     func(db *gorm.DB) tokenstore.Store
	cfgMutate func(*service.AuthConfig)
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "auth.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// SQLite allows one writer; concurrent redemptions would otherwise hit SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newLifecycleEnv wires the service the way the application graph does,
// with a capturing notifier in place of the log one.
func newLifecycleEnv(t *testing.T, opts lifecycleOptions) *lifecycleEnv {
	t.Helper()
	db := newSQLiteDB(t)

	var base tokenstore.Store = tokenstore.NewGormStore(db)
	backend := "sql"
	if opts.store != nil {
		base = opts.store(db)
		backend = "custom"
	}
	store := observability.InstrumentTokenStore(tokenstore.WithTimeout(base, 2*time.Second), backend)

	cfg := service.AuthConfig{
		SessionTTL:           time.Hour,
		RememberMeTTL:        720 * time.Hour,
		PasswordResetTTL:     30 * time.Minute,
		EmailConfirmationTTL: 24 * time.Hour,
		PasswordMinLength:    8,
		PasswordResetURL:     "http://localhost:3000/reset-password",
		EmailConfirmationURL: "http://localhost:3000/confirm-email",
	}
	if opts.cfgMutate != nil {
		opts.cfgMutate(&cfg)
	}

	codec, err := security.NewTokenCodec(&security.TokenCodecConfig{
		Issuer: "auth-integration",
		Secret: []byte(integrationSecret),
	})
	if err != nil {
		t.Fatalf("token codec: %v", err)
	}
	notifier := &captureNotifier{}
	core := service.NewAuthService(
		cfg,
		repository.NewAccountRepository(db),
		store,
		security.NewPasswordHasher(security.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1}),
		codec,
		notifier,
	)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return &lifecycleEnv{
		db:       db,
		store:    store,
		auth:     service.NewInstrumentedAuthService(core, logger),
		notifier: notifier,
	}
}
