package di

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"gorm.io/gorm"

	"github.com/sandeepkv93/auth-token-lifecycle/internal/app"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/config"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/database"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/health"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/observability"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/repository"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/security"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/service"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideMongoClient,
	provideTokenStore,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewAccountRepository,
	repository.NewErrorLogRepository,
)

var SecuritySet = wire.NewSet(
	providePasswordHasher,
	provideTokenCodec,
)

var ServiceSet = wire.NewSet(
	provideAuthConfig,
	provideNotifier,
	provideAuthService,
)

var AppSet = wire.NewSet(provideApp)

const mongoConnectTimeout = 10 * time.Second

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	ctx := context.Background()
	start := time.Now()
	db, err := database.Open(cfg)
	observability.RecordDatabaseStartupDuration(ctx, "connect", time.Since(start))
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "connect", "error")
		return nil, fmt.Errorf("open database: %w", err)
	}
	observability.RecordDatabaseStartupEvent(ctx, "connect", "success")
	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RedisEnabled() {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideMongoClient(cfg *config.Config) (*mongo.Client, error) {
	if !cfg.MongoEnabled() {
		return nil, nil
	}
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	return client, nil
}

// provideTokenStore selects the configured backend, bounds it with the store
// timeout and instruments the result.
func provideTokenStore(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient, mongoClient *mongo.Client) (tokenstore.Store, error) {
	var base tokenstore.Store
	switch cfg.TokenStoreBackend {
	case config.TokenStoreSQL:
		base = tokenstore.NewGormStore(db)
	case config.TokenStoreRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("token store backend %q requires a redis client", cfg.TokenStoreBackend)
		}
		base = tokenstore.NewRedisStore(redisClient, cfg.RedisKeyPrefix, cfg.LongestTokenTTL()+cfg.TokenStorePurgeGracePeriod)
	case config.TokenStoreMongo:
		if mongoClient == nil {
			return nil, fmt.Errorf("token store backend %q requires a mongo client", cfg.TokenStoreBackend)
		}
		ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
		defer cancel()
		coll := mongoClient.Database(cfg.MongoDatabase).Collection(cfg.MongoTokenCollection)
		store, err := tokenstore.NewMongoStore(ctx, coll)
		if err != nil {
			return nil, err
		}
		base = store
	case config.TokenStoreMemory:
		base = tokenstore.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unsupported token store backend %q", cfg.TokenStoreBackend)
	}
	return observability.InstrumentTokenStore(tokenstore.WithTimeout(base, cfg.TokenStoreTimeout), cfg.TokenStoreBackend), nil
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(security.Argon2Params{
		Memory:      cfg.PasswordArgon2MemoryKiB,
		Iterations:  cfg.PasswordArgon2Iterations,
		Parallelism: cfg.PasswordArgon2Parallelism,
	})
}

func provideTokenCodec(cfg *config.Config) (*security.TokenCodec, error) {
	return security.NewTokenCodec(&security.TokenCodecConfig{
		Issuer: cfg.TokenIssuer,
		Secret: []byte(cfg.TokenSigningSecret),
	})
}

func provideAuthConfig(cfg *config.Config) service.AuthConfig {
	return service.AuthConfig{
		SessionTTL:            cfg.AuthSessionTTL,
		RememberMeTTL:         cfg.AuthRememberMeTTL,
		PasswordResetTTL:      cfg.AuthPasswordResetTTL,
		EmailConfirmationTTL:  cfg.AuthEmailConfirmationTTL,
		RequireConfirmedEmail: cfg.AuthRequireConfirmedEmail,
		PasswordMinLength:     cfg.PasswordMinLength,
		PasswordResetURL:      cfg.AuthPasswordResetURL,
		EmailConfirmationURL:  cfg.AuthEmailConfirmationURL,
	}
}

func provideNotifier(cfg *config.Config, logger *slog.Logger) *service.AsyncNotifier {
	return service.NewAsyncNotifier(service.NewLogNotifier(logger), logger, cfg.NotifierMaxInFlight, cfg.NotifierDeliveryTimeout)
}

func provideAuthService(
	authCfg service.AuthConfig,
	accounts repository.AccountRepository,
	store tokenstore.Store,
	hasher *security.PasswordHasher,
	codec *security.TokenCodec,
	notifier *service.AsyncNotifier,
	logger *slog.Logger,
) service.AuthServiceInterface {
	core := service.NewAuthService(authCfg, accounts, store, hasher, codec, notifier)
	return service.NewInstrumentedAuthService(core, logger)
}

func provideReadinessProbeRunner(
	cfg *config.Config,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	mongoClient *mongo.Client,
	store tokenstore.Store,
) *health.ProbeRunner {
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, 0,
		health.NewDBChecker(db),
		health.NewRedisChecker(redisClient),
		health.NewMongoChecker(mongoClient),
		health.NewTokenStoreChecker(store),
	)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	auth service.AuthServiceInterface,
	store tokenstore.Store,
	errorLogs repository.ErrorLogRepository,
	notifier *service.AsyncNotifier,
	readiness *health.ProbeRunner,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	mongoClient *mongo.Client,
) *app.App {
	return app.New(app.Deps{
		Config:        cfg,
		Logger:        logger,
		Auth:          auth,
		Store:         store,
		ErrorLogs:     errorLogs,
		Notifier:      notifier,
		Readiness:     readiness,
		Observability: runtime,
		DB:            db,
		Redis:         redisClient,
		Mongo:         mongoClient,
	})
}
