package health

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sandeepkv93/auth-token-lifecycle/internal/tokenstore"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"gorm.io/gorm"
)

type DBChecker struct {
	db *gorm.DB
}

func NewDBChecker(db *gorm.DB) Checker {
	if db == nil {
		return nil
	}
	return &DBChecker{db: db}
}

func (c *DBChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "db", Healthy: true}
	sqlDB, err := c.db.DB()
	if err != nil {
		return failed(res, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return failed(res, err)
	}
	return res
}

type RedisChecker struct {
	client redis.UniversalClient
}

func NewRedisChecker(client redis.UniversalClient) Checker {
	if client == nil {
		return nil
	}
	return &RedisChecker{client: client}
}

func (c *RedisChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "redis", Healthy: true}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return failed(res, err)
	}
	return res
}

type MongoChecker struct {
	client *mongo.Client
}

func NewMongoChecker(client *mongo.Client) Checker {
	if client == nil {
		return nil
	}
	return &MongoChecker{client: client}
}

func (c *MongoChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "mongo", Healthy: true}
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return failed(res, err)
	}
	return res
}

// TokenStoreChecker probes the configured store end to end with a lookup of
// a token that is never issued.
type TokenStoreChecker struct {
	store tokenstore.Store
}

const probeToken = "health-probe"

func NewTokenStoreChecker(store tokenstore.Store) Checker {
	if store == nil {
		return nil
	}
	return &TokenStoreChecker{store: store}
}

func (c *TokenStoreChecker) Check(ctx context.Context) CheckResult {
	res := CheckResult{Name: "token_store", Healthy: true}
	if _, err := c.store.Exists(ctx, probeToken); err != nil {
		return failed(res, err)
	}
	return res
}

func failed(res CheckResult, err error) CheckResult {
	res.Healthy = false
	res.Error = err.Error()
	return res
}
