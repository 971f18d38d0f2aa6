package tokenstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoToken struct {
	TokenHash string    `bson:"token_hash"`
	CreatedAt time.Time `bson:"created_at"`
}

type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewMongoStore ensures the unique token_hash index that makes Save an
// insert-if-absent.
func NewMongoStore(ctx context.Context, coll *mongo.Collection) (*MongoStore, error) {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("token_hash_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("created_at"),
		},
	})
	if err != nil {
		return nil, unavailable("create indexes", err)
	}
	return &MongoStore{coll: coll, now: time.Now}, nil
}

func (s *MongoStore) Save(ctx context.Context, token string) error {
	key := Key(token)
	update := bson.M{"$setOnInsert": mongoToken{TokenHash: key, CreatedAt: s.now().UTC()}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"token_hash": key}, update, options.UpdateOne().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return unavailable("save", err)
	}
	return nil
}

func (s *MongoStore) Exists(ctx context.Context, token string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"token_hash": Key(token)}, options.Count().SetLimit(1))
	if err != nil {
		return false, unavailable("exists", err)
	}
	return n > 0, nil
}

func (s *MongoStore) Revoke(ctx context.Context, token string) error {
	_, err := s.Consume(ctx, token)
	return err
}

func (s *MongoStore) Consume(ctx context.Context, token string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"token_hash": Key(token)})
	if err != nil {
		return false, unavailable("consume", err)
	}
	return res.DeletedCount == 1, nil
}

func (s *MongoStore) PurgeCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff.UTC()}})
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return res.DeletedCount, nil
}
