package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/nushungry/review-migrator/internal/config"
	"github.com/nushungry/review-migrator/internal/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Mongo is a connected MongoDB database
type Mongo struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// Connect opens a MongoDB client and verifies the server is reachable
func Connect(ctx context.Context, cfg *config.MongoConfig) (*Mongo, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(cfg.AppName).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	log.Info().Str("database", cfg.Database).Msg("MongoDB connection established")

	return &Mongo{Client: client, DB: client.Database(cfg.Database)}, nil
}

// Close disconnects the client
func (m *Mongo) Close(ctx context.Context) {
	if err := m.Client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("MongoDB disconnect failed")
		return
	}
	log.Info().Msg("MongoDB connection closed")
}

// Collection implements Database
func (m *Mongo) Collection(name string) Collection {
	return &mongoCollection{coll: m.DB.Collection(name)}
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Name() string {
	return c.coll.Name()
}

func (c *mongoCollection) InsertUnordered(ctx context.Context, docs []models.Document) (InsertResult, error) {
	if len(docs) == 0 {
		return InsertResult{}, nil
	}

	batch := make([]interface{}, len(docs))
	for i, d := range docs {
		batch[i] = d
	}

	_, err := c.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	return insertResult(len(docs), err)
}

// insertResult turns the outcome of an unordered InsertMany of n documents
// into per-document results. Only errors carrying no per-document detail
// are returned as batch errors.
func insertResult(n int, err error) (InsertResult, error) {
	if err == nil {
		return InsertResult{Inserted: n}, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || (len(bwe.WriteErrors) == 0 && bwe.WriteConcernError == nil) {
		return InsertResult{}, err
	}

	result := InsertResult{
		Inserted:    n - len(bwe.WriteErrors),
		WriteErrors: make([]WriteError, 0, len(bwe.WriteErrors)),
	}
	for _, we := range bwe.WriteErrors {
		result.WriteErrors = append(result.WriteErrors, WriteError{
			Index:   we.Index,
			Code:    we.Code,
			Message: we.Message,
		})
	}
	if wce := bwe.WriteConcernError; wce != nil {
		result.WriteConcern = &WriteError{Index: -1, Code: wce.Code, Message: wce.Message}
	}
	return result, nil
}

func (c *mongoCollection) DeleteAll(ctx context.Context) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) Count(ctx context.Context) (int64, error) {
	return c.coll.CountDocuments(ctx, bson.D{})
}

func (c *mongoCollection) CreateIndexes(ctx context.Context, specs []IndexSpec) ([]string, error) {
	if len(specs) == 0 {
		return nil, nil
	}

	indexModels := make([]mongo.IndexModel, 0, len(specs))
	for _, spec := range specs {
		keys := bson.D{}
		for _, k := range spec.Keys {
			keys = append(keys, bson.E{Key: k.Field, Value: k.Order})
		}
		model := mongo.IndexModel{Keys: keys}
		if spec.Unique {
			model.Options = options.Index().SetUnique(true)
		}
		indexModels = append(indexModels, model)
	}

	return c.coll.Indexes().CreateMany(ctx, indexModels)
}
