package overlay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	connectRetryDelay = 2 * time.Second
	pingTimeout       = 5 * time.Second
)

// MongoConfig configures a MongoStore.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string

	// Attempts bounds how many times the initial ping is tried.
	Attempts uint
}

// MongoStore keeps overlays in a MongoDB collection.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo opens a client and waits until the server answers a ping,
// retrying with a fixed delay so the service can start alongside its database.
func ConnectMongo(ctx context.Context, cfg MongoConfig, log *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	attempts := max(cfg.Attempts, 1)
	var attempt uint
	err = retry.New(
		retry.Attempts(attempts),
		retry.Delay(connectRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			log.Warn("mongo ping failed",
				slog.Uint64("attempt", uint64(attempt)),
				slog.Uint64("attempts", uint64(attempts)),
				slog.String("error", err.Error()))
			return err
		}
		return nil
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	log.Info("connected to mongo",
		slog.String("database", cfg.Database),
		slog.String("collection", cfg.Collection))
	return &MongoStore{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports whether the database is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Create implements Store.Create.
func (s *MongoStore) Create(ctx context.Context, o Overlay) (Overlay, error) {
	o.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, o); err != nil {
		return Overlay{}, fmt.Errorf("insert overlay: %w", err)
	}
	return o, nil
}

// List implements Store.List.
func (s *MongoStore) List(ctx context.Context) ([]Overlay, error) {
	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find overlays: %w", err)
	}
	out := []Overlay{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode overlays: %w", err)
	}
	return out, nil
}

// Update implements Store.Update.
func (s *MongoStore) Update(ctx context.Context, id primitive.ObjectID, p Patch) error {
	set := bson.M{}
	for k, v := range p {
		set[k] = v
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update overlay: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete implements Store.Delete.
func (s *MongoStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete overlay: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
