package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

// Client wraps the MongoDB connection and database handle. It replaces the
// package-level singletons some codebases use; everything downstream takes
// the *mongo.Database from here through constructors.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes the MongoDB connection, verifies it with a ping and
// returns a Client bound to dbName.
func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	log.Info().Str("db_name", dbName).Msg("connecting to MongoDB")

	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	log.Info().Msg("MongoDB connection established")
	return &Client{
		client: client,
		db:     client.Database(dbName),
	}, nil
}

// Database returns the bound database handle.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Ping verifies the connection, for health checks. Uses a short timeout of
// its own.
func (c *Client) Ping(ctx context.Context) error {
	if c.client == nil {
		return errors.New("mongodb client is not connected")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(pingCtx, readpref.Primary())
}

// Close disconnects the client. Call on shutdown.
func (c *Client) Close(ctx context.Context) {
	if c.client == nil {
		return
	}
	log.Info().Msg("closing MongoDB connection")
	if err := c.client.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("error closing MongoDB connection")
	}
}
