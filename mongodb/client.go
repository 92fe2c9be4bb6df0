package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	UsersCollection        = "users"
	RecipesCollection      = "recipes"
	TransactionsCollection = "transactions"  // IAP idempotency ledger
	StripeEventsCollection = "stripe_events" // webhook idempotency ledger
)

// Client wraps the MongoDB connection and database handle. Its lifecycle is
// owned by process startup/shutdown; repositories receive the database handle
// through their constructors.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes the MongoDB connection and verifies it with a ping.
func Connect(ctx context.Context, uri, dbName string) (*Client, error) {
	log.Info().Str("db", dbName).Msg("Connecting to MongoDB")

	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB primary: %w", err)
	}

	return &Client{client: client, db: client.Database(dbName)}, nil
}

// Database returns the database handle for repository constructors.
func (c *Client) Database() *mongo.Database { return c.db }

// Ping is used by health checks.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.client.Ping(pingCtx, readpref.Primary())
}

// WithTransaction runs fn inside a multi-document transaction. The callback
// context carries the session; all writes issued through it commit or abort
// together. Implements domain.TxRunner.
func (c *Client) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := c.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		return nil, fn(sessCtx)
	})
	return err
}

// Close disconnects the client. Call on application shutdown.
func (c *Client) Close(ctx context.Context) error {
	log.Info().Msg("Closing MongoDB connection")
	return c.client.Disconnect(ctx)
}

// NewObjectID generates a new MongoDB ObjectID as a hex string.
func NewObjectID() string {
	return bson.NewObjectID().Hex()
}
