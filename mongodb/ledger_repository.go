package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/recipebook/recipebook-server/domain"
)

// LedgerRepository implements domain.LedgerRepository on top of the
// transactions and stripe_events collections. The unique indexes here are
// load-bearing: two concurrent submissions of the same external id can both
// pass the application-level Find, but only one insert commits.
type LedgerRepository struct {
	transactions *mongo.Collection
	events       *mongo.Collection
}

// NewLedgerRepository creates the repository and ensures its indexes.
// eventRetention bounds how long webhook event ids are kept; the uniqueness
// guarantee holds for that full window.
func NewLedgerRepository(ctx context.Context, db *mongo.Database, eventRetention time.Duration) (*LedgerRepository, error) {
	repo := &LedgerRepository{
		transactions: db.Collection(TransactionsCollection),
		events:       db.Collection(StripeEventsCollection),
	}
	if err := repo.createIndexes(ctx, eventRetention); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *LedgerRepository) createIndexes(ctx context.Context, eventRetention time.Duration) error {
	_, err := r.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}

	_, err = r.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Events age out once past the dispute-resolution horizon.
			Keys:    bson.D{{Key: "processed_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(eventRetention.Seconds())),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create stripe event indexes: %w", err)
	}
	return nil
}

func (r *LedgerRepository) FindTransaction(ctx context.Context, userID, transactionID string) (*domain.Transaction, error) {
	var tx domain.Transaction
	err := r.transactions.FindOne(ctx, bson.M{"user_id": userID, "transaction_id": transactionID}).Decode(&tx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return &tx, nil
}

func (r *LedgerRepository) InsertTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = NewObjectID()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if _, err := r.transactions.InsertOne(ctx, tx); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepository) FindEvent(ctx context.Context, eventID string) (*domain.StripeEvent, error) {
	var event domain.StripeEvent
	err := r.events.FindOne(ctx, bson.M{"event_id": eventID}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stripe event: %w", err)
	}
	return &event, nil
}

func (r *LedgerRepository) InsertEvent(ctx context.Context, event *domain.StripeEvent) error {
	if event.ID == "" {
		event.ID = NewObjectID()
	}
	if event.ProcessedAt.IsZero() {
		event.ProcessedAt = time.Now().UTC()
	}
	if _, err := r.events.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert stripe event: %w", err)
	}
	return nil
}

var _ domain.LedgerRepository = (*LedgerRepository)(nil)
