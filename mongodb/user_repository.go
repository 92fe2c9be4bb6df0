package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/recipebook/recipebook-server/domain"
)

// UserRepository implements domain.UserRepository.
type UserRepository struct {
	users *mongo.Collection
}

// NewUserRepository creates the repository and ensures its indexes.
func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	repo := &UserRepository{users: db.Collection(UsersCollection)}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *UserRepository) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// Case-insensitive unique email.
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
		{
			// Exact lookup for OAuth assertions. Partial so unlinked local
			// accounts (no provider_id) don't collide.
			Keys: bson.D{{Key: "auth_provider", Value: 1}, {Key: "provider_id", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"provider_id": bson.M{"$type": "string"}}),
		},
	}
	if _, err := r.users.Indexes().CreateMany(ctx, indexModels); err != nil {
		return fmt.Errorf("failed to create indexes for users collection: %w", err)
	}
	return nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = NewObjectID()
	}
	user.Email = domain.NormalizeEmail(user.Email)
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.SubscriptionStatus == "" {
		user.SubscriptionStatus = domain.SubscriptionFree
	}

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	// The filter must match the stored canonical form; the collation on the
	// unique index covers uniqueness, not lookups.
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *UserRepository) GetUserByProvider(ctx context.Context, provider domain.AuthProvider, providerID string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"auth_provider": provider, "provider_id": providerID})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user *domain.User) error {
	user.Email = domain.NormalizeEmail(user.Email)
	user.UpdatedAt = time.Now().UTC()
	res, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSubscription updates only the subscription fields. Used by the
// reconciliation engine inside a transaction and by the access gate when
// demoting an expired subscription.
func (r *UserRepository) SetSubscription(ctx context.Context, userID string, status domain.SubscriptionStatus, expiry *time.Time, paymentMethod string) error {
	set := bson.M{
		"subscription_status": status,
		"updated_at":          time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if expiry != nil {
		set["subscription_expiry"] = *expiry
	} else if status == domain.SubscriptionFree {
		update["$unset"] = bson.M{"subscription_expiry": ""}
	}
	if paymentMethod != "" {
		set["last_payment_method"] = paymentMethod
	}

	res, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		log.Warn().Str("userID", userID).Msg("SetSubscription matched no user")
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.UserRepository = (*UserRepository)(nil)
