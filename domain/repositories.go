package domain

import (
	"context"
	"time"
)

// UserRepository defines persistence for user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByProvider(ctx context.Context, provider AuthProvider, providerID string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error

	// SetSubscription updates only the subscription fields of a user. It is
	// called by the reconciliation engine inside a store transaction, and by
	// the access gate when demoting an expired subscription (expiry nil,
	// method empty).
	SetSubscription(ctx context.Context, userID string, status SubscriptionStatus, expiry *time.Time, paymentMethod string) error
}

// RecipeRepository defines persistence for recipes.
type RecipeRepository interface {
	CreateRecipe(ctx context.Context, recipe *Recipe) error
	GetRecipeByID(ctx context.Context, id string) (*Recipe, error)
	ListRecipes(ctx context.Context) ([]*Recipe, error)
}

// LedgerRepository is the append-only idempotency record per external
// transaction or webhook event id. Insert methods return ErrAlreadyExists on
// a unique-key collision; that collision, not the Find methods, is the
// idempotency guarantee under concurrency.
type LedgerRepository interface {
	FindTransaction(ctx context.Context, userID, transactionID string) (*Transaction, error)
	InsertTransaction(ctx context.Context, tx *Transaction) error
	FindEvent(ctx context.Context, eventID string) (*StripeEvent, error)
	InsertEvent(ctx context.Context, event *StripeEvent) error
}

// TxRunner executes fn inside an all-or-nothing store transaction. Writes
// made through ctx inside fn become visible together or not at all.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
