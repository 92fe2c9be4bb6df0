package domain

import "time"

// Platform identifies the payment source of an entitlement signal.
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformStripe  Platform = "stripe"
)

// TransactionStatus tracks the lifecycle of a recorded purchase.
type TransactionStatus string

const TransactionCompleted TransactionStatus = "completed"

// Transaction is the idempotency ledger entry for in-app purchases. The
// unique index on TransactionID is the serialization point that prevents a
// duplicate submission from granting entitlement twice. ReceiptData is kept
// as dispute evidence.
type Transaction struct {
	ID            string            `bson:"_id,omitempty"`
	UserID        string            `bson:"user_id"`
	TransactionID string            `bson:"transaction_id"`
	Platform      Platform          `bson:"platform"`
	ProductID     string            `bson:"product_id,omitempty"`
	PurchaseDate  time.Time         `bson:"purchase_date,omitempty"`
	ReceiptData   string            `bson:"receipt_data,omitempty"`
	Status        TransactionStatus `bson:"status"`
	CreatedAt     time.Time         `bson:"created_at"`
}

// StripeEvent is the idempotency ledger entry for webhook deliveries. Entries
// age out via a TTL index once past the dispute-resolution horizon; the
// unique index on EventID holds for the full retention window.
type StripeEvent struct {
	ID          string    `bson:"_id,omitempty"`
	EventID     string    `bson:"event_id"`
	Type        string    `bson:"type"`
	UserID      string    `bson:"user_id,omitempty"`
	Email       string    `bson:"email,omitempty"`
	SessionID   string    `bson:"session_id,omitempty"`
	ProcessedAt time.Time `bson:"processed_at"`
}

// ValidationResult is the normalized outcome of verifying one payment-source
// payload. It is ephemeral: on success its fields are copied into the user
// record and the ledger, it is never persisted itself.
type ValidationResult struct {
	Valid         bool
	TransactionID string
	ProductID     string
	PurchaseDate  time.Time
	ExpiryDate    *time.Time
	Error         string
}
