package receipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/recipebook/recipebook-server/domain"
)

// purchasesAPI is the slice of the androidpublisher client the validator
// needs; tests substitute a fake.
type purchasesAPI interface {
	GetProductPurchase(ctx context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error)
}

// googleVerifyTimeout bounds each purchases.products.get call.
const googleVerifyTimeout = 10 * time.Second

// GoogleValidator verifies Play Store purchases via the androidpublisher API.
type GoogleValidator struct {
	packageName string
	api         purchasesAPI
	timeout     time.Duration
}

// NewGoogleValidator builds a validator authenticated with the given service
// account key (JSON).
func NewGoogleValidator(ctx context.Context, packageName, serviceAccountKey string) (*GoogleValidator, error) {
	svc, err := androidpublisher.NewService(ctx, option.WithCredentialsJSON([]byte(serviceAccountKey)))
	if err != nil {
		return nil, fmt.Errorf("failed to create androidpublisher service: %w", err)
	}
	return &GoogleValidator{
		packageName: packageName,
		api:         &androidPublisherAPI{svc: svc},
		timeout:     googleVerifyTimeout,
	}, nil
}

type androidPublisherAPI struct {
	svc *androidpublisher.Service
}

func (a *androidPublisherAPI) GetProductPurchase(ctx context.Context, packageName, productID, token string) (*androidpublisher.ProductPurchase, error) {
	return a.svc.Purchases.Products.Get(packageName, productID, token).Context(ctx).Do()
}

// googleReceipt is the client-supplied receipt blob.
type googleReceipt struct {
	PurchaseToken string `json:"purchaseToken"`
	OrderID       string `json:"orderId"`
}

// Validate checks the purchase token with Google Play. The order id is the
// external transaction id.
func (v *GoogleValidator) Validate(ctx context.Context, receipt, productID string) *domain.ValidationResult {
	var parsed googleReceipt
	if err := json.Unmarshal([]byte(receipt), &parsed); err != nil {
		return invalid("malformed google receipt")
	}
	if parsed.PurchaseToken == "" {
		return invalid("purchaseToken missing")
	}

	// A hung Play API call must not block the request indefinitely.
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	purchase, err := v.api.GetProductPurchase(ctx, v.packageName, productID, parsed.PurchaseToken)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return invalid("purchase not found in Google Play")
		}
		log.Error().Err(err).Msg("Google purchase verification call failed")
		return invalid("google verification unavailable")
	}

	// 0 = purchased, 1 = canceled, 2 = pending.
	if purchase.PurchaseState != 0 {
		return invalid(fmt.Sprintf("invalid purchase state: %d", purchase.PurchaseState))
	}
	// 1 = already consumed.
	if purchase.ConsumptionState == 1 {
		return invalid("purchase already consumed")
	}

	transactionID := parsed.OrderID
	if transactionID == "" {
		transactionID = purchase.OrderId
	}

	return &domain.ValidationResult{
		Valid:         true,
		TransactionID: transactionID,
		ProductID:     productID,
		PurchaseDate:  millisToTime(purchase.PurchaseTimeMillis),
	}
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ Validator = (*GoogleValidator)(nil)
