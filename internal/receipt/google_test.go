package receipt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/androidpublisher/v3"
	"google.golang.org/api/googleapi"
)

type fakePurchasesAPI struct {
	purchase *androidpublisher.ProductPurchase
	err      error

	gotProductID string
	gotToken     string
}

func (f *fakePurchasesAPI) GetProductPurchase(_ context.Context, _, productID, token string) (*androidpublisher.ProductPurchase, error) {
	f.gotProductID = productID
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return f.purchase, nil
}

func newTestGoogleValidator(api purchasesAPI) *GoogleValidator {
	return &GoogleValidator{packageName: "com.example.recipebook", api: api, timeout: googleVerifyTimeout}
}

// hangingPurchasesAPI blocks until the call context is canceled.
type hangingPurchasesAPI struct{}

func (hangingPurchasesAPI) GetProductPurchase(ctx context.Context, _, _, _ string) (*androidpublisher.ProductPurchase, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestGoogleValidate_Accepts(t *testing.T) {
	api := &fakePurchasesAPI{purchase: &androidpublisher.ProductPurchase{
		PurchaseState:      0,
		ConsumptionState:   0,
		OrderId:            "GPA.1234-5678",
		PurchaseTimeMillis: 1700000000000,
	}}
	v := newTestGoogleValidator(api)

	result := v.Validate(context.Background(), `{"purchaseToken":"tok-1"}`, "premium_subscription_monthly")
	require.True(t, result.Valid)
	assert.Equal(t, "GPA.1234-5678", result.TransactionID)
	assert.Equal(t, "tok-1", api.gotToken)
	assert.Equal(t, "premium_subscription_monthly", api.gotProductID)
}

func TestGoogleValidate_PrefersReceiptOrderID(t *testing.T) {
	api := &fakePurchasesAPI{purchase: &androidpublisher.ProductPurchase{
		OrderId: "GPA.server-side",
	}}
	v := newTestGoogleValidator(api)

	result := v.Validate(context.Background(),
		`{"purchaseToken":"tok-1","orderId":"GPA.client-side"}`, "premium_subscription_monthly")
	require.True(t, result.Valid)
	assert.Equal(t, "GPA.client-side", result.TransactionID)
}

func TestGoogleValidate_RejectsMalformedReceipt(t *testing.T) {
	v := newTestGoogleValidator(&fakePurchasesAPI{})

	result := v.Validate(context.Background(), "not-json", "premium_subscription_monthly")
	assert.False(t, result.Valid)
}

func TestGoogleValidate_RejectsMissingToken(t *testing.T) {
	v := newTestGoogleValidator(&fakePurchasesAPI{})

	result := v.Validate(context.Background(), `{"orderId":"GPA.1"}`, "premium_subscription_monthly")
	assert.False(t, result.Valid)
}

func TestGoogleValidate_RejectsCanceledPurchase(t *testing.T) {
	api := &fakePurchasesAPI{purchase: &androidpublisher.ProductPurchase{PurchaseState: 1}}
	v := newTestGoogleValidator(api)

	result := v.Validate(context.Background(), `{"purchaseToken":"tok-1"}`, "premium_subscription_monthly")
	assert.False(t, result.Valid)
}

func TestGoogleValidate_RejectsConsumedPurchase(t *testing.T) {
	api := &fakePurchasesAPI{purchase: &androidpublisher.ProductPurchase{
		PurchaseState:    0,
		ConsumptionState: 1,
	}}
	v := newTestGoogleValidator(api)

	result := v.Validate(context.Background(), `{"purchaseToken":"tok-1"}`, "premium_subscription_monthly")
	assert.False(t, result.Valid)
}

func TestGoogleValidate_HungCallFailsClosed(t *testing.T) {
	v := &GoogleValidator{
		packageName: "com.example.recipebook",
		api:         hangingPurchasesAPI{},
		timeout:     10 * time.Millisecond,
	}

	result := v.Validate(context.Background(), `{"purchaseToken":"tok-1"}`, "premium_subscription_monthly")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "unavailable")
}

func TestGoogleValidate_UnknownPurchase(t *testing.T) {
	api := &fakePurchasesAPI{err: &googleapi.Error{Code: 404}}
	v := newTestGoogleValidator(api)

	result := v.Validate(context.Background(), `{"purchaseToken":"tok-1"}`, "premium_subscription_monthly")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Error, "not found")
}
