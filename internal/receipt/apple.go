package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recipebook/recipebook-server/domain"
)

const (
	appleProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	appleSandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"

	// Status returned when a sandbox receipt is sent to the production
	// endpoint; the verification must be retried against sandbox.
	appleStatusSandboxReceipt = 21007
)

// AppleValidator verifies App Store receipts against Apple's verifyReceipt
// endpoint.
type AppleValidator struct {
	sharedSecret      string
	expectedProductID string
	productionURL     string
	sandboxURL        string
	client            *http.Client
}

func NewAppleValidator(sharedSecret, expectedProductID string) *AppleValidator {
	return &AppleValidator{
		sharedSecret:      sharedSecret,
		expectedProductID: expectedProductID,
		productionURL:     appleProductionURL,
		sandboxURL:        appleSandboxURL,
		client:            &http.Client{Timeout: 10 * time.Second},
	}
}

type appleVerifyRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type appleReceiptInfo struct {
	ProductID          string `json:"product_id"`
	TransactionID      string `json:"transaction_id"`
	PurchaseDateMS     string `json:"purchase_date_ms"`
	ExpiresDateMS      string `json:"expires_date_ms"`
	CancellationDateMS string `json:"cancellation_date_ms"`
}

type appleVerifyResponse struct {
	Status            int                `json:"status"`
	LatestReceiptInfo []appleReceiptInfo `json:"latest_receipt_info"`
}

// Validate submits the receipt blob to Apple. A 21007 status from production
// is retried against the sandbox endpoint.
func (v *AppleValidator) Validate(ctx context.Context, receipt, _ string) *domain.ValidationResult {
	resp, err := v.verify(ctx, v.productionURL, receipt)
	if err != nil {
		log.Error().Err(err).Msg("Apple receipt verification call failed")
		return invalid("apple verification unavailable")
	}
	if resp.Status == appleStatusSandboxReceipt {
		resp, err = v.verify(ctx, v.sandboxURL, receipt)
		if err != nil {
			log.Error().Err(err).Msg("Apple sandbox receipt verification call failed")
			return invalid("apple verification unavailable")
		}
	}

	if resp.Status != 0 {
		return invalid(fmt.Sprintf("receipt rejected by apple (status %d)", resp.Status))
	}
	if len(resp.LatestReceiptInfo) == 0 {
		return invalid("no valid products in receipt")
	}

	latest := resp.LatestReceiptInfo[0]
	if latest.ProductID != v.expectedProductID {
		return invalid("product does not match")
	}
	if latest.CancellationDateMS != "" {
		return invalid("purchase canceled or refunded")
	}

	purchaseDate, err := parseMillis(latest.PurchaseDateMS)
	if err != nil {
		return invalid("malformed purchase date in receipt")
	}

	result := &domain.ValidationResult{
		Valid:         true,
		TransactionID: latest.TransactionID,
		ProductID:     latest.ProductID,
		PurchaseDate:  purchaseDate,
	}
	if latest.ExpiresDateMS != "" {
		if expiry, err := parseMillis(latest.ExpiresDateMS); err == nil {
			result.ExpiryDate = &expiry
		}
	}
	return result
}

func (v *AppleValidator) verify(ctx context.Context, url, receipt string) (*appleVerifyResponse, error) {
	body, err := json.Marshal(appleVerifyRequest{
		ReceiptData:            receipt,
		Password:               v.sharedSecret,
		ExcludeOldTransactions: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verifyReceipt returned HTTP %d", httpResp.StatusCode)
	}

	var resp appleVerifyResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode verifyReceipt response: %w", err)
	}
	return &resp, nil
}

func parseMillis(ms string) (time.Time, error) {
	n, err := strconv.ParseInt(ms, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(n).UTC(), nil
}

var _ Validator = (*AppleValidator)(nil)
