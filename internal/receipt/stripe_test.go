package receipt

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the way Stripe does: HMAC
// SHA-256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature_Accepts(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	verifier := NewStripeWebhookVerifier(webhookSecret)

	event, err := verifier.VerifySignature(payload, signPayload(payload, webhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.session.completed", string(event.Type))
}

func TestVerifySignature_RejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	verifier := NewStripeWebhookVerifier(webhookSecret)

	_, err := verifier.VerifySignature(payload, signPayload(payload, "whsec_other", time.Now()))
	assert.Error(t, err)
}

func TestVerifySignature_RejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	verifier := NewStripeWebhookVerifier(webhookSecret)
	header := signPayload(payload, webhookSecret, time.Now())

	_, err := verifier.VerifySignature([]byte(`{"id":"evt_2"}`), header)
	assert.Error(t, err)
}

func TestVerifySignature_RejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	verifier := NewStripeWebhookVerifier(webhookSecret)

	_, err := verifier.VerifySignature(payload, signPayload(payload, webhookSecret, time.Now().Add(-time.Hour)))
	assert.Error(t, err)
}

func TestVerifySignature_RejectsMissingHeader(t *testing.T) {
	verifier := NewStripeWebhookVerifier(webhookSecret)

	_, err := verifier.VerifySignature([]byte(`{}`), "")
	assert.Error(t, err)
}
