package receipt

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeWebhookVerifier authenticates webhook deliveries. Verification runs
// against the raw, unparsed request body: any re-serialization of the body
// before this point invalidates the signature.
type StripeWebhookVerifier struct {
	secret string
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

// VerifySignature checks the Stripe-Signature header against the raw payload
// and returns the parsed event on success.
func (v *StripeWebhookVerifier) VerifySignature(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
