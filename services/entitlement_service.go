package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v82"

	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
	"github.com/recipebook/recipebook-server/internal/metrics"
	"github.com/recipebook/recipebook-server/internal/receipt"
)

// checkoutSessionCompleted is the only webhook event type that grants
// entitlement; everything else is acknowledged untouched.
const checkoutSessionCompleted = "checkout.session.completed"

// WebhookVerifier authenticates a raw webhook payload against its signature
// header.
type WebhookVerifier interface {
	VerifySignature(payload []byte, sigHeader string) (stripe.Event, error)
}

// IAPRequest is a client-submitted in-app purchase to validate.
type IAPRequest struct {
	Receipt       string `json:"receipt"`
	Platform      string `json:"platform"`
	ProductID     string `json:"productId"`
	TransactionID string `json:"transactionId"`
}

// IAPResult reports the outcome of an IAP validation. AlreadyProcessed marks
// an idempotent no-op: the transaction had been committed before, the retry
// succeeded without writing anything.
type IAPResult struct {
	AlreadyProcessed bool       `json:"alreadyProcessed,omitempty"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
}

// WebhookResult is the acknowledgement returned to the webhook sender.
type WebhookResult struct {
	Received  bool `json:"received"`
	Processed bool `json:"processed"`
}

// EntitlementService is the sole writer of subscription state. It takes
// untrusted signals from the payment sources and commits entitlement grants
// together with their idempotency ledger entries in one store transaction.
type EntitlementService struct {
	users      domain.UserRepository
	ledger     domain.LedgerRepository
	validators map[domain.Platform]receipt.Validator
	verifier   WebhookVerifier
	tx         domain.TxRunner
	period     time.Duration
}

// NewEntitlementService creates the reconciliation engine. period is the
// entitlement duration granted per successful payment.
func NewEntitlementService(
	users domain.UserRepository,
	ledger domain.LedgerRepository,
	validators map[domain.Platform]receipt.Validator,
	verifier WebhookVerifier,
	tx domain.TxRunner,
	period time.Duration,
) *EntitlementService {
	return &EntitlementService{
		users:      users,
		ledger:     ledger,
		validators: validators,
		verifier:   verifier,
		tx:         tx,
		period:     period,
	}
}

// ValidateIAP processes an authenticated user's purchase receipt.
//
// The ledger lookup makes client retries cheap, but the real duplicate guard
// is the unique index behind InsertTransaction: two concurrent submissions
// can both miss the lookup, only one commit wins and the loser is reported
// as already processed.
func (s *EntitlementService) ValidateIAP(ctx context.Context, userID string, req IAPRequest) (*IAPResult, error) {
	if req.Receipt == "" || req.Platform == "" || req.ProductID == "" {
		return nil, apperrors.NewInputInvalid("receipt, platform and productId are required")
	}

	platform := domain.Platform(req.Platform)
	validator, ok := s.validators[platform]
	if !ok {
		return nil, apperrors.NewInputInvalid("unsupported platform")
	}

	if req.TransactionID != "" {
		existing, err := s.ledger.FindTransaction(ctx, userID, req.TransactionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, apperrors.NewInternal("failed to process payment", err)
		}
		if existing != nil {
			log.Warn().Str("userID", userID).Str("transactionID", req.TransactionID).
				Msg("Duplicate transaction submission, skipping")
			return &IAPResult{AlreadyProcessed: true}, nil
		}
	}

	result := validator.Validate(ctx, req.Receipt, req.ProductID)
	if !result.Valid {
		log.Warn().Str("userID", userID).Str("platform", req.Platform).Str("reason", result.Error).
			Msg("Receipt rejected")
		metrics.IAPRejectedTotal.Inc()
		return nil, apperrors.NewValidationFailed("invalid receipt")
	}

	expiry := time.Now().UTC().Add(s.period)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.SetSubscription(ctx, userID, domain.SubscriptionPremium, &expiry, req.Platform); err != nil {
			return err
		}
		return s.ledger.InsertTransaction(ctx, &domain.Transaction{
			UserID:        userID,
			TransactionID: result.TransactionID,
			Platform:      platform,
			ProductID:     req.ProductID,
			PurchaseDate:  result.PurchaseDate,
			ReceiptData:   req.Receipt,
			Status:        domain.TransactionCompleted,
		})
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race against a concurrent duplicate; the winner already
		// granted the entitlement.
		log.Warn().Str("userID", userID).Str("transactionID", result.TransactionID).
			Msg("Concurrent duplicate transaction, treating as processed")
		return &IAPResult{AlreadyProcessed: true}, nil
	}
	if err != nil {
		return nil, apperrors.NewInternal("failed to process payment", err)
	}

	metrics.IAPValidatedTotal.Inc()
	metrics.EntitlementGrantsTotal.Inc()
	log.Info().Str("userID", userID).Str("platform", req.Platform).Time("expiresAt", expiry).
		Msg("User upgraded to premium via IAP")
	return &IAPResult{ExpiresAt: &expiry}, nil
}

// checkoutSession is the slice of the event payload this system reads.
type checkoutSession struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"`
	CustomerDetails   struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// HandleStripeEvent processes a webhook delivery. Only a signature failure
// returns an error (the sender must see a 4xx so its alerting fires);
// everything after verification is acknowledged, with failures logged,
// because the sender cannot act on them beyond retrying.
func (s *EntitlementService) HandleStripeEvent(ctx context.Context, payload []byte, sigHeader string) (*WebhookResult, error) {
	event, err := s.verifier.VerifySignature(payload, sigHeader)
	if err != nil {
		log.Warn().Err(err).Msg("Webhook signature verification failed")
		metrics.WebhookSigFailuresTotal.Inc()
		return nil, apperrors.NewValidationFailed("webhook signature verification failed")
	}
	metrics.WebhookEventsTotal.Inc()

	existing, err := s.ledger.FindEvent(ctx, event.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		log.Error().Err(err).Str("eventID", event.ID).Msg("Webhook ledger lookup failed")
		return &WebhookResult{Received: true}, nil
	}
	if existing != nil {
		log.Warn().Str("eventID", event.ID).Msg("Duplicate webhook event ignored")
		return &WebhookResult{Received: true}, nil
	}

	if string(event.Type) != checkoutSessionCompleted {
		// Unhandled event types are acknowledged so the sender doesn't
		// retry-storm on events this system doesn't care about.
		log.Debug().Str("eventID", event.ID).Str("type", string(event.Type)).
			Msg("Ignoring unhandled webhook event type")
		return &WebhookResult{Received: true}, nil
	}

	var session checkoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Error().Err(err).Str("eventID", event.ID).Msg("Failed to decode checkout session payload")
		return &WebhookResult{Received: true}, nil
	}

	user, err := s.resolveUser(ctx, session)
	if err != nil {
		log.Error().Err(err).Str("eventID", event.ID).Str("sessionID", session.ID).
			Msg("Could not resolve user for checkout session")
		return &WebhookResult{Received: true}, nil
	}

	expiry := time.Now().UTC().Add(s.period)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.SetSubscription(ctx, user.ID, domain.SubscriptionPremium, &expiry, string(domain.PlatformStripe)); err != nil {
			return err
		}
		return s.ledger.InsertEvent(ctx, &domain.StripeEvent{
			EventID:   event.ID,
			Type:      string(event.Type),
			UserID:    user.ID,
			Email:     session.CustomerDetails.Email,
			SessionID: session.ID,
		})
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		log.Warn().Str("eventID", event.ID).Msg("Concurrent duplicate webhook delivery, treating as processed")
		return &WebhookResult{Received: true}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("eventID", event.ID).Msg("Failed to commit webhook entitlement grant")
		return &WebhookResult{Received: true}, nil
	}

	metrics.EntitlementGrantsTotal.Inc()
	log.Info().Str("userID", user.ID).Str("eventID", event.ID).
		Msg("User upgraded to premium via Stripe checkout")
	return &WebhookResult{Received: true, Processed: true}, nil
}

// resolveUser finds the target account by the checkout's explicit reference
// id if present, else by the customer email.
func (s *EntitlementService) resolveUser(ctx context.Context, session checkoutSession) (*domain.User, error) {
	if session.ClientReferenceID != "" {
		return s.users.GetUserByID(ctx, session.ClientReferenceID)
	}
	if session.CustomerDetails.Email != "" {
		return s.users.GetUserByEmail(ctx, domain.NormalizeEmail(session.CustomerDetails.Email))
	}
	return nil, errors.New("checkout session carries no user reference or email")
}
