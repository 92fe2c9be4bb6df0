// Package metrics holds the application's Prometheus collectors. Counters are
// usable immediately; InitCustomMetrics attaches them to a registry at
// startup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_logins_success_total",
		Help: "Total number of successful logins.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_logins_failure_total",
		Help: "Total number of failed logins.",
	})
	UserRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_users_registered_total",
		Help: "Total number of registered users.",
	})
	OAuthLoginTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_oauth_logins_total",
		Help: "Total number of completed OAuth logins.",
	})
	IAPValidatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_iap_validated_total",
		Help: "Total number of accepted in-app purchase receipts.",
	})
	IAPRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_iap_rejected_total",
		Help: "Total number of rejected in-app purchase receipts.",
	})
	WebhookEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_webhook_events_total",
		Help: "Total number of verified webhook events received.",
	})
	WebhookSigFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_webhook_signature_failures_total",
		Help: "Total number of webhook deliveries rejected for bad signatures.",
	})
	EntitlementGrantsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_entitlement_grants_total",
		Help: "Total number of premium entitlement grants committed.",
	})
	PremiumDemotionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recipebook_premium_demotions_total",
		Help: "Total number of expired subscriptions demoted on access.",
	})
)

// InitCustomMetrics registers the application collectors with reg. It should
// be called once at startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	collectors := []prometheus.Collector{
		LoginSuccessTotal,
		LoginFailureTotal,
		UserRegisteredTotal,
		OAuthLoginTotal,
		IAPValidatedTotal,
		IAPRejectedTotal,
		WebhookEventsTotal,
		WebhookSigFailuresTotal,
		EntitlementGrantsTotal,
		PremiumDemotionsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register prometheus collector")
		}
	}
}
