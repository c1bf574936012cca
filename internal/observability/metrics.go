// Package observability provides prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ResetEmailsSent counts password-reset emails handed to the mail transport.
	ResetEmailsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_reset_emails_sent_total",
		Help: "Total number of password-reset emails dispatched",
	})

	// ResetEmailFailures counts password-reset emails the transport rejected.
	ResetEmailFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_reset_email_failures_total",
		Help: "Total number of password-reset email delivery failures",
	})

	// PasswordResetsCompleted counts successful password resets via token.
	PasswordResetsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quill_password_resets_completed_total",
		Help: "Total number of passwords reset through the token flow",
	})

	// AvatarUploads counts processed avatar uploads by outcome.
	AvatarUploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quill_avatar_uploads_total",
		Help: "Total number of avatar uploads by outcome",
	}, []string{"outcome"})
)
