package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/learnsphere/learnsphere-backend/api/responses"
	"github.com/learnsphere/learnsphere-backend/api/validators"
	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/internal/queue"
	"github.com/learnsphere/learnsphere-backend/pkg/enums"
	pkgerrors "github.com/learnsphere/learnsphere-backend/pkg/errors"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
)

type backoffBody struct {
	Type    string `json:"type" validate:"omitempty,oneof=fixed exponential"`
	DelayMs int64  `json:"delayMs" validate:"omitempty,min=0"`
}

type jobOptionsBody struct {
	Attempts int          `json:"attempts" validate:"omitempty,min=1"`
	Priority int          `json:"priority" validate:"omitempty,min=0"`
	DelayMs  int64        `json:"delayMs" validate:"omitempty,min=0"`
	Backoff  *backoffBody `json:"backoff" validate:"omitempty"`
}

type enqueueNotificationBody struct {
	UserID  string                    `json:"userId" validate:"required"`
	Message string                    `json:"message" validate:"required"`
	Type    string                    `json:"type" validate:"omitempty,oneof=email sms push assignment course"`
	Data    *notifications.IntentData `json:"data"`
	Options *jobOptionsBody           `json:"options" validate:"omitempty"`
}

type enqueueBulkBody struct {
	Notifications []enqueueNotificationBody `json:"notifications" validate:"required,min=1,dive"`
}

func (b enqueueNotificationBody) intent() notifications.Intent {
	return notifications.Intent{
		UserID:  b.UserID,
		Message: b.Message,
		Type:    enums.NotificationType(b.Type),
		Data:    b.Data,
	}
}

func (b *jobOptionsBody) jobOptions() *queue.JobOptions {
	if b == nil {
		return nil
	}
	opts := &queue.JobOptions{
		Attempts: b.Attempts,
		Priority: b.Priority,
		Delay:    time.Duration(b.DelayMs) * time.Millisecond,
	}
	if b.Backoff != nil {
		opts.Backoff = queue.BackoffOptions{
			Type:  b.Backoff.Type,
			Delay: time.Duration(b.Backoff.DelayMs) * time.Millisecond,
		}
	}
	return opts
}

// EnqueueNotification accepts a single notification intent and queues it.
func EnqueueNotification(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}

		var body enqueueNotificationBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		job, err := producer.AddNotification(r.Context(), body.intent(), body.Options.jobOptions())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, job)
	}
}

// EnqueueBulkNotifications queues a batch of intents in one call.
func EnqueueBulkNotifications(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}

		var body enqueueBulkBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		intents := make([]notifications.Intent, 0, len(body.Notifications))
		for _, item := range body.Notifications {
			intents = append(intents, item.intent())
		}

		jobs, err := producer.AddBulkNotifications(r.Context(), intents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{
			"count": len(jobs),
			"jobs":  jobs,
		})
	}
}

// QueueStats reports job counts per lifecycle state.
func QueueStats(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}

		stats, err := producer.GetQueueStats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// QueueHealth reports a composite health snapshot. Degraded queues are still a
// successful response; the payload carries the failure.
func QueueHealth(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}
		responses.WriteSuccess(w, producer.GetQueueHealth(r.Context()))
	}
}

// PauseQueue stops workers from claiming new jobs.
func PauseQueue(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}

		if err := producer.PauseQueue(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"paused": true})
	}
}

// ResumeQueue re-enables job claiming.
func ResumeQueue(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}

		if err := producer.ResumeQueue(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"paused": false})
	}
}

// CleanQueue removes finished jobs older than maxAgeMs, up to limit entries
// per terminal state.
func CleanQueue(producer *notifications.Producer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if producer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "producer unavailable"))
			return
		}

		maxAge := time.Duration(-1)
		if raw := strings.TrimSpace(r.URL.Query().Get("maxAgeMs")); raw != "" {
			value, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || value < 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "maxAgeMs must be a non-negative integer"))
				return
			}
			maxAge = time.Duration(value) * time.Millisecond
		}

		limit := 0
		if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil || value <= 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a positive integer"))
				return
			}
			limit = value
		}

		removed, err := producer.CleanOldJobs(r.Context(), maxAge, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"removed": len(removed),
			"jobIds":  removed,
		})
	}
}
