package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/learnsphere/learnsphere-backend/api/controllers"
	"github.com/learnsphere/learnsphere-backend/api/middleware"
	"github.com/learnsphere/learnsphere-backend/internal/notifications"
	"github.com/learnsphere/learnsphere-backend/pkg/config"
	"github.com/learnsphere/learnsphere-backend/pkg/db"
	"github.com/learnsphere/learnsphere-backend/pkg/logger"
	"github.com/learnsphere/learnsphere-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	cacheP redis.Pinger,
	producer *notifications.Producer,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cacheP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users/{userID}/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Post("/", controllers.EnqueueNotification(producer, logg))
			r.Post("/bulk", controllers.EnqueueBulkNotifications(producer, logg))
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/stats", controllers.QueueStats(producer, logg))
			r.Get("/health", controllers.QueueHealth(producer, logg))
			r.Post("/pause", controllers.PauseQueue(producer, logg))
			r.Post("/resume", controllers.ResumeQueue(producer, logg))
			r.Post("/clean", controllers.CleanQueue(producer, logg))
		})
	})

	return r
}
