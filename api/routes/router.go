package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/talentloop/talentloop-backend/api/controllers"
	"github.com/talentloop/talentloop-backend/api/middleware"
	"github.com/talentloop/talentloop-backend/internal/credits"
	"github.com/talentloop/talentloop-backend/internal/invitations"
	"github.com/talentloop/talentloop-backend/internal/notifications"
	"github.com/talentloop/talentloop-backend/internal/reclaimer"
	"github.com/talentloop/talentloop-backend/pkg/config"
	"github.com/talentloop/talentloop-backend/pkg/enums"
	"github.com/talentloop/talentloop-backend/pkg/logger"
	pkgredis "github.com/talentloop/talentloop-backend/pkg/redis"
)

// RedisStore is the slice of the redis client the HTTP surface needs.
type RedisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.RateLimitStore
	Ping(ctx context.Context) error
}

type reclaimRunner interface {
	Run(ctx context.Context) (*reclaimer.Summary, error)
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisStore RedisStore,
	creditsService credits.Service,
	invitationsService invitations.Service,
	notificationsService notifications.Service,
	reclaim reclaimRunner,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	candidatePolicy := middleware.NewRateLimitPolicy(
		"candidate_complete",
		cfg.RateLimit.Window,
		0,
		cfg.RateLimit.CandidateLimit,
	)
	cronPolicy := middleware.NewRateLimitPolicy(
		"cron",
		cfg.RateLimit.Window,
		cfg.RateLimit.CronIPLimit,
		0,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisStore,
		}))
	})

	r.Route("/api/internal/cron", func(r chi.Router) {
		r.Use(middleware.RateLimit(cronPolicy, redisStore, logg))
		r.Use(middleware.CronAuth(cfg.Reclaim, logg))
		r.Post("/reclaim-credits", controllers.ReclaimCredits(reclaim, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisStore, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleRecruiter, enums.MemberRoleCompanyAdmin))
			r.Use(middleware.CompanyContext(logg))

			r.Route("/v1/credits", func(r chi.Router) {
				r.Get("/balance", controllers.CreditBalance(creditsService, logg))
				r.Get("/history", controllers.CreditHistory(creditsService, logg))
			})

			r.Route("/v1/invitations", func(r chi.Router) {
				r.Post("/", controllers.CreateInvitation(invitationsService, logg))
				r.Get("/", controllers.ListInvitations(invitationsService, logg))
				r.Get("/{invitationId}", controllers.GetInvitation(invitationsService, logg))
			})

			r.Route("/v1/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			})
		})

		r.Route("/v1/candidate", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleCandidate))
			r.Use(middleware.CandidateContext(logg))

			r.Get("/invitations", controllers.ListCandidateInvitations(invitationsService, logg))
			r.With(middleware.RateLimit(candidatePolicy, redisStore, logg)).
				Post("/invitations/{invitationId}/complete", controllers.CompleteInvitation(invitationsService, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRolePlatformAdmin))

			r.Route("/companies/{companyId}/credits", func(r chi.Router) {
				r.Post("/provision", controllers.AdminProvisionCredits(creditsService, logg))
				r.Post("/purchase", controllers.AdminPurchaseCredits(creditsService, logg))
				r.Post("/adjust", controllers.AdminAdjustCredits(creditsService, logg))
				r.Get("/reconcile", controllers.AdminReconcileCredits(creditsService, logg))
			})
			r.Post("/invitations/{invitationId}/expire", controllers.AdminExpireInvitation(invitationsService, logg))
		})
	})

	return r
}
