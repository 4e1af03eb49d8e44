package routes

import (
	"net/http"

	"github.com/stepwise-app/stepwise/internal/app"
	"github.com/stepwise-app/stepwise/internal/handler"
	"github.com/stepwise-app/stepwise/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	goal := handler.NewGoalHandler(app.GoalService)
	step := handler.NewStepHandler(app.StepService)
	checkIn := handler.NewCheckInHandler(app.CheckInService)
	me := handler.NewMeHandler(app.UserService, app.AuthService)
	public := handler.NewPublicHandler(app.PublicService)
	billing := handler.NewBillingHandler(app.UserService, app.PaymentProvider)
	identity := handler.NewIdentityWebhookHandler(app.IdentityWebhook)
	ops := handler.NewOpsHandler(app.Store, app.ReminderService, app.Reconciler, app.Cfg.CronSecret)

	aiLimit := middleware.RateLimit(app.AILimiter, middleware.ByUser)
	publicLimit := middleware.RateLimit(app.PublicLimiter, middleware.ByIP)
	auth := middleware.RequireAuth
	authAI := func(h http.HandlerFunc) http.HandlerFunc { return auth(aiLimit(h)) }

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", ops.Health)

	mux.HandleFunc("GET /api/public/{username}", publicLimit(public.Profile))
	mux.HandleFunc("GET /api/public/{username}/{slug}", publicLimit(public.Goal))

	// Webhooks (signature verified by the handler)
	mux.HandleFunc("POST /webhooks/billing", billing.Webhook)
	mux.HandleFunc("POST /webhooks/identity", identity.Handle)

	// Scheduler (CRON_SECRET bearer token)
	mux.HandleFunc("POST /api/cron/reminders", ops.SendReminders)
	mux.HandleFunc("POST /api/cron/reconcile", ops.Reconcile)

	// ============================================================================
	// PROTECTED ROUTES (session required)
	// ============================================================================

	// Goals
	mux.HandleFunc("POST /api/goals", authAI(goal.Create))
	mux.HandleFunc("GET /api/goals", auth(goal.List))
	mux.HandleFunc("GET /api/goals/export", auth(goal.Export))
	mux.HandleFunc("GET /api/goals/{id}", auth(goal.Get))
	mux.HandleFunc("PATCH /api/goals/{id}", auth(goal.Update))
	mux.HandleFunc("DELETE /api/goals/{id}", auth(goal.Delete))
	mux.HandleFunc("PUT /api/goals/{id}/steps/order", auth(goal.Reorder))

	// Check-ins
	mux.HandleFunc("GET /api/goals/{id}/checkins", auth(checkIn.List))
	mux.HandleFunc("POST /api/goals/{id}/checkins", authAI(checkIn.Create))

	// Steps
	mux.HandleFunc("PATCH /api/steps/{id}", auth(step.Edit))
	mux.HandleFunc("PATCH /api/steps/{id}/status", auth(step.UpdateStatus))
	mux.HandleFunc("POST /api/steps/{id}/breakdown", authAI(step.Breakdown))

	// Account
	mux.HandleFunc("GET /api/me", auth(me.Me))
	mux.HandleFunc("GET /api/me/dashboard", auth(me.Dashboard))
	mux.HandleFunc("PUT /api/me/username", auth(me.SetUsername))
	mux.HandleFunc("DELETE /api/me", auth(me.Delete))

	// Billing
	mux.HandleFunc("POST /api/billing/checkout", auth(billing.CreateCheckout))
	mux.HandleFunc("GET /api/billing/portal", auth(billing.CustomerPortal))

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recover,
		middleware.Config(app.Cfg),
		middleware.SecurityHeaders(app.Cfg.IsProduction()),
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService),
		middleware.CSRFProtection,
	)
}
