package router

import (
	entsql "entgo.io/ent/dialect/sql"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/api/http/handler"
	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/consent"
	"github.com/carelink/carelink_backend/internal/service/insight"
	"github.com/carelink/carelink_backend/internal/service/message"
	"github.com/carelink/carelink_backend/internal/service/payment"
	"github.com/carelink/carelink_backend/internal/service/profile"
	"github.com/carelink/carelink_backend/internal/service/result"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/internal/service/voice"
	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/authtoken"
	"github.com/carelink/carelink_backend/pkg/database"
	"github.com/carelink/carelink_backend/pkg/redis"
)

// Module provides the Router to the fx graph.
var Module = fx.Module("router", fx.Provide(NewRouter))

type Params struct {
	fx.In

	Cfg        *config.Config
	Driver     *entsql.Driver `optional:"true"`
	Auth       authorize.IAuthorization
	Verifier   *authtoken.Verifier
	Denylist   *redis.SessionDenylist
	Resolver   role.Resolver
	ProfileSvc profile.Service
	ConsentSvc consent.Service
	ResultSvc  result.Service
	PaymentSvc payment.Service
	InsightSvc insight.Service
	MessageSvc message.Service
	VoiceSvc   voice.Service
}

type Router struct {
	p Params
}

func NewRouter(p Params) *Router {
	return &Router{p: p}
}

func (r *Router) Register(app *fiber.App) {
	// 1. Health & Metrics
	r.registerSystemRoutes(app)

	// 2. Initialize Middlewares
	authRequired := middleware.AuthRequired(r.p.Verifier, r.p.Denylist, r.p.Resolver)
	authOptional := middleware.AuthOptional(r.p.Verifier, r.p.Denylist, r.p.Resolver)

	// Permission helper for staff-only functions
	requireStaff := func(res authorize.Resource, act authorize.Action) fiber.Handler {
		return middleware.RequireStaffPermission(r.p.Auth, res, act)
	}

	// 3. Initialize Handlers
	authH := handler.NewAuthHandler(r.p.Denylist)
	profileH := handler.NewProfileHandler(r.p.ProfileSvc, r.p.ConsentSvc)
	resultH := handler.NewResultHandler(r.p.ResultSvc)
	paymentH := handler.NewPaymentHandler(r.p.PaymentSvc)
	insightH := handler.NewInsightHandler(r.p.InsightSvc)
	messageH := handler.NewMessageHandler(r.p.MessageSvc)
	voiceH := handler.NewVoiceHandler(r.p.VoiceSvc)

	// 4. Function contracts
	functions := app.Group("/functions/v1")
	r.registerPaymentFunctions(functions, paymentH, authRequired, authOptional)
	r.registerInsightFunctions(functions, insightH, authRequired, requireStaff)
	r.registerMessageFunctions(functions, messageH, authRequired)
	r.registerVoiceFunctions(functions, voiceH, authRequired)

	// 5. REST resources
	api := app.Group("/api/v1")
	r.registerAuthRoutes(api, authH, authRequired)
	r.registerProfileRoutes(api, profileH, authRequired)
	r.registerResultRoutes(api, resultH, authRequired)
	r.registerWebhookRoutes(api, paymentH)
}

func (r *Router) registerSystemRoutes(app *fiber.App) {
	app.Get(healthcheck.LivenessEndpoint, healthcheck.New())
	app.Get(healthcheck.ReadinessEndpoint, healthcheck.New(healthcheck.Config{
		Probe: r.ready,
	}))
	app.Get(healthcheck.StartupEndpoint, healthcheck.New())

	if r.p.Cfg.Observability.Enabled && r.p.Cfg.Observability.Metrics.Enabled {
		path := r.p.Cfg.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.Handler()))
	}
}

// ready requires a loaded casbin policy and a reachable database.
func (r *Router) ready(c fiber.Ctx) bool {
	if !authorize.IsPolicyHealthy() {
		return false
	}
	if r.p.Driver == nil {
		return true
	}
	return database.Ping(c.Context(), r.p.Driver) == nil
}
