package app

import (
	"context"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/authtoken"
	"github.com/carelink/carelink_backend/pkg/billing"
	"github.com/carelink/carelink_backend/pkg/crypto"
	"github.com/carelink/carelink_backend/pkg/database"
	"github.com/carelink/carelink_backend/pkg/email"
	"github.com/carelink/carelink_backend/pkg/llm"
	"github.com/carelink/carelink_backend/pkg/observability"
	redispkg "github.com/carelink/carelink_backend/pkg/redis"
	s3pkg "github.com/carelink/carelink_backend/pkg/s3"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideDriver),
	fx.Provide(ProvideRepoClient),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideSessionDenylist),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideTokenVerifier),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideS3Client),
	fx.Provide(ProvideBillingProcessor),
	fx.Provide(ProvideGenerator),
	fx.Provide(ProvideTranscriber),
	fx.Provide(ProvideMessageCodec),
	fx.Provide(ProvideNatsClient),
)

func ProvideDriver(lc fx.Lifecycle, cfg *config.Config) (*entsql.Driver, error) {
	drv, err := database.NewDriver(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return drv.Close()
		},
	})
	return drv, nil
}

func ProvideRepoClient(drv *entsql.Driver) *repo.Client {
	return repo.NewClient(drv)
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideSessionDenylist(rdb *redis.Client) *redispkg.SessionDenylist {
	return redispkg.NewSessionDenylist(rdb)
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (authorize.IAuthorization, error) {
	dsn := database.NewDSN(cfg.CasbinDatabase)
	enforcer, cleanup, err := authorize.NewEnforcer(cfg.Authorization.CasbinModelPath, dsn)
	if err != nil {
		return nil, err
	}
	baseAuth, err := authorize.NewAuthorization(enforcer)
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}

	var auth authorize.IAuthorization = baseAuth
	if cfg.Authorization.EnableAudit {
		auth = authorize.NewAuditedAuthorization(baseAuth, slog.Default())
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("cleaning up Casbin enforcer")
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

func ProvideTokenVerifier(cfg *config.Config) (*authtoken.Verifier, error) {
	return authtoken.New(cfg.Authentication)
}

func ProvideEmailClient(cfg *config.Config) *email.Client {
	return email.NewFromCentral(cfg.Email)
}

func ProvideS3Client(cfg *config.Config) (*s3pkg.Client, error) {
	return s3pkg.New(cfg.S3)
}

func ProvideBillingProcessor(cfg *config.Config) (billing.Processor, error) {
	return billing.NewStripe(cfg.Stripe)
}

func ProvideGenerator(lc fx.Lifecycle, cfg *config.Config) (llm.Generator, error) {
	gen, closeFn, err := llm.NewGenerator(context.Background(), cfg.AI)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return closeFn()
		},
	})
	slog.Info("text generation provider ready", "provider", cfg.AI.Provider)
	return gen, nil
}

// Transcription always goes through Whisper, whichever text provider is set.
func ProvideTranscriber(cfg *config.Config) llm.Transcriber {
	return llm.NewOpenAI(cfg.AI.OpenAI)
}

func ProvideMessageCodec(cfg *config.Config) (crypto.Codec, error) {
	return crypto.NewCodec(cfg.Messaging)
}

// ProvideNatsClient returns nil when nats.url is empty; services then skip
// publishing events and no workers are started.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		slog.Warn("nats.url is empty, events and notification workers are disabled")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.Observability.ServiceName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromCentralConfig(cfg))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
