package app

import (
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/consent"
	"github.com/carelink/carelink_backend/internal/service/insight"
	"github.com/carelink/carelink_backend/internal/service/message"
	"github.com/carelink/carelink_backend/internal/service/payment"
	"github.com/carelink/carelink_backend/internal/service/profile"
	"github.com/carelink/carelink_backend/internal/service/result"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/internal/service/voice"
	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/billing"
	"github.com/carelink/carelink_backend/pkg/crypto"
	"github.com/carelink/carelink_backend/pkg/llm"
	s3pkg "github.com/carelink/carelink_backend/pkg/s3"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideRoleResolver,
		ProvideConsentService,
		ProvideProfileService,
		ProvideResultService,
		ProvidePaymentService,
		ProvideInsightService,
		ProvideMessageService,
		ProvideVoiceService,
	),
)

// eventPublisher keeps a missing connection a nil interface rather than a
// typed nil pointer.
func eventPublisher(nc *nats.Conn) message.Publisher {
	if nc == nil {
		return nil
	}
	return nc
}

func ProvideRoleResolver(authz authorize.IAuthorization) role.Resolver {
	return role.NewResolver(authz)
}

func ProvideConsentService(db *repo.Client) consent.Service {
	return consent.New(db.Profile)
}

func ProvideProfileService(db *repo.Client, authz authorize.IAuthorization) profile.Service {
	return profile.New(db.Profile, authz)
}

func ProvideResultService(db *repo.Client, s3 *s3pkg.Client, authz authorize.IAuthorization, cfg *config.Config) result.Service {
	return result.New(db.Result, s3, authz, cfg)
}

func ProvidePaymentService(db *repo.Client, processor billing.Processor, cfg *config.Config) payment.Service {
	return payment.New(db.Order, db.Subscriber, processor, cfg)
}

func ProvideInsightService(db *repo.Client, consentSvc consent.Service, gen llm.Generator, nc *nats.Conn) insight.Service {
	return insight.New(db.Result, consentSvc, gen, eventPublisher(nc))
}

func ProvideMessageService(db *repo.Client, codec crypto.Codec, nc *nats.Conn, cfg *config.Config) message.Service {
	return message.New(db.Message, codec, eventPublisher(nc), cfg)
}

func ProvideVoiceService(stt llm.Transcriber) voice.Service {
	return voice.New(stt)
}
