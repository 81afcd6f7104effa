package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/internal/service/insight"
	"github.com/carelink/carelink_backend/internal/service/message"
	"github.com/carelink/carelink_backend/pkg/constants"
	"github.com/carelink/carelink_backend/pkg/email"
)

const notifyTimeout = 30 * time.Second

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc    fx.Lifecycle
	NC    *nats.Conn
	DB    *repo.Client
	Email *email.Client
	Cfg   *config.Config
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		return
	}

	n := &notifier{
		profiles: p.DB.Profile,
		results:  p.DB.Result,
		mail:     p.Email,
		baseURL:  p.Cfg.Email.BaseURL,
	}

	var subs []*nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			subs, err = startNotificationWorker(p.NC, n)
			return err
		},
		OnStop: func(ctx context.Context) error {
			for _, s := range subs {
				if err := s.Unsubscribe(); err != nil {
					slog.Debug("notification_worker: unsubscribe failed", "subject", s.Subject, "err", err)
				}
			}
			// Drain handled by ProvideNatsClient
			return nil
		},
	})
}

// ---------------------------------------------------------------------------
// notification_worker
// ---------------------------------------------------------------------------

func startNotificationWorker(nc *nats.Conn, n *notifier) ([]*nats.Subscription, error) {
	handlers := map[string]func(ctx context.Context, subject string, data []byte) error{
		message.SubjectNewMessage + ".*": n.onNewMessage,
		insight.SubjectArtifact + ".*":   n.onArtifact,
	}

	subs := make([]*nats.Subscription, 0, len(handlers))
	for subject, handle := range handlers {
		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			err := handle(ctx, msg.Subject, msg.Data)
			var disabled email.ErrDisabled
			switch {
			case err == nil:
			case errors.As(err, &disabled):
				slog.Debug("notification_worker: email disabled, skipping", "subject", msg.Subject)
			default:
				slog.Warn("notification_worker: notify failed", "subject", msg.Subject, "err", err)
			}
		})
		if err != nil {
			return subs, fmt.Errorf("notification_worker: subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	slog.Info("notification_worker: started")
	return subs, nil
}

type profileReader interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Profile, error)
}

type resultReader interface {
	Get(ctx context.Context, id uuid.UUID) (*repo.Result, error)
}

// notifier emails users about events. Emails never carry message content or
// clinical values.
type notifier struct {
	profiles profileReader
	results  resultReader
	mail     email.Sender
	baseURL  string
}

// onNewMessage handles carelink.message.new.<recipient_id>; data is the
// message id.
func (n *notifier) onNewMessage(ctx context.Context, subject string, data []byte) error {
	recipientID, err := uuid.Parse(lastToken(subject))
	if err != nil {
		return fmt.Errorf("bad recipient in subject: %w", err)
	}

	p, err := n.profiles.Get(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("load recipient %s: %w", recipientID, err)
	}

	slog.Debug("notification_worker: new message", "message_id", strings.TrimSpace(string(data)), "recipient_id", recipientID)
	return n.mail.Send(ctx, email.BuildNewMessageEmail(n.notice(p)))
}

// onArtifact handles carelink.result.artifact.<kind>; data is the result id.
func (n *notifier) onArtifact(ctx context.Context, subject string, data []byte) error {
	resultID, err := uuid.Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return fmt.Errorf("bad result id: %w", err)
	}

	label := "summary"
	if insight.ArtifactKind(lastToken(subject)) == insight.ArtifactRiskFlags {
		label = "risk review"
	}

	r, err := n.results.Get(ctx, resultID)
	if err != nil {
		return fmt.Errorf("load result %s: %w", resultID, err)
	}
	p, err := n.profiles.Get(ctx, r.PatientID)
	if err != nil {
		return fmt.Errorf("load patient %s: %w", r.PatientID, err)
	}

	return n.mail.Send(ctx, email.BuildArtifactReadyEmail(n.notice(p), label, resultID.String()))
}

func (n *notifier) notice(p *repo.Profile) email.NoticeData {
	d := email.NoticeData{To: p.Email, AppName: constants.AppName, BaseURL: n.baseURL}
	if p.FullName != nil {
		d.Name = *p.FullName
	}
	return d
}

func lastToken(subject string) string {
	return subject[strings.LastIndex(subject, ".")+1:]
}
