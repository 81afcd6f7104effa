package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/config"
	"github.com/carelink/carelink_backend/internal/api/http/middleware"
	"github.com/carelink/carelink_backend/internal/service/insight"
	"github.com/carelink/carelink_backend/internal/service/message"
	"github.com/carelink/carelink_backend/internal/service/payment"
	"github.com/carelink/carelink_backend/internal/service/role"
	"github.com/carelink/carelink_backend/internal/service/voice"
	"github.com/carelink/carelink_backend/pkg/apperr"
	"github.com/carelink/carelink_backend/pkg/authorize"
	"github.com/carelink/carelink_backend/pkg/authtoken"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockPayment struct {
	payment.Service
	CreatePaymentFunc func(ctx context.Context, caller *role.Session, req payment.CreatePaymentRequest) (string, error)
	calls             atomic.Int32
}

func (m *mockPayment) CreatePayment(ctx context.Context, caller *role.Session, req payment.CreatePaymentRequest) (string, error) {
	m.calls.Add(1)
	return m.CreatePaymentFunc(ctx, caller, req)
}

type mockInsight struct {
	GenerateSummaryFunc func(ctx context.Context, caller *role.Session, id uuid.UUID) error
}

func (m *mockInsight) GenerateSummary(ctx context.Context, caller *role.Session, id uuid.UUID) error {
	return m.GenerateSummaryFunc(ctx, caller, id)
}

func (m *mockInsight) GenerateRiskFlags(ctx context.Context, caller *role.Session, id uuid.UUID) error {
	return m.GenerateSummaryFunc(ctx, caller, id)
}

type mockMessage struct {
	message.Service
	SendFunc     func(ctx context.Context, caller *role.Session, req message.SendRequest) (uuid.UUID, error)
	ListFunc     func(ctx context.Context, caller *role.Session, counterpart *uuid.UUID) ([]message.Conversation, error)
	MarkReadFunc func(ctx context.Context, caller *role.Session, id uuid.UUID) error
}

func (m *mockMessage) Send(ctx context.Context, caller *role.Session, req message.SendRequest) (uuid.UUID, error) {
	return m.SendFunc(ctx, caller, req)
}

func (m *mockMessage) ListConversations(ctx context.Context, caller *role.Session, counterpart *uuid.UUID) ([]message.Conversation, error) {
	return m.ListFunc(ctx, caller, counterpart)
}

func (m *mockMessage) MarkRead(ctx context.Context, caller *role.Session, id uuid.UUID) error {
	return m.MarkReadFunc(ctx, caller, id)
}

type mockVoice struct {
	TranscribeFunc func(ctx context.Context, caller *role.Session, req voice.TranscribeRequest) (*voice.Transcript, error)
}

func (m *mockVoice) Transcribe(ctx context.Context, caller *role.Session, req voice.TranscribeRequest) (*voice.Transcript, error) {
	return m.TranscribeFunc(ctx, caller, req)
}

type staticRoles []authorize.Role

func (r staticRoles) GetRolesForUserInDomain(context.Context, authorize.GroupSubject, authorize.Domain) ([]authorize.Role, error) {
	return r, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type testEnv struct {
	app      *fiber.App
	verifier *authtoken.Verifier
}

func newTestEnv(t *testing.T, roles staticRoles, pay payment.Service, ins insight.Service, msg message.Service, vc voice.Service) *testEnv {
	t.Helper()

	v, err := authtoken.New(config.AuthenticationConfig{JWTSecret: "handler-test-secret"})
	require.NoError(t, err)
	resolver := role.NewResolver(roles)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	required := middleware.AuthRequired(v, nil, resolver)
	optional := middleware.AuthOptional(v, nil, resolver)

	fn := app.Group("/functions/v1")
	ph := NewPaymentHandler(pay)
	fn.Post("/create-payment", optional, ph.CreatePayment)
	if ins != nil {
		ih := NewInsightHandler(ins)
		fn.Post("/generate-summary", required, ih.GenerateSummary)
	}
	if msg != nil {
		mh := NewMessageHandler(msg)
		fn.Post("/send-message", required, mh.Send)
		fn.Get("/get-messages", required, mh.List)
		fn.Post("/mark-message-read", required, mh.MarkRead)
	}
	if vc != nil {
		fn.Post("/voice-to-text", required, NewVoiceHandler(vc).Transcribe)
	}

	return &testEnv{app: app, verifier: v}
}

func (e *testEnv) token(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := e.verifier.Sign(&authtoken.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "caller@example.com",
	})
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, StatusFor(apperr.KindAuthorization, false))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperr.KindAuthorization, true))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperr.KindConsentRequired, true))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperr.KindValidation, true))
	assert.Equal(t, http.StatusNotFound, StatusFor(apperr.KindNotFound, true))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.KindPaymentProvider, false))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.KindAIProvider, true))
	assert.Equal(t, http.StatusBadGateway, StatusFor(apperr.KindTranscriptionProvider, true))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("", true))
}

func TestCreatePayment(t *testing.T) {
	t.Run("guest checkout", func(t *testing.T) {
		pay := &mockPayment{CreatePaymentFunc: func(_ context.Context, caller *role.Session, req payment.CreatePaymentRequest) (string, error) {
			assert.Nil(t, caller)
			assert.InDelta(t, 49.99, req.Amount, 0.0001)
			assert.Equal(t, "Blood Test Package", req.Description)
			assert.Equal(t, "web", req.Metadata["source"])
			return "https://checkout.example/s1", nil
		}}
		env := newTestEnv(t, nil, pay, nil, nil, nil)

		status, body := env.do(t, http.MethodPost, "/functions/v1/create-payment", "",
			`{"amount":49.99,"description":"Blood Test Package","metadata":{"source":"web"}}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "https://checkout.example/s1", body["url"])
	})

	t.Run("signed in caller", func(t *testing.T) {
		uid := uuid.New()
		pay := &mockPayment{CreatePaymentFunc: func(_ context.Context, caller *role.Session, _ payment.CreatePaymentRequest) (string, error) {
			require.NotNil(t, caller)
			assert.Equal(t, uid, caller.UserID)
			return "https://checkout.example/s2", nil
		}}
		env := newTestEnv(t, staticRoles{authorize.RolePatient}, pay, nil, nil, nil)

		status, _ := env.do(t, http.MethodPost, "/functions/v1/create-payment", env.token(t, uid), `{"amount":10,"description":"x"}`)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("validation error", func(t *testing.T) {
		pay := &mockPayment{CreatePaymentFunc: func(context.Context, *role.Session, payment.CreatePaymentRequest) (string, error) {
			return "", payment.ErrInvalidAmount
		}}
		env := newTestEnv(t, nil, pay, nil, nil, nil)

		status, body := env.do(t, http.MethodPost, "/functions/v1/create-payment", "", `{"amount":0,"description":"x"}`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, payment.ErrInvalidAmount.Message, body["error"])
	})

	t.Run("provider error", func(t *testing.T) {
		pay := &mockPayment{CreatePaymentFunc: func(context.Context, *role.Session, payment.CreatePaymentRequest) (string, error) {
			return "", apperr.PaymentProvider(assert.AnError)
		}}
		env := newTestEnv(t, nil, pay, nil, nil, nil)

		status, body := env.do(t, http.MethodPost, "/functions/v1/create-payment", "", `{"amount":5,"description":"x"}`)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, assert.AnError.Error(), body["error"])
	})

	t.Run("malformed body", func(t *testing.T) {
		pay := &mockPayment{}
		env := newTestEnv(t, nil, pay, nil, nil, nil)

		status, _ := env.do(t, http.MethodPost, "/functions/v1/create-payment", "", `{"amount":`)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, int32(0), pay.calls.Load())
	})
}

func TestGenerateSummary(t *testing.T) {
	resultID := uuid.New()

	t.Run("requires a token", func(t *testing.T) {
		env := newTestEnv(t, nil, &mockPayment{}, &mockInsight{}, nil, nil)
		status, body := env.do(t, http.MethodPost, "/functions/v1/generate-summary", "", `{"resultId":"`+resultID.String()+`"}`)
		assert.Equal(t, http.StatusUnauthorized, status)
		assert.NotEmpty(t, body["error"])
	})

	t.Run("not staff", func(t *testing.T) {
		ins := &mockInsight{GenerateSummaryFunc: func(context.Context, *role.Session, uuid.UUID) error {
			return insight.ErrNotStaff
		}}
		env := newTestEnv(t, staticRoles{authorize.RolePatient}, &mockPayment{}, ins, nil, nil)

		status, body := env.do(t, http.MethodPost, "/functions/v1/generate-summary", env.token(t, uuid.New()), `{"resultId":"`+resultID.String()+`"}`)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "not staff", body["error"])
	})

	t.Run("consent required", func(t *testing.T) {
		ins := &mockInsight{GenerateSummaryFunc: func(context.Context, *role.Session, uuid.UUID) error {
			return insight.ErrConsentRequired
		}}
		env := newTestEnv(t, staticRoles{authorize.RoleDoctor}, &mockPayment{}, ins, nil, nil)

		status, _ := env.do(t, http.MethodPost, "/functions/v1/generate-summary", env.token(t, uuid.New()), `{"resultId":"`+resultID.String()+`"}`)
		assert.Equal(t, http.StatusForbidden, status)
	})

	t.Run("success returns an empty object", func(t *testing.T) {
		ins := &mockInsight{GenerateSummaryFunc: func(_ context.Context, caller *role.Session, id uuid.UUID) error {
			assert.True(t, caller.IsStaff())
			assert.Equal(t, resultID, id)
			return nil
		}}
		env := newTestEnv(t, staticRoles{authorize.RoleDoctor}, &mockPayment{}, ins, nil, nil)

		status, body := env.do(t, http.MethodPost, "/functions/v1/generate-summary", env.token(t, uuid.New()), `{"resultId":"`+resultID.String()+`"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Empty(t, body)
	})

	t.Run("bad id", func(t *testing.T) {
		env := newTestEnv(t, staticRoles{authorize.RoleDoctor}, &mockPayment{}, &mockInsight{}, nil, nil)
		status, _ := env.do(t, http.MethodPost, "/functions/v1/generate-summary", env.token(t, uuid.New()), `{"resultId":"nope"}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})
}

func TestMessaging(t *testing.T) {
	self := uuid.New()
	other := uuid.New()
	msgID := uuid.New()

	msg := &mockMessage{
		SendFunc: func(_ context.Context, caller *role.Session, req message.SendRequest) (uuid.UUID, error) {
			assert.Equal(t, self, caller.UserID)
			if len([]rune(req.Content)) > 2000 {
				return uuid.Nil, message.ErrContentTooLong
			}
			return msgID, nil
		},
		ListFunc: func(_ context.Context, _ *role.Session, counterpart *uuid.UUID) ([]message.Conversation, error) {
			require.NotNil(t, counterpart)
			assert.Equal(t, other, *counterpart)
			return []message.Conversation{{CounterpartID: other, UnreadCount: 2}}, nil
		},
		MarkReadFunc: func(context.Context, *role.Session, uuid.UUID) error {
			return message.ErrMessageNotFound
		},
	}
	env := newTestEnv(t, staticRoles{authorize.RolePatient}, &mockPayment{}, nil, msg, nil)
	tok := env.token(t, self)

	status, body := env.do(t, http.MethodPost, "/functions/v1/send-message", tok,
		`{"recipient_id":"`+other.String()+`","content":"hello"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, msgID.String(), body["message_id"])

	status, _ = env.do(t, http.MethodPost, "/functions/v1/send-message", tok,
		`{"recipient_id":"`+other.String()+`","content":"`+strings.Repeat("a", 2001)+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/functions/v1/get-messages?conversation_with="+other.String(), tok, "")
	assert.Equal(t, http.StatusOK, status)
	convs, isList := body["conversations"].([]any)
	require.True(t, isList)
	require.Len(t, convs, 1)
	assert.EqualValues(t, 2, convs[0].(map[string]any)["unread_count"])

	status, body = env.do(t, http.MethodPost, "/functions/v1/mark-message-read", tok, `{"message_id":"`+msgID.String()+`"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, message.ErrMessageNotFound.Message, body["error"])
}

func TestVoiceToText(t *testing.T) {
	uid := uuid.New()

	t.Run("provider failure carries the fallback", func(t *testing.T) {
		vc := &mockVoice{TranscribeFunc: func(context.Context, *role.Session, voice.TranscribeRequest) (*voice.Transcript, error) {
			return nil, apperr.TranscriptionProvider(assert.AnError)
		}}
		env := newTestEnv(t, staticRoles{authorize.RolePatient}, &mockPayment{}, nil, nil, vc)

		status, body := env.do(t, http.MethodPost, "/functions/v1/voice-to-text", env.token(t, uid), `{"audio":"AAAA"}`)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, voice.FallbackMessage, body["fallback"])
		assert.Equal(t, assert.AnError.Error(), body["error"])
	})

	t.Run("success", func(t *testing.T) {
		vc := &mockVoice{TranscribeFunc: func(_ context.Context, _ *role.Session, req voice.TranscribeRequest) (*voice.Transcript, error) {
			assert.Equal(t, "fr", req.Language)
			return &voice.Transcript{
				Text:            "I have chest pain",
				Language:        "fr",
				Confidence:      0.8,
				MedicalKeywords: []string{"chest", "pain"},
				IsHealthRelated: true,
			}, nil
		}}
		env := newTestEnv(t, staticRoles{authorize.RolePatient}, &mockPayment{}, nil, nil, vc)

		status, body := env.do(t, http.MethodPost, "/functions/v1/voice-to-text", env.token(t, uid), `{"audio":"AAAA","language":"fr"}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "I have chest pain", body["text"])
		assert.Equal(t, true, body["isHealthRelated"])
		assert.InDelta(t, 0.8, body["confidence"], 0.0001)
	})
}
