package app

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink/carelink_backend/internal/repo"
	"github.com/carelink/carelink_backend/pkg/email"
)

type fakeProfiles map[uuid.UUID]*repo.Profile

func (f fakeProfiles) Get(_ context.Context, id uuid.UUID) (*repo.Profile, error) {
	p, ok := f[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return p, nil
}

type fakeResults map[uuid.UUID]*repo.Result

func (f fakeResults) Get(_ context.Context, id uuid.UUID) (*repo.Result, error) {
	r, ok := f[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return r, nil
}

type captureSender struct {
	sent  []email.Message
	calls atomic.Int32
}

func (c *captureSender) Send(_ context.Context, m email.Message) error {
	c.calls.Add(1)
	c.sent = append(c.sent, m)
	return nil
}

func TestNotifierNewMessage(t *testing.T) {
	recipient := uuid.New()
	name := "Ada"
	mail := &captureSender{}
	n := &notifier{
		profiles: fakeProfiles{recipient: {ID: recipient, Email: "ada@example.com", FullName: &name}},
		mail:     mail,
		baseURL:  "https://app.example",
	}

	err := n.onNewMessage(context.Background(), "carelink.message.new."+recipient.String(), []byte(uuid.NewString()))
	require.NoError(t, err)
	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"ada@example.com"}, mail.sent[0].To)
	assert.Contains(t, mail.sent[0].TextBody, "https://app.example/messages")
	assert.Contains(t, mail.sent[0].TextBody, "Ada")
}

func TestNotifierNewMessageUnknownRecipient(t *testing.T) {
	mail := &captureSender{}
	n := &notifier{profiles: fakeProfiles{}, mail: mail}

	err := n.onNewMessage(context.Background(), "carelink.message.new."+uuid.NewString(), nil)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Equal(t, int32(0), mail.calls.Load())

	err = n.onNewMessage(context.Background(), "carelink.message.new.not-an-id", nil)
	assert.Error(t, err)
}

func TestNotifierArtifact(t *testing.T) {
	patient := uuid.New()
	resultID := uuid.New()
	mail := &captureSender{}
	n := &notifier{
		profiles: fakeProfiles{patient: {ID: patient, Email: "pat@example.com"}},
		results:  fakeResults{resultID: {ID: resultID, PatientID: patient}},
		mail:     mail,
		baseURL:  "https://app.example/",
	}

	require.NoError(t, n.onArtifact(context.Background(), "carelink.result.artifact.risk_flags", []byte(resultID.String())))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, []string{"pat@example.com"}, mail.sent[0].To)
	assert.Contains(t, mail.sent[0].Subject, "risk review")
	assert.Contains(t, mail.sent[0].TextBody, "https://app.example/results/"+resultID.String())

	require.NoError(t, n.onArtifact(context.Background(), "carelink.result.artifact.summary", []byte(resultID.String())))
	assert.Contains(t, mail.sent[1].Subject, "summary")
}

func TestLastToken(t *testing.T) {
	assert.Equal(t, "c", lastToken("a.b.c"))
	assert.Equal(t, "abc", lastToken("abc"))
}
