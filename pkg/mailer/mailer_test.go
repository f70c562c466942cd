package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingProvider struct {
	sent []Message
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) Send(_ context.Context, msg Message) (SendResult, error) {
	p.sent = append(p.sent, msg)
	return SendResult{ProviderMessageID: "id-1"}, nil
}

func TestMailerFillsDefaultSender(t *testing.T) {
	p := &recordingProvider{}
	m := New(p, "CRM <no-reply@crm.test>")

	res, err := m.Send(context.Background(), Message{To: []string{" a@b.co ", ""}, Subject: "Hi"})
	require.NoError(t, err)

	assert.Equal(t, "id-1", res.ProviderMessageID)
	require.Len(t, p.sent, 1)
	assert.Equal(t, "CRM <no-reply@crm.test>", p.sent[0].From)
	assert.Equal(t, []string{"a@b.co"}, p.sent[0].To)
	assert.Equal(t, "recording", m.ProviderName())
}

func TestMailerRequiresRecipients(t *testing.T) {
	m := New(&recordingProvider{}, "x@y.z")

	_, err := m.Send(context.Background(), Message{To: []string{"  "}})
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestLogProviderLogsEnvelope(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewLogProvider(zap.New(core))

	res, err := p.Send(context.Background(), Message{From: "a@b.co", To: []string{"c@d.co"}, Subject: "Reset"})
	require.NoError(t, err)

	assert.Contains(t, res.ProviderMessageID, "log-")
	entries := logs.FilterMessage("mail logged (not sent)").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Reset", entries[0].ContextMap()["subject"])
}
