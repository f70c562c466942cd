package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-crm-api/pkg/jobs"
	"github.com/noah-isme/edu-crm-api/pkg/mailer"
)

type captureSender struct {
	sent []mailer.Message
	err  error
}

func (c *captureSender) Send(_ context.Context, msg mailer.Message) (mailer.SendResult, error) {
	if c.err != nil {
		return mailer.SendResult{}, c.err
	}
	c.sent = append(c.sent, msg)
	return mailer.SendResult{ProviderMessageID: "msg-1"}, nil
}

type captureQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *captureQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type mailMetricsStub struct {
	ok, failed int
}

func (m *mailMetricsStub) RecordMail(ok bool) {
	if ok {
		m.ok++
		return
	}
	m.failed++
}

func TestMailServiceQueuesPasswordReset(t *testing.T) {
	sender := &captureSender{}
	queue := &captureQueue{}
	svc := NewMailService(sender, nil, nil)
	svc.SetQueue(queue)

	expires := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	err := svc.SendPasswordReset(context.Background(), "ana@example.com", "Ana Lima", "https://crm.example.com/reset-password?token=abc", expires)
	require.NoError(t, err)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypePasswordReset, queue.jobs[0].Type)
	assert.NotEmpty(t, queue.jobs[0].ID)
	assert.Empty(t, sender.sent)
}

func TestMailServiceHandleJobRendersBodies(t *testing.T) {
	sender := &captureSender{}
	metrics := &mailMetricsStub{}
	svc := NewMailService(sender, metrics, nil)

	job := jobs.Job{ID: "j1", Type: JobTypePasswordReset, Payload: PasswordResetMail{
		To:        "ana@example.com",
		FullName:  "Ana <Lima>",
		Link:      "https://crm.example.com/reset-password?token=abc&x=1",
		ExpiresAt: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
	}}
	require.NoError(t, svc.HandleJob(context.Background(), job))

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, []string{"ana@example.com"}, msg.To)
	assert.Equal(t, passwordResetSubject, msg.Subject)
	assert.Contains(t, msg.HTML, "Ana &lt;Lima&gt;")
	assert.Contains(t, msg.HTML, "token=abc&amp;x=1")
	assert.Contains(t, msg.Text, "https://crm.example.com/reset-password?token=abc&x=1")
	assert.Contains(t, msg.Text, "1 Mar 2024 10:30 UTC")
	assert.Equal(t, 1, metrics.ok)
}

func TestMailServiceInlineWithoutQueue(t *testing.T) {
	sender := &captureSender{}
	svc := NewMailService(sender, nil, nil)

	require.NoError(t, svc.SendPasswordReset(context.Background(), "a@b.co", "", "https://x/reset?token=t", time.Now()))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Hi there")
}

func TestMailServiceSendFailureCounts(t *testing.T) {
	sender := &captureSender{err: errors.New("provider down")}
	metrics := &mailMetricsStub{}
	svc := NewMailService(sender, metrics, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "j2", Type: JobTypePasswordReset, Payload: PasswordResetMail{To: "a@b.co"}})
	require.Error(t, err)
	assert.Equal(t, 1, metrics.failed)
}

func TestMailServiceRejectsUnknownJob(t *testing.T) {
	svc := NewMailService(&captureSender{}, nil, nil)

	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: "j3", Type: "newsletter"}))
	assert.Error(t, svc.HandleJob(context.Background(), jobs.Job{ID: "j4", Type: JobTypePasswordReset, Payload: "oops"}))
}

func TestMailServiceEnqueueError(t *testing.T) {
	svc := NewMailService(&captureSender{}, nil, nil)
	svc.SetQueue(&captureQueue{err: jobs.ErrQueueFull})

	err := svc.SendPasswordReset(context.Background(), "a@b.co", "A", "https://x", time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, jobs.ErrQueueFull)
}
