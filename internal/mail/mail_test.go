package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taskflow/taskflow-go/internal/config"
)

func TestNewSMTPMailerRequiresHost(t *testing.T) {
	_, err := NewSMTPMailer(config.SMTPConfig{})
	assert.Error(t, err)
}

func TestSMTPMailerSendPasswordReset(t *testing.T) {
	m, err := NewSMTPMailer(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587, User: "u", Password: "p", From: "TaskFlow <no-reply@example.com>",
	})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		assert.NotNil(t, a)
		return nil
	}

	url := "https://app.example.com/reset-password/abc123"
	require.NoError(t, m.SendPasswordReset(context.Background(), "alice@example.com", url))

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: "+resetSubject)
	assert.Contains(t, msg, "To: alice@example.com")
	assert.Contains(t, msg, url)
}

func TestSMTPMailerWrapsSendError(t *testing.T) {
	m, err := NewSMTPMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 25})
	require.NoError(t, err)
	boom := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err = m.SendPasswordReset(context.Background(), "bob@example.com", "https://x/reset-password/t")
	assert.ErrorIs(t, err, boom)
}

func TestBuildResetMessageEscapesURL(t *testing.T) {
	msg, err := buildResetMessage("a@b", "c@d", `https://x/reset-password/"><script>`, time.Unix(0, 0))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(msg), "<script>"))
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "a@b.c", envelopeAddress("Name <a@b.c>"))
	assert.Equal(t, "a@b.c", envelopeAddress("a@b.c"))
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, NewLogMailer(zap.NewNop()).SendPasswordReset(context.Background(), "a@b.c", "https://x"))
}
