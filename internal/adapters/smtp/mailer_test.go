package smtp

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/core"
	"github.com/healthquiz/quiz-api/internal/domain/model"
)

func TestMailer_SendAccessCode(t *testing.T) {
	t.Parallel()

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := NewMailer(config.SMTPConfig{
		Host: "smtp.example.com",
		Port: 587,
		From: "no-reply@healthquiz.local",
	})
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	err := m.SendAccessCode(context.Background(), core.SendAccessCodeParams{
		To:       "alice@example.com",
		Username: "alice",
		Code:     "123456",
		Plan:     model.PlanThreeMonths,
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "no-reply@healthquiz.local", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Access code: 123456")
	assert.Contains(t, string(gotMsg), "Subject: Welcome alice!")
}

func TestMailer_SendAccessCode_CancelledContext(t *testing.T) {
	t.Parallel()

	m := NewMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send should not be called with a cancelled context")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.SendAccessCode(ctx, core.SendAccessCodeParams{To: "a@b.c", Username: "a", Code: "000000", Plan: model.PlanThreeMonths})
	require.Error(t, err)
}
