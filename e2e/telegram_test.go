//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/telegram"
)

func getTelegramConfig(t *testing.T) models.TelegramConfig {
	t.Helper()

	botToken := os.Getenv("TEST_TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		t.Skip("TEST_TELEGRAM_BOT_TOKEN not set")
	}

	chatID := os.Getenv("TEST_TELEGRAM_CHAT_ID")
	if chatID == "" {
		t.Skip("TEST_TELEGRAM_CHAT_ID not set")
	}

	return models.TelegramConfig{
		BotToken: botToken,
		ChatID:   chatID,
	}
}

func TestTelegramSendRunSummary_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)
	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Station:   "e2e-bench",
		Worklist:  "Data.csv",
		StartTime: time.Now().Add(-5 * time.Minute),
		Duration:  5 * time.Minute,
		Succeeded: []string{"R_Lab1", "R_Lab2"},
		Failed: []models.FailedDevice{
			{Hostname: "R_Lab3", Reason: "serial mismatch: device=ABC123 worklist=WRONG999"},
		},
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.NoError(t, result.Error)
}

func TestTelegramSendInterrupted_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)
	svc := telegram.New(testLogger())

	msg := models.TelegramMessage{
		Station:      "e2e-bench",
		Worklist:     "Data.csv",
		StartTime:    time.Now().Add(-time.Minute),
		Duration:     time.Minute,
		Succeeded:    []string{"R_Lab1"},
		ErrorMessage: "context canceled",
	}

	result, err := svc.SendNotification(context.Background(), cfg, msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
}

func TestTelegramInvalidToken_E2E(t *testing.T) {
	cfg := getTelegramConfig(t)
	cfg.BotToken = "invalid_token_12345"
	svc := telegram.New(testLogger())

	result, err := svc.SendNotification(context.Background(), cfg, models.TelegramMessage{
		Station:   "e2e-bench",
		StartTime: time.Now(),
	})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.Error(t, result.Error)
}
