package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgeck/ciscoprov/internal/models"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if m.doFunc != nil {
		return m.doFunc(req)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() models.TelegramConfig {
	return models.TelegramConfig{
		BotToken: "123456:ABC-DEF",
		ChatID:   "-100123456789",
	}
}

func TestSendNotification_Success(t *testing.T) {
	var capturedRequest *http.Request
	var capturedBody sendMessageRequest

	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			capturedRequest = req
			body, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(body, &capturedBody)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("{\"ok\":true}")),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	msg := models.TelegramMessage{
		Station:   "bench-pc",
		Worklist:  "Data.csv",
		StartTime: time.Now().Add(-5 * time.Minute),
		Duration:  5 * time.Minute,
		Succeeded: []string{"R_Lab1", "R_Lab2"},
	}

	result, err := svc.SendNotification(context.Background(), testConfig(), msg)

	require.NoError(t, err)
	assert.True(t, result.MessageSent)
	assert.Nil(t, result.Error)

	// Verify request
	assert.Equal(t, http.MethodPost, capturedRequest.Method)
	assert.Contains(t, capturedRequest.URL.String(), "/bot123456:ABC-DEF/sendMessage")
	assert.Equal(t, "application/json", capturedRequest.Header.Get("Content-Type"))

	// Verify body
	assert.Equal(t, "-100123456789", capturedBody.ChatID)
	assert.Equal(t, "HTML", capturedBody.ParseMode)
	assert.Contains(t, capturedBody.Text, "Provisioning Complete")
	assert.Contains(t, capturedBody.Text, "R_Lab2")
}

func TestSendNotification_HTTPError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("network error")
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Station: "bench-pc"})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "failed to send request")
}

func TestSendNotification_APIError(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusBadRequest,
				Body:       io.NopCloser(strings.NewReader("{\"ok\":false}")),
			}, nil
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	result, err := svc.SendNotification(context.Background(), testConfig(), models.TelegramMessage{Station: "bench-pc"})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
	assert.Contains(t, result.Error.Error(), "status 400")
}

func TestFormatMessage_AllConfigured(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Station:   "bench-pc",
		Worklist:  "/data/Data.csv",
		StartTime: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Duration:  3*time.Minute + 45*time.Second,
		Succeeded: []string{"R_Lab1"},
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Provisioning Complete")
	assert.Contains(t, result, "bench-pc")
	assert.Contains(t, result, "/data/Data.csv")
	assert.Contains(t, result, "2024-01-15 10:30:00")
	assert.Contains(t, result, "3m45s")
	assert.Contains(t, result, "Configured (1)")
	assert.NotContains(t, result, "Failed (")
}

func TestFormatMessage_WithFailures(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Station:   "bench-pc",
		StartTime: time.Now(),
		Duration:  time.Minute,
		Succeeded: []string{"R_Lab1"},
		Failed: []models.FailedDevice{
			{Hostname: "R_Lab2", Reason: "serial mismatch: device=WRONG999 worklist=ABC123"},
			{Hostname: "SW<1>", Reason: "no channel"},
		},
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Finished With Failures")
	assert.Contains(t, result, "Failed (2)")
	assert.Contains(t, result, "WRONG999")
	assert.Contains(t, result, "SW&lt;1&gt;")
}

func TestFormatMessage_Interrupted(t *testing.T) {
	svc := New(testLogger())

	msg := models.TelegramMessage{
		Station:      "bench-pc",
		StartTime:    time.Now(),
		ErrorMessage: "context canceled",
	}

	result := svc.formatMessage(msg)

	assert.Contains(t, result, "Provisioning Interrupted")
	assert.Contains(t, result, "context canceled")
}

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello", "hello"},
		{"<script>", "&lt;script&gt;"},
		{"a & b", "a &amp; b"},
		{"<>&", "&lt;&gt;&amp;"},
		{"R_Lab1#", "R_Lab1#"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := escapeHTML(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSendNotification_ContextCancelled(t *testing.T) {
	httpClient := &mockHTTPClient{
		doFunc: func(req *http.Request) (*http.Response, error) {
			return nil, context.Canceled
		},
	}

	svc := NewWithClient(testLogger(), httpClient, "https://api.telegram.org")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.SendNotification(ctx, testConfig(), models.TelegramMessage{Station: "bench-pc"})

	require.NoError(t, err)
	assert.False(t, result.MessageSent)
	assert.NotNil(t, result.Error)
}
