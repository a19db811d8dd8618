package models

import "time"

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// TelegramMessage holds the data for a provisioning run notification.
type TelegramMessage struct {
	Station   string // workstation the technician ran on
	Worklist  string
	StartTime time.Time
	Duration  time.Duration

	Succeeded []string
	Failed    []FailedDevice

	// Set when the run stopped early.
	ErrorMessage string
}

// FailedDevice is a device that was not provisioned, with the reason.
type FailedDevice struct {
	Hostname string
	Reason   string
}

// TelegramResult holds the result of a Telegram notification.
type TelegramResult struct {
	MessageSent bool
	Error       error
}
