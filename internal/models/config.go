// Package models contains the data structures used throughout ciscoprov.
package models

import "time"

// ProvisionConfig holds the complete configuration for a provisioning session.
type ProvisionConfig struct {
	Worklist  WorklistSettings
	Serial    SerialSettings
	Username  UsernamePolicy
	Timing    TimingSettings
	Crypto    CryptoSettings
	SSHVerify *SSHVerifyConfig // nil if not configured
	Telegram  *TelegramConfig  // nil if not configured
}

// WorklistSettings tells the loader where to find the device CSV.
type WorklistSettings struct {
	Dir  string // searched for Data.csv, then any *.csv
	File string // explicit path, overrides Dir
}

// SerialSettings holds serial line defaults.
type SerialSettings struct {
	DefaultBaud   int
	ReadTimeout   time.Duration
	OpenSettle    time.Duration // console needs time after line assertion
	FallbackPorts []string      // used when enumeration yields nothing
}

// UsernamePolicy controls whether the local username follows the hostname.
type UsernamePolicy struct {
	SyncWithHostname bool
	RequiredPrefix   string // empty means sync regardless of prefix
}

// TimingSettings holds the waits used by the command channel.
type TimingSettings struct {
	PollInterval         time.Duration
	CommandTimeout       time.Duration
	EnableTimeout        time.Duration
	EnableSettle         time.Duration
	EnablePasswordSettle time.Duration
	WakeSettle           time.Duration
	PagerSettle          time.Duration
	InventorySettle      time.Duration
	ManualSettle         time.Duration
}

// CryptoSettings holds SSH key generation parameters.
type CryptoSettings struct {
	RSAModulus int
}

// DefaultTiming returns the waits that work against IOS consoles at 9600 baud.
func DefaultTiming() TimingSettings {
	return TimingSettings{
		PollInterval:         200 * time.Millisecond,
		CommandTimeout:       1200 * time.Millisecond,
		EnableTimeout:        3 * time.Second,
		EnableSettle:         400 * time.Millisecond,
		EnablePasswordSettle: 500 * time.Millisecond,
		WakeSettle:           300 * time.Millisecond,
		PagerSettle:          300 * time.Millisecond,
		InventorySettle:      2800 * time.Millisecond,
		ManualSettle:         2 * time.Second,
	}
}
