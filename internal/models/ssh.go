package models

import "time"

// SSHVerifyConfig enables the post-provision SSH login check.
type SSHVerifyConfig struct {
	Port    int
	Timeout time.Duration
	Command string // exec command run once logged in
}

// SSHTarget is a freshly provisioned device reachable over the network.
type SSHTarget struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SSHResult holds the result of an SSH verification.
type SSHResult struct {
	Connected bool
	Output    string
	Error     error
}
