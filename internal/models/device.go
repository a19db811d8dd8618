package models

import (
	"strings"
	"time"
)

// AutoPort in the Port column selects the port by autodetection.
const AutoPort = "auto"

// DeviceRecord is one normalised worklist row.
type DeviceRecord struct {
	Port     string
	Hostname string
	Username string
	Password string
	Domain   string
	Serial   string // expected serial number
	Baud     int
	MgmtIP   string // optional, enables SSH verification
}

// IsAutoPort reports whether the record asks for port autodetection.
func (r DeviceRecord) IsAutoPort() bool {
	p := strings.TrimSpace(r.Port)
	return p == "" || strings.EqualFold(p, AutoPort)
}

// State is a step of the per-device provisioning state machine.
type State string

// Provisioning states.
const (
	StateConnecting       State = "connecting"
	StateSerialValidating State = "serial_validating"
	StateEnabling         State = "enabling"
	StateConfiguring      State = "configuring"
	StateConfirming       State = "confirming"
	StateSuccess          State = "success"
	StateFailed           State = "failed"
)

// FailureReason classifies why a device was not provisioned.
type FailureReason string

// Failure reasons.
const (
	ReasonNone           FailureReason = ""
	ReasonNoChannel      FailureReason = "no channel"
	ReasonSerialMismatch FailureReason = "serial mismatch"
	ReasonIOError        FailureReason = "I/O error"
	ReasonMidSequence    FailureReason = "mid-sequence failure"
	ReasonInterrupted    FailureReason = "interrupted"
)

// Outcome holds the result of provisioning one device.
type Outcome struct {
	Hostname          string
	Port              string // port actually used, empty if none
	ExpectedSerial    string
	DetectedSerial    string
	State             State // terminal state: success or failed
	FailedState       State // state in which the failure happened
	Reason            FailureReason
	Detail            string
	ConfirmedHostname string // hostname seen in the final prompt, empty if not detected
	CommandsSent      int    // configuration commands written
	SSHVerified       *bool  // nil if verification was not attempted
	Duration          time.Duration
	Error             error
}

// Success reports whether the device was provisioned.
func (o Outcome) Success() bool {
	return o.State == StateSuccess
}

// RunSummary collects the outcomes of a batch run.
type RunSummary struct {
	Source    string // worklist path
	StartTime time.Time
	Duration  time.Duration
	Outcomes  []Outcome
}

// Succeeded returns the hostnames of provisioned devices in run order.
func (s *RunSummary) Succeeded() []string {
	var names []string
	for _, o := range s.Outcomes {
		if o.Success() {
			names = append(names, o.Hostname)
		}
	}
	return names
}

// Failed returns the outcomes of devices that were not provisioned.
func (s *RunSummary) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if !o.Success() {
			failed = append(failed, o)
		}
	}
	return failed
}
