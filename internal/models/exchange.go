package models

import "time"

// Exchange is one send/receive cycle on a command channel.
type Exchange struct {
	Command        string
	Output         string // synthetic error text when Err is set
	Elapsed        time.Duration
	PromptDetected bool
	Err            error
}

// Failed reports whether the exchange hit a hard I/O error.
func (e Exchange) Failed() bool {
	return e.Err != nil
}

// PortInfo describes a serial port found during enumeration.
type PortInfo struct {
	Name         string
	IsUSB        bool
	VendorID     string
	ProductID    string
	SerialNumber string
	Product      string
}
