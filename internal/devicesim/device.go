// Package devicesim emulates the serial console of a Cisco IOS device.
//
// A Device answers the small command set ciscoprov uses: enable, paging,
// show inventory, configuration mode and save. It implements transport.Port
// and responds synchronously, so its output is readable right after Write.
package devicesim

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/fgeck/ciscoprov/internal/services/transport"
)

// InventoryStyle selects how "show inventory" prints the serial number.
type InventoryStyle int

const (
	// InventorySN prints "SN: <serial>" as IOS routers do.
	InventorySN InventoryStyle = iota
	// InventoryLabel prints "System Serial Number : <serial>".
	InventoryLabel
	// InventoryNone prints no serial at all.
	InventoryNone
)

// Config describes the emulated device.
type Config struct {
	Hostname     string // defaults to "Router"
	Serial       string
	EnableSecret string // non-empty makes "enable" ask for a password
	Inventory    InventoryStyle
	Banner       string // printed before the first command
	Mute         bool   // never prints anything
}

type mode int

const (
	modeUser mode = iota
	modePrivileged
	modeConfig
	modeLine
)

// Device is one emulated console.
type Device struct {
	mu sync.Mutex

	cfg      Config
	hostname string
	domain   string
	mode     mode
	saved    bool
	rsaBits  string

	awaitingPassword bool
	pending          bytes.Buffer // partial input line
	out              bytes.Buffer
	history          []string
	closed           bool

	failOn  string
	failErr error
}

// New creates a device in user exec mode.
func New(cfg Config) *Device {
	if cfg.Hostname == "" {
		cfg.Hostname = "Router"
	}
	d := &Device{cfg: cfg, hostname: cfg.Hostname}
	if cfg.Banner != "" && !cfg.Mute {
		d.out.WriteString(cfg.Banner)
	}
	return d
}

var _ transport.Port = (*Device)(nil)

// FailOn makes any write of a line starting with command return err.
func (d *Device) FailOn(command string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOn = command
	d.failErr = err
}

// Write feeds console input. Complete lines are executed immediately.
func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, transport.ErrPortClosed
	}
	if d.failOn != "" && strings.HasPrefix(strings.TrimSpace(string(p)), d.failOn) {
		return 0, d.failErr
	}

	d.pending.Write(p)
	for {
		line, err := d.pending.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write.
			d.pending.Reset()
			d.pending.WriteString(line)
			break
		}
		d.execute(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// ReadAvailable returns and clears everything printed so far.
func (d *Device) ReadAvailable() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, transport.ErrPortClosed
	}
	out := make([]byte, d.out.Len())
	copy(out, d.out.Bytes())
	d.out.Reset()
	return out, nil
}

// DiscardInput drops unread console output.
func (d *Device) DiscardInput() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return transport.ErrPortClosed
	}
	d.out.Reset()
	return nil
}

// Close ends the session. The device keeps its configuration.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return transport.ErrPortClosed
	}
	d.closed = true
	return nil
}

// History returns every line received, in order.
func (d *Device) History() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.history))
	copy(out, d.history)
	return out
}

// Hostname returns the configured hostname.
func (d *Device) Hostname() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hostname
}

// Saved reports whether "write memory" ran.
func (d *Device) Saved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saved
}

// Closed reports whether the session was closed.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// reopen starts a new console session on the same device.
func (d *Device) reopen() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = false
	d.pending.Reset()
	d.out.Reset()
	d.awaitingPassword = false
	if d.mode != modeUser {
		d.mode = modePrivileged
	}
}

func (d *Device) prompt() string {
	switch d.mode {
	case modePrivileged:
		return d.hostname + "#"
	case modeConfig:
		return d.hostname + "(config)#"
	case modeLine:
		return d.hostname + "(config-line)#"
	default:
		return d.hostname + ">"
	}
}

func (d *Device) print(s string) {
	if !d.cfg.Mute {
		d.out.WriteString(s)
	}
}

//nolint:gocyclo // one case per emulated command
func (d *Device) execute(line string) {
	d.history = append(d.history, line)

	if d.awaitingPassword {
		d.awaitingPassword = false
		d.print("\r\n")
		if line == d.cfg.EnableSecret {
			d.mode = modePrivileged
		} else {
			d.print("% Access denied\r\n\r\n")
		}
		d.print(d.prompt())
		return
	}

	cmd := strings.TrimSpace(line)
	d.print(line + "\r\n")

	switch {
	case cmd == "":
	case cmd == "enable":
		if d.mode == modeUser && d.cfg.EnableSecret != "" {
			d.awaitingPassword = true
			d.print("Password: ")
			return
		}
		if d.mode == modeUser {
			d.mode = modePrivileged
		}
	case cmd == "disable":
		d.mode = modeUser
	case cmd == "terminal length 0":
	case cmd == "show inventory":
		d.print(d.inventory())
	case cmd == "configure terminal":
		if d.mode != modePrivileged {
			d.invalid()
			break
		}
		d.print("Enter configuration commands, one per line.  End with CNTL/Z.\r\n")
		d.mode = modeConfig
	case cmd == "end":
		if d.mode == modeConfig || d.mode == modeLine {
			d.mode = modePrivileged
		}
	case cmd == "exit":
		switch d.mode {
		case modeLine:
			d.mode = modeConfig
		case modeConfig:
			d.mode = modePrivileged
		}
	case cmd == "write memory":
		if d.mode != modePrivileged {
			d.invalid()
			break
		}
		d.print("Building configuration...\r\n[OK]\r\n")
		d.saved = true
	case d.mode == modeConfig || d.mode == modeLine:
		d.configure(cmd)
	default:
		d.invalid()
	}

	d.print(d.prompt())
}

func (d *Device) configure(cmd string) {
	fields := strings.Fields(cmd)
	switch {
	case fields[0] == "hostname" && len(fields) == 2:
		d.hostname = fields[1]
	case strings.HasPrefix(cmd, "ip domain-name ") && len(fields) == 3:
		d.domain = fields[2]
	case strings.HasPrefix(cmd, "line vty"):
		d.mode = modeLine
	case strings.HasPrefix(cmd, "crypto key generate rsa"):
		if d.domain == "" {
			d.print("% Please define a domain-name first.\r\n")
			return
		}
		d.rsaBits = fields[len(fields)-1]
		d.print(fmt.Sprintf("The name for the keys will be: %s.%s\r\n", d.hostname, d.domain))
		d.print(fmt.Sprintf("%% The key modulus size is %s bits\r\n", d.rsaBits))
		d.print(fmt.Sprintf("%% Generating %s bit RSA keys, keys will be non-exportable...\r\n[OK]\r\n", d.rsaBits))
	}
}

func (d *Device) invalid() {
	d.print("                    ^\r\n% Invalid input detected at '^' marker.\r\n\r\n")
}

func (d *Device) inventory() string {
	switch d.cfg.Inventory {
	case InventoryLabel:
		return fmt.Sprintf("Model Number        : WS-C2960-24TT-L\r\nSystem Serial Number : %s\r\n\r\n", d.cfg.Serial)
	case InventoryNone:
		return "NAME: \"Chassis\", DESCR: \"Unknown chassis\"\r\n\r\n"
	default:
		return fmt.Sprintf("NAME: \"Chassis\", DESCR: \"Cisco ISR4321 Chassis\"\r\n"+
			"PID: ISR4321/K9        , VID: V04  , SN: %s\r\n\r\n", d.cfg.Serial)
	}
}
