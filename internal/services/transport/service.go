// Package transport is the serial line boundary: open, write, read what is buffered, close.
package transport

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"

	"github.com/fgeck/ciscoprov/internal/models"
)

// Predefined errors for port open failures.
var (
	ErrPortNotFound     = errors.New("serial port not found")
	ErrPortBusy         = errors.New("serial port already in use")
	ErrPermissionDenied = errors.New("permission denied accessing serial port")
	ErrInvalidBaudRate  = errors.New("invalid baud rate")
	ErrPortClosed       = errors.New("serial port is closed")
)

// Port is an open serial line owned by exactly one device session.
type Port interface {
	Write(data []byte) (int, error)
	// ReadAvailable returns the bytes currently buffered without waiting for more.
	ReadAvailable() ([]byte, error)
	// DiscardInput drops unread input.
	DiscardInput() error
	Close() error
}

// Opener opens serial ports.
type Opener interface {
	Open(name string, baud int, readTimeout time.Duration) (Port, error)
}

// Lister enumerates serial ports attached to the host.
type Lister interface {
	ListPorts() ([]string, error)
	ListDetailed() ([]models.PortInfo, error)
}

// drainWait bounds a single driver read while collecting buffered bytes.
const drainWait = 20 * time.Millisecond

// DefaultOpener opens ports with go.bug.st/serial at 8N1.
type DefaultOpener struct{}

// Open opens name at baud.
func (DefaultOpener) Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	if baud <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBaudRate, baud)
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, mapError(err))
	}

	if err := p.SetReadTimeout(drainWait); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	if readTimeout <= 0 {
		readTimeout = time.Second
	}

	return &serialPort{name: name, port: p, readTimeout: readTimeout}, nil
}

type serialPort struct {
	name        string
	port        serial.Port
	readTimeout time.Duration
	closed      bool
}

func (p *serialPort) Write(data []byte) (int, error) {
	if p.closed {
		return 0, ErrPortClosed
	}
	n, err := p.port.Write(data)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", p.name, mapError(err))
	}
	return n, nil
}

func (p *serialPort) ReadAvailable() ([]byte, error) {
	if p.closed {
		return nil, ErrPortClosed
	}

	var out []byte
	buf := make([]byte, 4096)
	deadline := time.Now().Add(p.readTimeout)
	for {
		n, err := p.port.Read(buf)
		if err != nil {
			return out, fmt.Errorf("reading %s: %w", p.name, mapError(err))
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, buf[:n]...)
		// A chatty console must not keep us here forever.
		if time.Now().After(deadline) {
			return out, nil
		}
	}
}

func (p *serialPort) DiscardInput() error {
	if p.closed {
		return ErrPortClosed
	}
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flushing %s: %w", p.name, mapError(err))
	}
	_, err := p.ReadAvailable()
	return err
}

func (p *serialPort) Close() error {
	if p.closed {
		return ErrPortClosed
	}
	p.closed = true
	return p.port.Close()
}

// mapError translates go.bug.st port errors into the package sentinels.
func mapError(err error) error {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code() {
	case serial.PortNotFound:
		return fmt.Errorf("%w: %s", ErrPortNotFound, pe.EncodedErrorString())
	case serial.PortBusy:
		return fmt.Errorf("%w: %s", ErrPortBusy, pe.EncodedErrorString())
	case serial.PermissionDenied:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pe.EncodedErrorString())
	case serial.InvalidSpeed:
		return fmt.Errorf("%w: %s", ErrInvalidBaudRate, pe.EncodedErrorString())
	case serial.PortClosed:
		return ErrPortClosed
	default:
		return err
	}
}

// DefaultLister enumerates ports through the operating system.
type DefaultLister struct{}

// ListPorts returns the port names reported by the OS, sorted.
func (DefaultLister) ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

// ListDetailed returns ports with USB metadata where the OS provides it.
func (DefaultLister) ListDetailed() ([]models.PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerating serial ports: %w", err)
	}

	infos := make([]models.PortInfo, 0, len(details))
	for _, d := range details {
		infos = append(infos, models.PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VendorID:     d.VID,
			ProductID:    d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}
