// Package discovery finds the serial port a device is attached to.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/channel"
	"github.com/fgeck/ciscoprov/internal/services/transport"
)

// ErrNoDevice is returned when no candidate port answers with a serial number.
var ErrNoDevice = errors.New("no device found on any candidate port")

// Service defines the interface for port discovery.
type Service interface {
	CandidatePorts() []string
	Open(ctx context.Context, port string, baud int) (*channel.Channel, error)
	ProbePort(ctx context.Context, port string, baud int) (*channel.Channel, string, bool)
	Autodetect(ctx context.Context, baud int) (*Detection, error)
}

// Detection is an open channel to the first port that answered.
type Detection struct {
	Channel *channel.Channel
	Port    string
	Serial  string
}

// Impl implements the discovery Service interface.
type Impl struct {
	opener   transport.Opener
	lister   transport.Lister
	serial   models.SerialSettings
	timing   models.TimingSettings
	clock    clock.Clock
	logger   zerolog.Logger
	platform string
}

// New creates a discovery service on the real serial stack.
func New(logger zerolog.Logger, serial models.SerialSettings, timing models.TimingSettings) *Impl {
	return NewWithTransport(logger, transport.DefaultOpener{}, transport.DefaultLister{}, clock.Real{}, serial, timing)
}

// NewWithTransport creates a discovery service with a custom transport and clock (for testing).
func NewWithTransport(
	logger zerolog.Logger,
	opener transport.Opener,
	lister transport.Lister,
	clk clock.Clock,
	serial models.SerialSettings,
	timing models.TimingSettings,
) *Impl {
	return &Impl{
		opener:   opener,
		lister:   lister,
		serial:   serial,
		timing:   timing,
		clock:    clk,
		logger:   logger,
		platform: runtime.GOOS,
	}
}

// CandidatePorts lists attached serial adapters, falling back to
// conventional port names when enumeration fails or finds nothing.
func (s *Impl) CandidatePorts() []string {
	ports, err := s.lister.ListPorts()
	if err != nil {
		s.logger.Debug().Err(err).Msg("port enumeration failed")
	}

	if len(ports) == 0 {
		if len(s.serial.FallbackPorts) > 0 {
			ports = s.serial.FallbackPorts
		} else {
			ports = FallbackPorts(s.platform)
		}
		s.logger.Debug().Strs("ports", ports).Msg("using fallback port list")
		return ports
	}

	s.logger.Debug().Strs("ports", ports).Msg("candidate ports")
	return ports
}

// FallbackPorts returns the conventional console port names for an OS.
func FallbackPorts(goos string) []string {
	var ports []string
	if goos == "windows" {
		for i := 3; i <= 20; i++ {
			ports = append(ports, fmt.Sprintf("COM%d", i))
		}
		return ports
	}
	for _, prefix := range []string{"/dev/ttyUSB", "/dev/ttyACM"} {
		for i := 0; i < 10; i++ {
			ports = append(ports, fmt.Sprintf("%s%d", prefix, i))
		}
	}
	return ports
}

// Open opens port and waits for the console to settle.
func (s *Impl) Open(ctx context.Context, port string, baud int) (*channel.Channel, error) {
	p, err := s.opener.Open(port, baud, s.serial.ReadTimeout)
	if err != nil {
		return nil, err
	}

	ch := channel.New(p, port, s.timing, s.clock, s.logger)
	if err := s.clock.Sleep(ctx, s.serial.OpenSettle); err != nil {
		_ = ch.Close()
		return nil, err
	}

	s.logger.Debug().Str("port", port).Int("baud", baud).Msg("port opened")
	return ch, nil
}

// ProbePort opens port and asks for the inventory. The channel is returned
// open only when a serial number was found; otherwise it is closed.
func (s *Impl) ProbePort(ctx context.Context, port string, baud int) (*channel.Channel, string, bool) {
	ch, err := s.Open(ctx, port, baud)
	if err != nil {
		s.logger.Debug().Err(err).Str("port", port).Msg("could not open port")
		return nil, "", false
	}

	// Boot banner and leftovers would end up in the inventory output.
	if err := ch.DiscardInput(); err != nil {
		s.logger.Debug().Err(err).Str("port", port).Msg("could not flush port")
		_ = ch.Close()
		return nil, "", false
	}
	if err := ch.Wake(ctx); err != nil {
		s.logger.Debug().Err(err).Str("port", port).Msg("no answer to line break")
		_ = ch.Close()
		return nil, "", false
	}

	serial, ok := ch.ProbeSerialNumber(ctx)
	if !ok {
		s.logger.Debug().Str("port", port).Msg("port open but no inventory answer")
		_ = ch.Close()
		return nil, "", false
	}

	s.logger.Debug().Str("port", port).Str("serial", serial).Msg("device detected")
	return ch, serial, true
}

// Autodetect probes candidate ports in order and returns the first device found.
func (s *Impl) Autodetect(ctx context.Context, baud int) (*Detection, error) {
	s.logger.Info().Int("baud", baud).Msg("searching for device")

	for _, port := range s.CandidatePorts() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.logger.Debug().Str("port", port).Msg("probing port")
		ch, serial, ok := s.ProbePort(ctx, port, baud)
		if ok {
			s.logger.Info().Str("port", port).Str("serial", serial).Msg("device found")
			return &Detection{Channel: ch, Port: port, Serial: serial}, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, ErrNoDevice
}
