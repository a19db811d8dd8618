// Package provisioner applies the bootstrap configuration to one device.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/channel"
	"github.com/fgeck/ciscoprov/internal/services/discovery"
	"github.com/fgeck/ciscoprov/internal/services/sshverify"
)

const confirmSettle = 300 * time.Millisecond

// Service defines the interface for provisioning a single device.
type Service interface {
	Provision(ctx context.Context, rec models.DeviceRecord) models.Outcome
}

// Session is an open console to one device.
type Session interface {
	Port() string
	SendCommand(ctx context.Context, text string, settle time.Duration) models.Exchange
	EnterPrivilegedMode(ctx context.Context, enablePassword string) models.Exchange
	ProbeSerialNumber(ctx context.Context) (string, bool)
	Close() error
}

// Connector opens a session to the device on port, or autodetects it when port
// is empty or "auto". A non-empty serial means the connector already read it.
type Connector interface {
	Connect(ctx context.Context, port string, baud int) (Session, string, error)
}

// DiscoveryConnector connects through port discovery.
type DiscoveryConnector struct {
	Discovery discovery.Service
}

// Connect opens port directly, or autodetects the device.
func (c *DiscoveryConnector) Connect(ctx context.Context, port string, baud int) (Session, string, error) {
	if (models.DeviceRecord{Port: port}).IsAutoPort() {
		det, err := c.Discovery.Autodetect(ctx, baud)
		if err != nil {
			return nil, "", err
		}
		return det.Channel, det.Serial, nil
	}

	ch, err := c.Discovery.Open(ctx, port, baud)
	if err != nil {
		return nil, "", err
	}
	return ch, "", nil
}

var _ Session = (*channel.Channel)(nil)

// Settings holds provisioning parameters shared by every device.
type Settings struct {
	RSAModulus int
	SSHVerify  *models.SSHVerifyConfig // nil disables the post-provision login check
}

// Impl implements the provisioner Service interface.
type Impl struct {
	connector Connector
	verifier  sshverify.Service
	settings  Settings
	clock     clock.Clock
	logger    zerolog.Logger
}

// New creates a provisioner on the real serial stack.
func New(logger zerolog.Logger, disc discovery.Service, settings Settings) *Impl {
	return NewWithServices(logger, &DiscoveryConnector{Discovery: disc}, sshverify.New(logger), clock.Real{}, settings)
}

// NewWithServices creates a provisioner with custom dependencies (for testing).
func NewWithServices(
	logger zerolog.Logger,
	connector Connector,
	verifier sshverify.Service,
	clk clock.Clock,
	settings Settings,
) *Impl {
	return &Impl{
		connector: connector,
		verifier:  verifier,
		settings:  settings,
		clock:     clk,
		logger:    logger,
	}
}

// Provision validates the device serial number and, only on a match, pushes the
// configuration sequence and saves it. The session is always closed.
//
//nolint:gocognit,gocyclo // linear state machine, one branch per state
func (s *Impl) Provision(ctx context.Context, rec models.DeviceRecord) models.Outcome {
	start := s.clock.Now()
	out := models.Outcome{
		Hostname:       rec.Hostname,
		ExpectedSerial: rec.Serial,
		State:          models.StateConnecting,
	}
	log := s.logger.With().Str("hostname", rec.Hostname).Logger()

	fail := func(reason models.FailureReason, err error, detail string) models.Outcome {
		if ctx.Err() != nil {
			reason = models.ReasonInterrupted
			err = ctx.Err()
		}
		out.FailedState = out.State
		out.State = models.StateFailed
		out.Reason = reason
		out.Detail = detail
		out.Error = err
		out.Duration = s.clock.Now().Sub(start)
		log.Error().
			Err(err).
			Str("state", string(out.FailedState)).
			Str("reason", string(reason)).
			Str("detail", detail).
			Msg("provisioning failed")
		return out
	}

	// Connecting
	log.Info().Str("port", rec.Port).Int("baud", rec.Baud).Msg("connecting")
	sess, detected, err := s.connector.Connect(ctx, rec.Port, rec.Baud)
	if err != nil {
		return fail(models.ReasonNoChannel, err, err.Error())
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close console")
		}
	}()
	out.Port = sess.Port()

	// SerialValidating
	out.State = models.StateSerialValidating
	if detected == "" {
		detected, _ = sess.ProbeSerialNumber(ctx)
	}
	out.DetectedSerial = detected
	log.Info().Str("port", out.Port).Str("detected", detected).Str("expected", rec.Serial).Msg("connected")

	if !SerialMatches(detected, rec.Serial) {
		if detected == "" {
			detected = "N/A"
		}
		return fail(models.ReasonSerialMismatch, nil,
			fmt.Sprintf("device=%s worklist=%s", detected, rec.Serial))
	}

	// Enabling
	out.State = models.StateEnabling
	if ex := sess.EnterPrivilegedMode(ctx, rec.Password); ex.Failed() {
		return fail(models.ReasonIOError, ex.Err, ex.Output)
	}

	// Configuring
	out.State = models.StateConfiguring
	for _, step := range ConfigSequence(rec, s.settings.RSAModulus) {
		ex := sess.SendCommand(ctx, step.Command, step.Settle)
		if ex.Failed() {
			return fail(models.ReasonMidSequence, ex.Err, redact(step.Command))
		}
		out.CommandsSent++
	}

	// Confirming
	out.State = models.StateConfirming
	s.confirm(ctx, sess, rec, &out, log)

	if s.settings.SSHVerify != nil && rec.MgmtIP != "" && rec.Domain != "" {
		s.verifySSH(ctx, rec, &out, log)
	}

	out.State = models.StateSuccess
	out.Duration = s.clock.Now().Sub(start)
	log.Info().
		Str("port", out.Port).
		Int("commands", out.CommandsSent).
		Dur("duration", out.Duration).
		Msg("configuration applied")

	return out
}

// confirm repaints the prompt and records the hostname it shows. It never fails the device.
func (s *Impl) confirm(ctx context.Context, sess Session, rec models.DeviceRecord, out *models.Outcome, log zerolog.Logger) {
	ex := sess.SendCommand(ctx, "", confirmSettle)
	if ex.Failed() {
		log.Warn().Err(ex.Err).Msg("could not read prompt after save")
		return
	}

	seen, ok := channel.PromptHostname(ex.Output)
	if !ok {
		log.Warn().Msg("prompt hostname not detected")
		return
	}
	out.ConfirmedHostname = seen

	if seen != rec.Hostname {
		log.Warn().Str("prompt", seen).Msg("prompt does not show the new hostname")
		return
	}
	log.Debug().Str("prompt", seen+"#").Msg("prompt confirmed")
}

func (s *Impl) verifySSH(ctx context.Context, rec models.DeviceRecord, out *models.Outcome, log zerolog.Logger) {
	result, err := s.verifier.Verify(ctx, *s.settings.SSHVerify, models.SSHTarget{
		Host:     rec.MgmtIP,
		Port:     s.settings.SSHVerify.Port,
		Username: rec.Username,
		Password: rec.Password,
	})
	if err == nil {
		err = result.Error
	}

	ok := err == nil
	out.SSHVerified = &ok
	if !ok && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("host", rec.MgmtIP).Msg("SSH login check failed")
	}
}
