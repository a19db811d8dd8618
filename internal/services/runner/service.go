// Package runner orchestrates a batch provisioning run over the worklist.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/provisioner"
	"github.com/fgeck/ciscoprov/internal/services/telegram"
)

// Gate holds the run until the operator has connected the next device.
type Gate interface {
	Ready(ctx context.Context, index, total int, rec models.DeviceRecord) error
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, index, total int, rec models.DeviceRecord) error

// Ready calls f.
func (f GateFunc) Ready(ctx context.Context, index, total int, rec models.DeviceRecord) error {
	return f(ctx, index, total, rec)
}

// NoGate lets every device through immediately.
var NoGate = GateFunc(func(context.Context, int, int, models.DeviceRecord) error { return nil })

// Service defines the interface for the batch runner.
type Service interface {
	Run(ctx context.Context, source string, records []models.DeviceRecord) (*models.RunSummary, error)
}

// Impl implements the runner Service interface.
type Impl struct {
	provisioner provisioner.Service
	gate        Gate
	telegramSvc telegram.Service
	telegramCfg *models.TelegramConfig
	clock       clock.Clock
	logger      zerolog.Logger
}

// New creates a new runner service.
func New(logger zerolog.Logger, prov provisioner.Service, gate Gate, telegramCfg *models.TelegramConfig) *Impl {
	return NewWithServices(logger, prov, gate, telegram.New(logger), telegramCfg, clock.Real{})
}

// NewWithServices creates a new runner service with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	prov provisioner.Service,
	gate Gate,
	telegramSvc telegram.Service,
	telegramCfg *models.TelegramConfig,
	clk clock.Clock,
) *Impl {
	if gate == nil {
		gate = NoGate
	}
	return &Impl{
		provisioner: prov,
		gate:        gate,
		telegramSvc: telegramSvc,
		telegramCfg: telegramCfg,
		clock:       clk,
		logger:      logger,
	}
}

// Run provisions records one at a time, in order. A failed device never stops
// the run; an interrupt or a gate error does, and the partial summary is
// returned together with the error.
func (s *Impl) Run(ctx context.Context, source string, records []models.DeviceRecord) (*models.RunSummary, error) {
	summary := &models.RunSummary{
		Source:    source,
		StartTime: s.clock.Now(),
	}
	var runErr error

	s.logger.Info().
		Str("worklist", source).
		Int("devices", len(records)).
		Msg("starting provisioning run")

	defer func() {
		summary.Duration = s.clock.Now().Sub(summary.StartTime)
		if s.telegramCfg != nil {
			// The run context may already be cancelled; the summary still goes out.
			s.sendNotification(context.WithoutCancel(ctx), summary, runErr)
		}
	}()

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		if err := s.gate.Ready(ctx, i+1, len(records), rec); err != nil {
			if ctx.Err() == nil {
				err = fmt.Errorf("waiting for %s: %w", rec.Hostname, err)
			}
			runErr = err
			break
		}

		s.logger.Info().
			Int("index", i+1).
			Int("total", len(records)).
			Str("hostname", rec.Hostname).
			Str("serial", rec.Serial).
			Str("port", rec.Port).
			Int("baud", rec.Baud).
			Msg("provisioning device")

		outcome := s.provisioner.Provision(ctx, rec)
		summary.Outcomes = append(summary.Outcomes, outcome)

		if outcome.Reason == models.ReasonInterrupted {
			runErr = ctx.Err()
			if runErr == nil {
				runErr = context.Canceled
			}
			break
		}
	}

	logEvent := s.logger.Info()
	if runErr != nil {
		logEvent = s.logger.Warn().Err(runErr)
	}
	logEvent.
		Int("succeeded", len(summary.Succeeded())).
		Int("failed", len(summary.Failed())).
		Int("skipped", len(records)-len(summary.Outcomes)).
		Msg("provisioning run finished")

	return summary, runErr
}

func (s *Impl) sendNotification(ctx context.Context, summary *models.RunSummary, runErr error) {
	station, _ := os.Hostname()

	msg := models.TelegramMessage{
		Station:   station,
		Worklist:  summary.Source,
		StartTime: summary.StartTime,
		Duration:  summary.Duration,
		Succeeded: summary.Succeeded(),
	}
	for _, o := range summary.Failed() {
		msg.Failed = append(msg.Failed, models.FailedDevice{
			Hostname: o.Hostname,
			Reason:   FailureText(o),
		})
	}
	if runErr != nil {
		msg.ErrorMessage = runErr.Error()
	}

	result, err := s.telegramSvc.SendNotification(ctx, *s.telegramCfg, msg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if result.Error != nil {
		s.logger.Error().Err(result.Error).Msg("failed to send Telegram notification")
		return
	}

	s.logger.Info().Msg("Telegram notification sent")
}

// FailureText renders why a device failed, e.g. "serial mismatch: device=X worklist=Y".
func FailureText(o models.Outcome) string {
	switch {
	case o.Detail != "":
		return fmt.Sprintf("%s: %s", o.Reason, o.Detail)
	case o.Error != nil && !errors.Is(o.Error, context.Canceled):
		return fmt.Sprintf("%s: %v", o.Reason, o.Error)
	default:
		return string(o.Reason)
	}
}
