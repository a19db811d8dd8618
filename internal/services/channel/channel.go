// Package channel implements a prompt-synchronized command channel over a serial console.
//
// The console has no framing: a command is written, the channel waits a fixed
// settle time, then keeps polling until the output ends in a prompt marker or a
// timeout passes. Every read is bounded, so callers always make progress, at the
// cost of occasionally getting partial output back.
package channel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/transport"
)

// lineEnding terminates every command written to the console.
const lineEnding = "\r\n"

// Channel owns one open serial session to one device.
type Channel struct {
	port   transport.Port
	name   string
	timing models.TimingSettings
	clock  clock.Clock
	logger zerolog.Logger
}

// New wraps an open port. The channel takes ownership and closes it on Close.
func New(port transport.Port, name string, timing models.TimingSettings, clk clock.Clock, logger zerolog.Logger) *Channel {
	return &Channel{
		port:   port,
		name:   name,
		timing: timing,
		clock:  clk,
		logger: logger.With().Str("port", name).Logger(),
	}
}

// Port returns the name of the underlying serial port.
func (c *Channel) Port() string {
	return c.name
}

// SendCommand writes text and collects the reply. A missing prompt is not an
// error; an I/O failure yields a synthetic error string in Output and sets Err.
func (c *Channel) SendCommand(ctx context.Context, text string, settle time.Duration) models.Exchange {
	start := c.clock.Now()
	ex := models.Exchange{Command: text}

	fail := func(err error) models.Exchange {
		ex.Err = err
		ex.Output = fmt.Sprintf("[ERROR sending %q]: %v", text, err)
		ex.Elapsed = c.clock.Now().Sub(start)
		c.logger.Error().Err(err).Str("command", text).Msg("command failed")
		return ex
	}

	// Stale echo from a previous command would be mistaken for this reply.
	if err := c.port.DiscardInput(); err != nil {
		return fail(err)
	}
	if _, err := c.port.Write([]byte(text + lineEnding)); err != nil {
		return fail(err)
	}
	if err := c.clock.Sleep(ctx, settle); err != nil {
		return fail(err)
	}

	first, err := c.port.ReadAvailable()
	if err != nil {
		return fail(err)
	}

	out, prompt, err := c.readUntilPrompt(ctx, string(first), c.timing.CommandTimeout)
	if err != nil {
		return fail(err)
	}

	ex.Output = out
	ex.PromptDetected = prompt
	ex.Elapsed = c.clock.Now().Sub(start)

	c.logger.Debug().
		Str("command", text).
		Bool("prompt", prompt).
		Dur("elapsed", ex.Elapsed).
		Str("response", out).
		Msg("command sent")

	return ex
}

// EnterPrivilegedMode sends "enable" and answers the password challenge if the
// device asks for one. An empty enablePassword answers with a bare line break.
func (c *Channel) EnterPrivilegedMode(ctx context.Context, enablePassword string) models.Exchange {
	start := c.clock.Now()
	ex := models.Exchange{Command: "enable"}

	fail := func(err error) models.Exchange {
		ex.Err = err
		ex.Output = fmt.Sprintf("[ERROR sending %q]: %v", "enable", err)
		ex.Elapsed = c.clock.Now().Sub(start)
		c.logger.Error().Err(err).Msg("enable failed")
		return ex
	}

	if err := c.port.DiscardInput(); err != nil {
		return fail(err)
	}
	if _, err := c.port.Write([]byte("enable" + lineEnding)); err != nil {
		return fail(err)
	}
	if err := c.clock.Sleep(ctx, c.timing.EnableSettle); err != nil {
		return fail(err)
	}

	raw, err := c.port.ReadAvailable()
	if err != nil {
		return fail(err)
	}
	out := string(raw)

	if strings.Contains(strings.ToLower(out), "password") {
		c.logger.Debug().Bool("password_supplied", enablePassword != "").Msg("device asks for enable password")

		settle := c.timing.EnableSettle
		if enablePassword != "" {
			settle = c.timing.EnablePasswordSettle
		}
		if _, err := c.port.Write([]byte(enablePassword + lineEnding)); err != nil {
			return fail(err)
		}
		if err := c.clock.Sleep(ctx, settle); err != nil {
			return fail(err)
		}
		more, err := c.port.ReadAvailable()
		if err != nil {
			return fail(err)
		}
		out += string(more)
	}

	out, prompt, err := c.readUntilPrompt(ctx, out, c.timing.EnableTimeout)
	if err != nil {
		return fail(err)
	}

	ex.Output = out
	ex.PromptDetected = prompt
	ex.Elapsed = c.clock.Now().Sub(start)

	c.logger.Debug().Bool("prompt", prompt).Str("response", out).Msg("enable sent")
	return ex
}

// ProbeSerialNumber disables paging, runs "show inventory" and extracts the
// chassis serial number.
func (c *Channel) ProbeSerialNumber(ctx context.Context) (string, bool) {
	c.SendCommand(ctx, "terminal length 0", c.timing.PagerSettle)

	inv := c.SendCommand(ctx, "show inventory", c.timing.InventorySettle)
	if inv.Failed() {
		return "", false
	}

	serial, ok := ExtractSerialNumber(inv.Output)
	if !ok {
		c.logger.Debug().Msg("no serial number in inventory output")
		return "", false
	}

	c.logger.Debug().Str("serial", serial).Msg("serial number detected")
	return serial, true
}

// Wake sends a bare line break to make the console print a prompt and drops the reply.
func (c *Channel) Wake(ctx context.Context) error {
	if _, err := c.port.Write([]byte(lineEnding)); err != nil {
		return err
	}
	if err := c.clock.Sleep(ctx, c.timing.WakeSettle); err != nil {
		return err
	}
	_, err := c.port.ReadAvailable()
	return err
}

// DiscardInput drops anything the console printed so far, such as a boot banner.
func (c *Channel) DiscardInput() error {
	return c.port.DiscardInput()
}

// Close releases the serial port.
func (c *Channel) Close() error {
	if err := c.port.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", c.name, err)
	}
	c.logger.Debug().Msg("channel closed")
	return nil
}
