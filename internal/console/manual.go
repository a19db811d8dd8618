package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/channel"
	"github.com/fgeck/ciscoprov/internal/services/discovery"
)

// Manual runs free-form request/response mode: every line the operator types is
// sent to the device and the reply printed, until "exit". The port is always
// closed, including on interrupt.
func (c *Console) Manual(ctx context.Context, disc discovery.Service, defaultBaud int, settle time.Duration) error {
	port, err := c.AskPort(ctx)
	if err != nil {
		return err
	}
	baud, err := c.AskBaud(ctx, defaultBaud)
	if err != nil {
		return err
	}

	ch, serial, err := c.connect(ctx, disc, port, baud)
	if err != nil {
		return err
	}
	defer func() {
		if err := ch.Close(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to close console port")
		}
	}()

	if serial == "" {
		serial = "N/A"
	}
	c.Success("connected on %s (baud %d), serial %s", ch.Port(), baud, serial)
	c.Info("type commands, %q to leave", ExitCommand)

	for {
		line, err := c.Prompt(ctx, "Command: ")
		if err != nil {
			return err
		}
		if strings.EqualFold(line, ExitCommand) {
			c.Info("leaving manual mode")
			return nil
		}

		ex := ch.SendCommand(ctx, line, settle)
		if ex.Failed() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.Error("%s", ex.Output)
			return ex.Err
		}
		fmt.Fprintf(c.out, "\n%s\n", ex.Output)
	}
}

func (c *Console) connect(ctx context.Context, disc discovery.Service, port string, baud int) (*channel.Channel, string, error) {
	if (models.DeviceRecord{Port: port}).IsAutoPort() {
		c.Info("searching for a device...")
		det, err := disc.Autodetect(ctx, baud)
		if err != nil {
			return nil, "", err
		}
		return det.Channel, det.Serial, nil
	}

	c.Info("opening %s...", port)
	ch, err := disc.Open(ctx, port, baud)
	if err != nil {
		return nil, "", err
	}
	return ch, "", nil
}
