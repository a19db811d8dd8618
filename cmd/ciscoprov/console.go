package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/ciscoprov/internal/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Send commands to a device by hand",
	Long: `Open a console port and send each typed line to the device, printing its
reply. Type "exit" to close the port.`,
	RunE: runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	con := console.New(log.Logger, console.NewLineReader(os.Stdin), os.Stdout)
	return withSignals(func(ctx context.Context) error {
		err := con.Manual(ctx, a.discovery(), a.cfg.Serial.DefaultBaud, a.cfg.Timing.ManualSettle)
		if console.IsInterrupt(err) {
			log.Warn().Msg("console session interrupted")
			return nil
		}
		return err
	})
}
