package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/ciscoprov/internal/clock"
	"github.com/fgeck/ciscoprov/internal/console"
	"github.com/fgeck/ciscoprov/internal/devicesim"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/discovery"
	"github.com/fgeck/ciscoprov/internal/services/runner"
)

// dryRunPort hosts the emulated device for records without an explicit port.
const dryRunPort = "/dev/ttySIM0"

var (
	assumeYes bool
	dryRun    bool
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Provision every device in the worklist",
	Long: `Provision the devices listed in the worklist CSV, one at a time:
1. Wait for the operator to connect the device (skipped with --yes)
2. Open the console port (autodetected when Port is empty or "auto")
3. Read the serial number and compare it with the worklist
4. Enter privileged mode and push the configuration
5. Save and confirm the new hostname in the prompt
6. Verify SSH login (if configured and the row has a Mgmt-IP)
7. Print a summary and send a Telegram notification (if configured)`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not wait for ENTER before each device")
	provisionCmd.Flags().BoolVar(&dryRun, "dry-run", false, "provision emulated devices instead of real hardware")
}

func runProvision(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var gate runner.Gate = runner.NoGate
	if !assumeYes {
		gate = console.New(log.Logger, console.NewLineReader(os.Stdin), os.Stdout)
	}

	disc := a.discovery()
	if dryRun {
		bench := devicesim.NewBench()
		disc = discovery.NewWithTransport(log.Logger, bench, bench, clock.Real{}, a.cfg.Serial, a.cfg.Timing)
		gate = &benchGate{bench: bench, next: gate}
		log.Info().Msg("dry run: provisioning emulated devices")
	}

	summary, err := a.runBatch(ctx, os.Stdout, disc, gate)
	if err != nil {
		log.Error().Err(err).Msg("provisioning stopped")
		return err
	}

	if failed := len(summary.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d devices failed", failed, len(summary.Outcomes))
	}
	log.Info().Msg("all devices provisioned")
	return nil
}

// benchGate plugs a fresh emulated device matching the record into the bench
// once the wrapped gate lets the record through.
type benchGate struct {
	bench *devicesim.Bench
	next  runner.Gate
	last  string
}

func (g *benchGate) Ready(ctx context.Context, index, total int, rec models.DeviceRecord) error {
	if err := g.next.Ready(ctx, index, total, rec); err != nil {
		return err
	}

	if g.last != "" {
		g.bench.Detach(g.last)
	}
	port := rec.Port
	if rec.IsAutoPort() {
		port = dryRunPort
	}
	g.bench.Attach(port, devicesim.New(devicesim.Config{
		Serial:       rec.Serial,
		EnableSecret: rec.Password,
	}))
	g.last = port
	return nil
}
