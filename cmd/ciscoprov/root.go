package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/ciscoprov/internal/console"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile   string
	worklistFile string
	verbose      bool
	quiet        bool
	jsonOutput   bool
)

var rootCmd = &cobra.Command{
	Use:   "ciscoprov",
	Short: "Provision Cisco IOS devices over the serial console",
	Long: `ciscoprov pushes a baseline configuration to Cisco IOS devices through
their serial console:
  - Finds the console port (or uses the one in the worklist)
  - Checks the device serial number against the worklist
  - Configures hostname, local user, domain and SSH access
  - Saves the configuration and confirms the new prompt
  - Optionally verifies SSH login and sends a Telegram summary

Without a subcommand an interactive menu is shown.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
	RunE:    runMenu,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVarP(&worklistFile, "worklist", "w", "", "device CSV (default: Data.csv or first *.csv in worklist.dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output logs in JSON format")

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(validateCmd)
}

func setupLogging() {
	// Logs go to stderr so tables and prompts on stdout stay readable.
	if jsonOutput {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// runMenu drives the interactive menu. Every action runs under its own signal
// context, so Ctrl-C aborts the action and returns here.
func runMenu(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	con := console.New(log.Logger, console.NewLineReader(os.Stdin), os.Stdout)

	for {
		choice, err := con.Menu(context.Background())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		switch choice {
		case console.MenuExit:
			return nil
		case console.MenuManual:
			err = withSignals(func(ctx context.Context) error {
				return con.Manual(ctx, a.discovery(), a.cfg.Serial.DefaultBaud, a.cfg.Timing.ManualSettle)
			})
		case console.MenuBatch:
			err = withSignals(func(ctx context.Context) error {
				_, err := a.runBatch(ctx, con.Out(), a.discovery(), con)
				return err
			})
		}

		switch {
		case err == nil:
		case console.IsInterrupt(err):
			con.Info("interrupted, back to the menu")
		case errors.Is(err, io.EOF):
			return nil
		default:
			con.Error("%v", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
