package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/ciscoprov/internal/report"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and worklist",
	Long:  `Validate the configuration file and the worklist CSV without touching any device.`,
	RunE:  validateAll,
}

func validateAll(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			log.Error().Str("file", configFile).Msg("config file not found")
			return fmt.Errorf("config file not found: %s", configFile)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	cfg := a.cfg

	source, records, err := a.loadWorklist()
	if err != nil {
		log.Error().Err(err).Msg("worklist validation failed")
		return err
	}

	fmt.Println("Configuration and worklist are valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Worklist: %s\n", source)
	fmt.Printf("  Devices: %d\n", len(records))
	fmt.Printf("  Default baud: %d\n", cfg.Serial.DefaultBaud)
	fmt.Printf("  RSA modulus: %d\n", cfg.Crypto.RSAModulus)
	fmt.Printf("  Username sync: %v", cfg.Username.SyncWithHostname)
	if cfg.Username.SyncWithHostname && cfg.Username.RequiredPrefix != "" {
		fmt.Printf(" (hostnames starting with %q)", cfg.Username.RequiredPrefix)
	}
	fmt.Println()
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  SSH Verification: %v\n", cfg.SSHVerify != nil)
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)

	if cfg.SSHVerify != nil {
		fmt.Println()
		fmt.Println("SSH Verification Configuration:")
		fmt.Printf("  Port: %d\n", cfg.SSHVerify.Port)
		fmt.Printf("  Timeout: %s\n", cfg.SSHVerify.Timeout)
	}

	if cfg.Telegram != nil {
		fmt.Println()
		fmt.Println("Telegram Configuration:")
		fmt.Printf("  Chat ID: %s\n", cfg.Telegram.ChatID)
		fmt.Printf("  Bot Token: (configured)\n")
	}

	fmt.Println()
	report.RenderWorklist(os.Stdout, records)
	return nil
}
