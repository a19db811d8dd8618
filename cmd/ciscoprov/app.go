package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/fgeck/ciscoprov/internal/config"
	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/report"
	"github.com/fgeck/ciscoprov/internal/services/discovery"
	"github.com/fgeck/ciscoprov/internal/services/provisioner"
	"github.com/fgeck/ciscoprov/internal/services/runner"
	"github.com/fgeck/ciscoprov/internal/services/worklist"
)

type app struct {
	cfg *models.ProvisionConfig
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg}, nil
}

// loadConfig reads --config when given and falls back to built-in defaults.
func loadConfig() (*models.ProvisionConfig, error) {
	parser := config.NewParser()

	var (
		cfg *models.ProvisionConfig
		err error
	)
	if configFile == "" {
		cfg, err = parser.LoadDefaults()
	} else {
		cfg, err = parser.LoadFile(configFile)
	}
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	log.Debug().
		Str("config", configFile).
		Int("default_baud", cfg.Serial.DefaultBaud).
		Bool("ssh_verify", cfg.SSHVerify != nil).
		Bool("telegram", cfg.Telegram != nil).
		Msg("configuration loaded")

	return cfg, nil
}

func (a *app) discovery() discovery.Service {
	return discovery.New(log.Logger, a.cfg.Serial, a.cfg.Timing)
}

func (a *app) provisionerSettings() provisioner.Settings {
	return provisioner.Settings{
		RSAModulus: a.cfg.Crypto.RSAModulus,
		SSHVerify:  a.cfg.SSHVerify,
	}
}

// loadWorklist resolves the CSV from --worklist, worklist.file or worklist.dir.
func (a *app) loadWorklist() (string, []models.DeviceRecord, error) {
	svc := worklist.New(log.Logger, a.cfg.Username, a.cfg.Serial.DefaultBaud)

	path := worklistFile
	if path == "" {
		path = a.cfg.Worklist.File
	}
	if path == "" {
		found, err := svc.Locate(a.cfg.Worklist.Dir)
		if err != nil {
			return "", nil, err
		}
		path = found
	}

	records, err := svc.Load(path)
	if err != nil {
		return path, nil, err
	}
	if len(records) == 0 {
		return path, nil, fmt.Errorf("%s lists no devices", path)
	}
	return path, records, nil
}

// runBatch loads the worklist and provisions every device on it through disc,
// printing the worklist before and the summary after.
func (a *app) runBatch(ctx context.Context, out io.Writer, disc discovery.Service, gate runner.Gate) (*models.RunSummary, error) {
	source, records, err := a.loadWorklist()
	if err != nil {
		return nil, err
	}

	log.Info().Str("worklist", source).Int("devices", len(records)).Msg("worklist loaded")
	report.RenderWorklist(out, records)

	prov := provisioner.New(log.Logger, disc, a.provisionerSettings())
	runnerSvc := runner.New(log.Logger, prov, gate, a.cfg.Telegram)

	summary, runErr := runnerSvc.Run(ctx, source, records)
	if summary != nil {
		fmt.Fprintln(out)
		report.RenderSummary(out, summary)
	}
	return summary, runErr
}
