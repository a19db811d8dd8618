package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/report"
	"github.com/fgeck/ciscoprov/internal/services/transport"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long:  `List the serial ports found on this machine and the ports autodetection would probe.`,
	RunE:  listPorts,
}

func listPorts(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ports, err := transport.DefaultLister{}.ListDetailed()
	if err != nil {
		log.Warn().Err(err).Msg("port enumeration failed")
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found; autodetection will probe:")
		for _, name := range a.discovery().CandidatePorts() {
			ports = append(ports, models.PortInfo{Name: name})
		}
	}

	report.RenderPorts(os.Stdout, ports)
	return nil
}
