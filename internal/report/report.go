// Package report renders worklists and run results as text tables.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/fgeck/ciscoprov/internal/models"
	"github.com/fgeck/ciscoprov/internal/services/runner"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	return table
}

// RenderWorklist prints the devices about to be provisioned. Passwords are masked.
func RenderWorklist(w io.Writer, records []models.DeviceRecord) {
	table := newTable(w, []string{"#", "Port", "Hostname", "User", "Password", "Domain", "Serial", "Baud"})
	for i, r := range records {
		port := r.Port
		if r.IsAutoPort() {
			port = models.AutoPort
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			port,
			r.Hostname,
			r.Username,
			mask(r.Password),
			r.Domain,
			r.Serial,
			strconv.Itoa(r.Baud),
		})
	}
	table.SetFooter([]string{"", "", "", "", "", "", "devices", strconv.Itoa(len(records))})
	table.Render()
}

// RenderSummary prints one row per device and the configured/failed totals.
func RenderSummary(w io.Writer, summary *models.RunSummary) {
	table := newTable(w, []string{"Hostname", "Port", "Serial", "Result", "Prompt", "Time"})
	for _, o := range summary.Outcomes {
		result := "configured"
		if !o.Success() {
			result = runner.FailureText(o)
		}
		switch {
		case o.SSHVerified == nil:
		case *o.SSHVerified:
			result += " (ssh ok)"
		default:
			result += " (ssh failed)"
		}

		serial := o.DetectedSerial
		if serial == "" {
			serial = "N/A"
		}
		prompt := "-"
		if o.ConfirmedHostname != "" {
			prompt = o.ConfirmedHostname + "#"
		}

		table.Append([]string{o.Hostname, o.Port, serial, result, prompt, o.Duration.Round(time.Second).String()})
	}
	table.SetFooter([]string{"", "", "", "", "started", summary.StartTime.Format(time.RFC822)})
	table.Render()

	succeeded := summary.Succeeded()
	failed := make([]string, 0, len(summary.Failed()))
	for _, o := range summary.Failed() {
		failed = append(failed, o.Hostname)
	}
	fmt.Fprintf(w, "Configured (%d): %s\n", len(succeeded), strings.Join(succeeded, ", "))
	fmt.Fprintf(w, "Failed (%d): %s\n", len(failed), strings.Join(failed, ", "))
}

// RenderPorts prints the serial ports found on this machine.
func RenderPorts(w io.Writer, ports []models.PortInfo) {
	table := newTable(w, []string{"Port", "USB", "VID:PID", "Serial", "Product"})
	for _, p := range ports {
		usb, ids := "no", ""
		if p.IsUSB {
			usb = "yes"
			ids = p.VendorID + ":" + p.ProductID
		}
		table.Append([]string{p.Name, usb, ids, p.SerialNumber, p.Product})
	}
	table.Render()
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
