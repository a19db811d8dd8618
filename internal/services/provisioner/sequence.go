package provisioner

import (
	"fmt"
	"strings"
	"time"

	"github.com/fgeck/ciscoprov/internal/models"
)

// Step is one configuration command and the time the device needs to process it.
type Step struct {
	Command string
	Settle  time.Duration
}

// DefaultRSAModulus is used when no modulus is configured.
const DefaultRSAModulus = 1024

const ms = time.Millisecond

// ConfigSequence returns the bootstrap configuration for rec, in the order it must be sent.
// SSH is only set up when a domain is given, since IOS derives the key name from it.
func ConfigSequence(rec models.DeviceRecord, rsaModulus int) []Step {
	if rsaModulus <= 0 {
		rsaModulus = DefaultRSAModulus
	}

	steps := []Step{
		{"terminal length 0", 300 * ms},
		{"configure terminal", 500 * ms},
		{"hostname " + rec.Hostname, 500 * ms},
	}

	if rec.Username != "" && rec.Password != "" {
		steps = append(steps, Step{
			fmt.Sprintf("username %s privilege 15 secret %s", rec.Username, rec.Password), 600 * ms,
		})
	}
	if rec.Domain != "" {
		steps = append(steps, Step{"ip domain-name " + rec.Domain, 400 * ms})
	}

	steps = append(steps,
		Step{"no ip domain-lookup", 200 * ms},
		Step{"service password-encryption", 200 * ms},
	)

	if rec.Domain != "" {
		steps = append(steps,
			Step{fmt.Sprintf("crypto key generate rsa modulus %d", rsaModulus), 3200 * ms},
			Step{"line vty 0 4", 300 * ms},
			Step{"login local", 200 * ms},
			Step{"transport input ssh", 200 * ms},
			Step{"transport output ssh", 200 * ms},
			Step{"exit", 200 * ms},
			Step{"ip ssh version 2", 300 * ms},
		)
	}

	return append(steps,
		Step{"end", 300 * ms},
		Step{"write memory", 1500 * ms},
	)
}

// SerialMatches compares serial numbers ignoring surrounding space and case.
// An empty detected serial never matches.
func SerialMatches(detected, expected string) bool {
	d := strings.TrimSpace(detected)
	return d != "" && strings.EqualFold(d, strings.TrimSpace(expected))
}

// redact hides the secret in a username command for logs and outcome details.
func redact(command string) string {
	if i := strings.Index(command, " secret "); i >= 0 && strings.HasPrefix(command, "username ") {
		return command[:i] + " secret ****"
	}
	return command
}
