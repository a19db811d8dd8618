// Package worklist loads the device worklist from CSV.
package worklist

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	"github.com/fgeck/ciscoprov/internal/models"
)

// PreferredFile is picked over any other CSV in the worklist directory.
const PreferredFile = "Data.csv"

// RequiredColumns must all be present in the header row.
var RequiredColumns = []string{"Serie", "Port", "Device", "User", "Password", "Ip-domain"}

// ErrNoWorklist is returned when a directory holds no CSV file.
var ErrNoWorklist = errors.New("no .csv file found")

// MissingColumnsError lists the required columns a worklist lacks.
type MissingColumnsError struct {
	Missing []string
	Present []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("worklist is missing required columns %v (present: %v)", e.Missing, e.Present)
}

// row mirrors the CSV columns. Baud stays a string so bad values fall back to the default.
type row struct {
	Serial   string `csv:"Serie"`
	Port     string `csv:"Port"`
	Device   string `csv:"Device"`
	User     string `csv:"User"`
	Password string `csv:"Password"`
	Domain   string `csv:"Ip-domain"`
	Baud     string `csv:"Baud"`
	MgmtIP   string `csv:"Mgmt-IP"`
}

// Service defines the interface for worklist operations.
type Service interface {
	Locate(dir string) (string, error)
	Load(path string) ([]models.DeviceRecord, error)
	LoadReader(r io.Reader) ([]models.DeviceRecord, error)
}

// Impl implements the worklist Service interface.
type Impl struct {
	policy      models.UsernamePolicy
	defaultBaud int
	logger      zerolog.Logger
}

// New creates a new worklist service.
func New(logger zerolog.Logger, policy models.UsernamePolicy, defaultBaud int) *Impl {
	return &Impl{
		policy:      policy,
		defaultBaud: defaultBaud,
		logger:      logger,
	}
}

// Locate returns Data.csv in dir if present, else the first *.csv by name.
func (s *Impl) Locate(dir string) (string, error) {
	preferred := filepath.Join(dir, PreferredFile)
	if info, err := os.Stat(preferred); err == nil && !info.IsDir() {
		s.logger.Debug().Str("path", preferred).Msg("using preferred worklist")
		return preferred, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return "", fmt.Errorf("failed to search %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoWorklist, dir)
	}
	sort.Strings(matches)

	s.logger.Debug().Strs("candidates", matches).Str("path", matches[0]).Msg("using first worklist found")
	return matches[0], nil
}

// Load reads the worklist at path.
func (s *Impl) Load(path string) ([]models.DeviceRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open worklist: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := s.LoadReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s.logger.Info().Str("path", path).Int("devices", len(records)).Msg("worklist loaded")
	return records, nil
}

// LoadReader parses a worklist, validating the header before decoding any row.
func (s *Impl) LoadReader(r io.Reader) ([]models.DeviceRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read worklist: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	lines, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse worklist: %w", err)
	}
	if len(lines) == 0 {
		return nil, &MissingColumnsError{Missing: RequiredColumns}
	}

	header := lines[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if err := checkColumns(header); err != nil {
		return nil, err
	}

	var rows []row
	if err := gocsv.UnmarshalCSV(&sliceReader{lines: dropBlank(lines)}, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode worklist: %w", err)
	}

	records := make([]models.DeviceRecord, 0, len(rows))
	for _, rw := range rows {
		records = append(records, s.normalise(rw))
	}
	return records, nil
}

func (s *Impl) normalise(rw row) models.DeviceRecord {
	hostname := strings.TrimSpace(rw.Device)

	baud := s.defaultBaud
	if b, err := strconv.Atoi(strings.TrimSpace(rw.Baud)); err == nil && b > 0 {
		baud = b
	}

	return models.DeviceRecord{
		Port:     strings.TrimSpace(rw.Port),
		Hostname: hostname,
		Username: DeriveUsername(hostname, strings.TrimSpace(rw.User), s.policy),
		Password: strings.TrimSpace(rw.Password),
		Domain:   strings.TrimSpace(rw.Domain),
		Serial:   strings.TrimSpace(rw.Serial),
		Baud:     baud,
		MgmtIP:   strings.TrimSpace(rw.MgmtIP),
	}
}

// DeriveUsername returns the hostname when the policy syncs it, else user.
func DeriveUsername(hostname, user string, policy models.UsernamePolicy) string {
	if policy.SyncWithHostname && strings.HasPrefix(hostname, policy.RequiredPrefix) {
		return hostname
	}
	return user
}

func checkColumns(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}

	var missing []string
	for _, c := range RequiredColumns {
		if !present[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	sorted := append([]string(nil), header...)
	sort.Strings(sorted)
	return &MissingColumnsError{Missing: missing, Present: sorted}
}

func dropBlank(lines [][]string) [][]string {
	out := lines[:1]
	for _, l := range lines[1:] {
		if strings.TrimSpace(strings.Join(l, "")) != "" {
			out = append(out, l)
		}
	}
	return out
}

// sliceReader feeds already-split CSV lines to gocsv.
type sliceReader struct {
	lines [][]string
	pos   int
}

func (r *sliceReader) Read() ([]string, error) {
	if r.pos >= len(r.lines) {
		return nil, io.EOF
	}
	l := r.lines[r.pos]
	r.pos++
	return l, nil
}

func (r *sliceReader) ReadAll() ([][]string, error) {
	rest := r.lines[r.pos:]
	r.pos = len(r.lines)
	return rest, nil
}
