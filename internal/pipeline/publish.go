package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/wonny/aegis-committee/internal/contracts"
)

// Artifact file names inside runs/<date>/
const (
	FileSnapshot        = "snapshot.json"
	FileStances         = "stances.json"
	FileCommitteeResult = "committee_result.json"
	FileReport          = "report.json"
	FileMarkdown        = "report.md"
)

// ErrNoReport is returned when no published report exists for a date
var ErrNoReport = errors.New("report not found")

// Artifacts lists the files written for one run
type Artifacts struct {
	Dir      string `json:"dir"`
	Report   string `json:"report"`
	Markdown string `json:"markdown"`
}

// Publisher writes run artifacts under a runs directory
// ⭐ SSOT: S6 산출물 경로는 여기서만
type Publisher struct {
	runsDir string
}

// NewPublisher creates a publisher rooted at runsDir
func NewPublisher(runsDir string) *Publisher {
	if runsDir == "" {
		runsDir = "runs"
	}
	return &Publisher{runsDir: runsDir}
}

// RunsDir returns the root directory
func (p *Publisher) RunsDir() string {
	return p.runsDir
}

// Publish writes every artifact of a validated report. Existing files of the
// same date are replaced.
func (p *Publisher) Publish(r *contracts.Report) (Artifacts, error) {
	dir := filepath.Join(p.runsDir, r.MarketDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create run dir: %w", err)
	}

	parts := []struct {
		name  string
		value interface{}
	}{
		{FileSnapshot, r.Snapshot},
		{FileStances, r.Stances},
		{FileCommitteeResult, r.CommitteeResult},
	}
	for _, part := range parts {
		if err := writeJSON(filepath.Join(dir, part.name), part.value); err != nil {
			return Artifacts{}, err
		}
	}

	report, err := contracts.EncodeReport(r)
	if err != nil {
		return Artifacts{}, err
	}
	art := Artifacts{
		Dir:      dir,
		Report:   filepath.Join(dir, FileReport),
		Markdown: filepath.Join(dir, FileMarkdown),
	}
	if err := os.WriteFile(art.Report, report, 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", FileReport, err)
	}
	if err := os.WriteFile(art.Markdown, []byte(RenderMarkdown(r)), 0o644); err != nil {
		return Artifacts{}, fmt.Errorf("write %s: %w", FileMarkdown, err)
	}
	return art, nil
}

// Load reads the published report of date
func (p *Publisher) Load(date string) (*contracts.Report, error) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return LoadReport(filepath.Join(p.runsDir, date, FileReport))
}

// Latest reads the report of the newest dated run directory
func (p *Publisher) Latest() (*contracts.Report, error) {
	dates, err := p.Dates()
	if err != nil {
		return nil, err
	}
	for i := len(dates) - 1; i >= 0; i-- {
		r, err := p.Load(dates[i])
		if errors.Is(err, ErrNoReport) {
			continue
		}
		return r, err
	}
	return nil, ErrNoReport
}

// Dates lists run directories named YYYY-MM-DD, oldest first
func (p *Publisher) Dates() ([]string, error) {
	entries, err := os.ReadDir(p.runsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	var dates []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := time.Parse("2006-01-02", e.Name()); err == nil {
			dates = append(dates, e.Name())
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// LoadReport decodes a report file strictly (unknown fields are rejected)
func LoadReport(path string) (*contracts.Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return contracts.DecodeReport(bytes.NewReader(data))
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
