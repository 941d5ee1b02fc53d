package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/FerroO2000/pbuffer"
	"github.com/FerroO2000/pbuffer/session"
	"github.com/goccy/go-yaml"
)

// SessionFile is the session configuration loaded with the -f flag.
// Unset fields keep their default value.
type SessionFile struct {
	// Capacity is the capacity of the shared buffer.
	Capacity *int `yaml:"capacity" json:"capacity"`

	// Strategy is either "condvar" or "semaphore".
	Strategy string `yaml:"strategy" json:"strategy"`

	Producers *int `yaml:"producers" json:"producers"`
	Consumers *int `yaml:"consumers" json:"consumers"`

	// Items is the number of items inserted by each producer.
	Items *int `yaml:"items" json:"items"`

	// Mode is one of "blocking", "nonblocking" or "timed".
	Mode string `yaml:"mode" json:"mode"`

	// Timeout bounds every timed operation (e.g. "100ms").
	Timeout string `yaml:"timeout" json:"timeout"`

	// RetryDelay is the pause after a failed non-blocking operation (e.g. "1ms").
	RetryDelay string `yaml:"retry_delay" json:"retry_delay"`

	// Activity logs every buffer operation.
	Activity *bool `yaml:"activity" json:"activity"`
}

// loadSessionFile parses the file based on its extension.
func loadSessionFile(path string) (*SessionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return parseSessionFile(data, path)
}

func parseSessionFile(data []byte, filename string) (*SessionFile, error) {
	sf := &SessionFile{}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		if err := json.Unmarshal(data, sf); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, sf); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	return sf, nil
}

// apply copies the set fields of the file into the configuration.
func (sf *SessionFile) apply(cfg *session.Config) error {
	if sf.Capacity != nil {
		cfg.BufferCapacity = *sf.Capacity
	}

	if sf.Strategy != "" {
		strategy, err := pbuffer.ParseStrategy(sf.Strategy)
		if err != nil {
			return err
		}
		cfg.Strategy = strategy
	}

	if sf.Producers != nil {
		cfg.Producers = *sf.Producers
	}
	if sf.Consumers != nil {
		cfg.Consumers = *sf.Consumers
	}
	if sf.Items != nil {
		cfg.ItemsPerProducer = *sf.Items
	}

	if sf.Mode != "" {
		mode, err := session.ParseMode(sf.Mode)
		if err != nil {
			return err
		}
		cfg.Mode = mode
	}

	if sf.Timeout != "" {
		timeout, err := time.ParseDuration(sf.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		cfg.Timeout = timeout
	}

	if sf.RetryDelay != "" {
		delay, err := time.ParseDuration(sf.RetryDelay)
		if err != nil {
			return fmt.Errorf("invalid retry delay: %w", err)
		}
		cfg.RetryDelay = delay
	}

	if sf.Activity != nil {
		cfg.LogActivity = *sf.Activity
	}

	return nil
}

// reportOutput is the printed form of a session report.
type reportOutput struct {
	Strategy     string `yaml:"strategy" json:"strategy"`
	Mode         string `yaml:"mode" json:"mode"`
	Valid        bool   `yaml:"valid" json:"valid"`
	Produced     int64  `yaml:"produced" json:"produced"`
	Consumed     int64  `yaml:"consumed" json:"consumed"`
	Duplicates   int64  `yaml:"duplicates" json:"duplicates"`
	Missing      int64  `yaml:"missing" json:"missing"`
	Retries      int64  `yaml:"retries" json:"retries"`
	Timeouts     int64  `yaml:"timeouts" json:"timeouts"`
	MaxOccupancy int64  `yaml:"max_occupancy" json:"max_occupancy"`
	Duration     string `yaml:"duration" json:"duration"`
}

func newReportOutput(report *session.Report) *reportOutput {
	return &reportOutput{
		Strategy:     report.Strategy.String(),
		Mode:         report.Mode.String(),
		Valid:        report.Valid(),
		Produced:     report.Produced,
		Consumed:     report.Consumed,
		Duplicates:   report.Duplicates,
		Missing:      report.Missing,
		Retries:      report.Retries,
		Timeouts:     report.Timeouts,
		MaxOccupancy: report.MaxOccupancy,
		Duration:     report.Duration.String(),
	}
}

// printReport writes the report as YAML, or as indented JSON.
func printReport(w io.Writer, report *session.Report, asJSON bool) error {
	out := newReportOutput(report)

	var data []byte
	var err error
	if asJSON {
		data, err = json.MarshalIndent(out, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(out)
	}
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	_, err = w.Write(data)
	return err
}
