package uploader

import (
	"fmt"
	"time"

	"influxrelay/internal/config"
	"influxrelay/internal/lineproto"
	"influxrelay/internal/record"
	"influxrelay/internal/units"
)

// Selection chooses which observations of a record are uploaded.
type Selection string

const (
	// SelectAll uploads every observation in the record.
	SelectAll Selection = "all"
	// SelectMost uploads every observation except station housekeeping.
	SelectMost Selection = "most"
	// SelectNone uploads only the observations named in the inputs.
	SelectNone Selection = "none"
)

// Binding chooses which record origins are accepted.
type Binding string

const (
	BindLoop    Binding = "loop"
	BindArchive Binding = "archive"
	BindBoth    Binding = "both"
)

// Accepts reports whether records of the given origin are uploaded.
func (b Binding) Accepts(origin record.Origin) bool {
	switch b {
	case BindBoth:
		return true
	case BindLoop:
		return origin == record.OriginLoop
	default:
		return origin == record.OriginArchive
	}
}

// WorkerConfig defines the delivery policy and encoding of one worker
type WorkerConfig struct {
	PostInterval time.Duration
	// MaxBacklog is the largest number of waiting records. 0 means
	// unlimited; 1 keeps only the newest.
	MaxBacklog int
	Stale      time.Duration
	MaxTries   int
	RetryWait  time.Duration
	LogSuccess bool
	LogFailure bool

	Measurement string
	Tags        string
	TagBinding  bool
	LineFormat  lineproto.LineFormat

	Selection        Selection
	Inputs           map[string]lineproto.Override
	AppendUnitsLabel bool
	// UnitSystem converts each record before encoding when non-zero.
	UnitSystem    units.System
	AugmentRecord bool
	SkipUpload    bool
}

// BreakerConfig defines the configuration for the circuit breaker
type BreakerConfig struct {
	Name        string
	MaxFailures uint32
	Timeout     time.Duration
	MaxRequests uint32
	Interval    time.Duration
}

// NewWorkerConfig creates a WorkerConfig from the validated configuration
func NewWorkerConfig(cfg *config.Config) (WorkerConfig, error) {
	format, err := lineproto.ParseLineFormat(cfg.Influx.LineFormat)
	if err != nil {
		return WorkerConfig{}, err
	}

	var system units.System
	if cfg.Influx.UnitSystem != "" {
		system, err = units.ParseSystem(cfg.Influx.UnitSystem)
		if err != nil {
			return WorkerConfig{}, err
		}
	}

	selection := Selection(cfg.Influx.ObsToUpload)
	switch selection {
	case SelectAll, SelectMost, SelectNone:
	case "":
		selection = SelectAll
	default:
		return WorkerConfig{}, fmt.Errorf("unknown observation selection %q", cfg.Influx.ObsToUpload)
	}

	inputs := make(map[string]lineproto.Override, len(cfg.Influx.Inputs))
	for k, in := range cfg.Influx.Inputs {
		inputs[k] = lineproto.Override{Name: in.Name, Format: in.Format, Units: in.Units}
	}

	postInterval, stale, retryWait, _ := cfg.Upload.Durations()

	return WorkerConfig{
		PostInterval:     postInterval,
		MaxBacklog:       cfg.Upload.MaxBacklog,
		Stale:            stale,
		MaxTries:         cfg.Upload.MaxTries,
		RetryWait:        retryWait,
		LogSuccess:       cfg.Upload.LogSuccess,
		LogFailure:       cfg.Upload.LogFailure,
		Measurement:      cfg.Influx.Measurement,
		Tags:             cfg.Influx.Tags,
		TagBinding:       cfg.Influx.TagBinding,
		LineFormat:       format,
		Selection:        selection,
		Inputs:           inputs,
		AppendUnitsLabel: cfg.Influx.AppendUnitsLabel,
		UnitSystem:       system,
		AugmentRecord:    cfg.Influx.AugmentRecord,
		SkipUpload:       cfg.Influx.SkipUpload,
	}, nil
}

// NewBreakerConfig creates a BreakerConfig from the configuration
func NewBreakerConfig(name string, cfg config.BreakerConfig) BreakerConfig {
	timeout, interval := cfg.ToDuration()
	return BreakerConfig{
		Name:        name,
		MaxFailures: uint32(cfg.MaxFailures),
		Timeout:     timeout,
		MaxRequests: uint32(cfg.MaxRequests),
		Interval:    interval,
	}
}
