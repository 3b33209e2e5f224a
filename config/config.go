// Package config holds the run configuration.
//
// Values are layered, lowest precedence first: Default, a YAML file,
// ROWLIFE_* environment variables, then command-line flags applied by the
// commands. Validate must pass before a run starts; every configuration
// error is reported before any participant exchanges a row.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/sbl8/rowlife/core"
	"github.com/sbl8/rowlife/kernels"
	"github.com/sbl8/rowlife/logging"
	"github.com/sbl8/rowlife/model"
	"github.com/sbl8/rowlife/telemetry"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Transport kinds.
const (
	TransportMesh      = "mesh"
	TransportWebSocket = "websocket"
)

// Config is the complete configuration of one rowrun process.
type Config struct {
	Columns      int    `yaml:"columns" validate:"gt=0"`
	Iterations   int    `yaml:"iterations" validate:"gt=0"`
	Participants int    `yaml:"participants" validate:"gt=0"`
	Rule         string `yaml:"rule" validate:"required,rule"`
	Lattice      string `yaml:"lattice"`

	Transport TransportConfig  `yaml:"transport"`
	Log       LogConfig        `yaml:"log"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Status    StatusConfig     `yaml:"status"`
	Output    OutputConfig     `yaml:"output"`
}

// TransportConfig selects how participants reach each other.
type TransportConfig struct {
	Kind         string        `yaml:"kind" validate:"oneof=mesh websocket"`
	Rank         int           `yaml:"rank" validate:"gte=0"`
	Peers        []string      `yaml:"peers" validate:"dive,hostname_port"`
	DialTimeout  time.Duration `yaml:"dial_timeout" validate:"gt=0"`
	DialInterval time.Duration `yaml:"dial_interval" validate:"gt=0"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	File  string `yaml:"file"`
}

// StatusConfig configures the HTTP status server. An empty Addr disables it.
type StatusConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// OutputConfig controls how final rows are printed.
type OutputConfig struct {
	Format string `yaml:"format" validate:"oneof=text grid"`
	Color  string `yaml:"color" validate:"oneof=auto always never"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("rule", validateRule)
}

func validateRule(fl validator.FieldLevel) bool {
	_, err := kernels.Lookup(fl.Field().String())
	return err == nil
}

// Default returns a single-process Conway run with no lattice file.
// Columns, Iterations and Participants are left zero: a run must state
// them, and Validate rejects them while missing.
func Default() Config {
	return Config{
		Rule: "life",
		Transport: TransportConfig{
			Kind:         TransportMesh,
			DialTimeout:  30 * time.Second,
			DialInterval: 200 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
		Telemetry: telemetry.Config{
			ServiceName:    "rowlife",
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  "auto",
		},
	}
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and the process environment. The result is not yet
// validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read the config file: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse overlays YAML data onto Default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	err := cfg.decode(data)
	return cfg, err
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Environment variables read by ApplyEnv.
const (
	EnvColumns      = "ROWLIFE_COLUMNS"
	EnvIterations   = "ROWLIFE_ITERATIONS"
	EnvParticipants = "ROWLIFE_PARTICIPANTS"
	EnvRule         = "ROWLIFE_RULE"
	EnvLattice      = "ROWLIFE_LATTICE"
	EnvRank         = "ROWLIFE_RANK"
	EnvPeers        = "ROWLIFE_PEERS"
	EnvLogLevel     = "ROWLIFE_LOG_LEVEL"
)

// ApplyEnv overlays variables found by lookup. ROWLIFE_PEERS is a comma
// separated list and implies the websocket transport.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{EnvColumns, &c.Columns},
		{EnvIterations, &c.Iterations},
		{EnvParticipants, &c.Participants},
		{EnvRank, &c.Transport.Rank},
	}
	for _, v := range ints {
		s, ok := lookup(v.key)
		if !ok || s == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, v.key, s)
		}
		*v.dst = n
	}

	if s, ok := lookup(EnvRule); ok && s != "" {
		c.Rule = s
	}
	if s, ok := lookup(EnvLattice); ok {
		c.Lattice = s
	}
	if s, ok := lookup(EnvLogLevel); ok && s != "" {
		c.Log.Level = strings.ToLower(s)
	}
	if s, ok := lookup(EnvPeers); ok && s != "" {
		c.Transport.Peers = SplitPeers(s)
		c.Transport.Kind = TransportWebSocket
	}
	return nil
}

// SplitPeers splits a comma separated address list, dropping blanks.
func SplitPeers(s string) []string {
	var peers []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			peers = append(peers, p)
		}
	}
	return peers
}

// Validate checks field constraints and the cross-field rules of the
// websocket transport.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = describe(fe)
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Transport.Kind == TransportWebSocket {
		if len(c.Transport.Peers) != c.Participants {
			return fmt.Errorf("%w: websocket transport needs one peer per participant, have %d peers for %d participants",
				ErrInvalidConfig, len(c.Transport.Peers), c.Participants)
		}
		if c.Transport.Rank >= c.Participants {
			return fmt.Errorf("%w: rank %d outside %d participants", ErrInvalidConfig, c.Transport.Rank, c.Participants)
		}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "rule":
		return fmt.Sprintf("%s %q is neither a known rule nor B/S notation", field, fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s %q is not a host:port address", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

// RuleValue resolves Rule.
func (c Config) RuleValue() (kernels.Rule, error) {
	r, err := kernels.Lookup(c.Rule)
	if err != nil {
		return kernels.Rule{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return r, nil
}

// Params returns the run parameters of participant rank.
func (c Config) Params(rank int) core.Params {
	return core.Params{
		Topology:   core.Topology{ID: rank, Size: c.Participants},
		Columns:    c.Columns,
		Iterations: c.Iterations,
	}
}

// Supplier returns the initial-state source: the lattice file when one is
// configured, otherwise all dead. Close the returned closer when done.
func (c Config) Supplier() (model.Supplier, io.Closer, error) {
	if c.Lattice == "" {
		return model.DeadSupplier, io.NopCloser(nil), nil
	}
	s, err := model.OpenFileSupplier(c.Lattice)
	if err != nil {
		return nil, nil, err
	}
	return s, s, nil
}

// Logging converts the log section for logging.New.
func (c Config) Logging(service string) (logging.Config, error) {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return logging.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return logging.Config{
		Level:   level,
		Service: service,
		JSON:    c.Log.JSON,
		File:    c.Log.File,
	}, nil
}

// UseColor resolves Output.Color for w.
func (c Config) UseColor(w io.Writer) bool {
	switch c.Output.Color {
	case "always":
		return true
	case "never":
		return false
	default:
		return model.IsTerminal(w)
	}
}

// Consumer builds the configured output consumer on w.
func (c Config) Consumer(w io.Writer) model.Consumer {
	if c.Output.Format == "grid" {
		return model.NewGridConsumer(w, c.UseColor(w))
	}
	return model.NewTextConsumer(w)
}
