package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbl8/rowlife/kernels"
	"github.com/sbl8/rowlife/logging"
	"github.com/sbl8/rowlife/model"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// sized returns Default with the dimensions every run must supply.
func sized() Config {
	cfg := Default()
	cfg.Columns, cfg.Iterations, cfg.Participants = 64, 1, 16
	return cfg
}

func TestDefaultRequiresDimensions(t *testing.T) {
	t.Parallel()
	err := Default().Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "Columns")
	assert.Contains(t, err.Error(), "Iterations")
	assert.Contains(t, err.Error(), "Participants")

	require.NoError(t, sized().Validate())
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Parse([]byte(`
columns: 8
iterations: 3
participants: 2
rule: B36/S23
lattice: /tmp/lattice
transport:
  kind: websocket
  rank: 1
  peers: ["127.0.0.1:7001", "127.0.0.1:7002"]
  dial_timeout: 5s
log:
  level: debug
  json: true
telemetry:
  trace_exporter: stdout
status:
  addr: ":9100"
output:
  format: grid
  color: never
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Columns)
	assert.Equal(t, 3, cfg.Iterations)
	assert.Equal(t, TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, 5*time.Second, cfg.Transport.DialTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Transport.DialInterval, "unset keys keep defaults")
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
	assert.Equal(t, "none", cfg.Telemetry.MetricExporter)

	rule, err := cfg.RuleValue()
	require.NoError(t, err)
	assert.Equal(t, kernels.Catalog["highlife"], rule)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := Parse([]byte("colums: 8\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero columns", func(c *Config) { c.Columns = 0 }, "Columns must be greater than 0"},
		{"zero iterations", func(c *Config) { c.Iterations = 0 }, "Iterations"},
		{"negative participants", func(c *Config) { c.Participants = -1 }, "Participants"},
		{"bad rule", func(c *Config) { c.Rule = "B9" }, "Rule"},
		{"bad transport", func(c *Config) { c.Transport.Kind = "mpi" }, "Transport.Kind"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "Log.Level"},
		{"bad format", func(c *Config) { c.Output.Format = "json" }, "Output.Format"},
		{"bad status addr", func(c *Config) { c.Status.Addr = "nowhere" }, "Status.Addr"},
		{"otlp without endpoint", func(c *Config) {
			c.Telemetry.TraceExporter = "otlp"
			c.Telemetry.OTLPEndpoint = ""
		}, "OTLPEndpoint"},
		{"peer count", func(c *Config) {
			c.Transport.Kind = TransportWebSocket
			c.Participants = 3
			c.Transport.Peers = []string{"127.0.0.1:1", "127.0.0.1:2"}
		}, "one peer per participant"},
		{"rank range", func(c *Config) {
			c.Transport.Kind = TransportWebSocket
			c.Participants = 2
			c.Transport.Rank = 2
			c.Transport.Peers = []string{"127.0.0.1:1", "127.0.0.1:2"}
		}, "rank 2"},
		{"bad peer", func(c *Config) {
			c.Transport.Kind = TransportWebSocket
			c.Participants = 1
			c.Transport.Peers = []string{"localhost"}
		}, "Transport.Peers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := sized()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		EnvColumns:      "32",
		EnvIterations:   "7",
		EnvParticipants: "3",
		EnvRule:         "seeds",
		EnvLattice:      "grid.txt",
		EnvRank:         "2",
		EnvPeers:        "a:1, b:2 ,c:3,",
		EnvLogLevel:     "WARN",
	}))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Columns)
	assert.Equal(t, 7, cfg.Iterations)
	assert.Equal(t, 3, cfg.Participants)
	assert.Equal(t, "seeds", cfg.Rule)
	assert.Equal(t, "grid.txt", cfg.Lattice)
	assert.Equal(t, 2, cfg.Transport.Rank)
	assert.Equal(t, []string{"a:1", "b:2", "c:3"}, cfg.Transport.Peers)
	assert.Equal(t, TransportWebSocket, cfg.Transport.Kind)
	assert.Equal(t, "warn", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvRejectsNonInteger(t *testing.T) {
	t.Parallel()
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{EnvColumns: "wide"}))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "rowlife.yaml")
	require.NoError(t, os.WriteFile(path, []byte("columns: 5\nparticipants: 4\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Participants)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParams(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Participants, cfg.Columns, cfg.Iterations = 5, 9, 2
	p := cfg.Params(3)
	assert.Equal(t, 3, p.ID)
	assert.Equal(t, 5, p.Size)
	assert.Equal(t, 9, p.Columns)
	assert.Equal(t, 2, p.Iterations)
	require.NoError(t, p.Validate())
}

func TestSupplier(t *testing.T) {
	t.Parallel()
	cfg := Default()
	s, closer, err := cfg.Supplier()
	require.NoError(t, err)
	defer closer.Close()
	row, err := s.Row(0, 4)
	require.NoError(t, err)
	assert.Equal(t, "0000", row.String())

	path := filepath.Join(t.TempDir(), "lattice")
	require.NoError(t, os.WriteFile(path, []byte("01\n10\n"), 0o644))
	cfg.Lattice = path
	s, closer, err = cfg.Supplier()
	require.NoError(t, err)
	defer closer.Close()
	row, err = s.Row(1, 2)
	require.NoError(t, err)
	assert.Equal(t, "10", row.String())

	cfg.Lattice = filepath.Join(t.TempDir(), "missing")
	_, _, err = cfg.Supplier()
	assert.Error(t, err)
}

func TestLogging(t *testing.T) {
	t.Parallel()
	cfg := Default()
	cfg.Log.Level = "debug"
	cfg.Log.JSON = true
	lc, err := cfg.Logging("rowrun")
	require.NoError(t, err)
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, "rowrun", lc.Service)
	assert.True(t, lc.JSON)
}

func TestConsumerSelection(t *testing.T) {
	t.Parallel()
	cfg := Default()
	var buf bytes.Buffer
	assert.IsType(t, &model.TextConsumer{}, cfg.Consumer(&buf))

	cfg.Output.Format = "grid"
	assert.IsType(t, &model.GridConsumer{}, cfg.Consumer(&buf))

	assert.False(t, cfg.UseColor(&buf), "buffers are never terminals")
	cfg.Output.Color = "always"
	assert.True(t, cfg.UseColor(&buf))
	cfg.Output.Color = "never"
	assert.False(t, cfg.UseColor(os.Stdout))
}
