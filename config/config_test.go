package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kylelemons/godebug/pretty"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	want := &Config{
		Board: BoardConfig{
			Symbols:     []string{"AAPL", "GOOGL", "MSFT", "TSLA"},
			Period:      2 * time.Second,
			NarrowWidth: 600,
		},
		HTTP:  HTTPConfig{Addr: ":6024"},
		Kafka: KafkaConfig{Brokers: []string{}, Topic: "stock_ticks"},
	}
	if diff := pretty.Compare(want, cfg); diff != "" {
		t.Errorf("TestDefaults: -want/+got:\n%s", diff)
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("BOARD_SYMBOLS", "IBM, ORCL")
	t.Setenv("BOARD_PERIOD", "500ms")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	if diff := pretty.Compare([]string{"IBM", "ORCL"}, cfg.Board.Symbols); diff != "" {
		t.Errorf("TestEnv(symbols): -want/+got:\n%s", diff)
	}
	if cfg.Board.Period != 500*time.Millisecond {
		t.Errorf("TestEnv: period = %v, want 500ms", cfg.Board.Period)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("TestEnv: redis = %+v", cfg.Redis)
	}
	if diff := pretty.Compare([]string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers); diff != "" {
		t.Errorf("TestEnv(brokers): -want/+got:\n%s", diff)
	}
}

func TestFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "board.yaml")
	content := `
board:
  symbols: [NVDA]
  narrow_width: 480
http:
  addr: ":8080"
`
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	// The environment wins over the file.
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Compare([]string{"NVDA"}, cfg.Board.Symbols); diff != "" {
		t.Errorf("TestFile(symbols): -want/+got:\n%s", diff)
	}
	if cfg.Board.NarrowWidth != 480 {
		t.Errorf("TestFile: narrow width = %d, want 480", cfg.Board.NarrowWidth)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Errorf("TestFile: http addr = %s, want :9090", cfg.HTTP.Addr)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("TestFile(missing): got err == nil, want err != nil")
	}
}

func TestValidate(t *testing.T) {
	good := func() Config {
		return Config{
			Board: BoardConfig{Symbols: []string{"AAPL"}, Period: time.Second, NarrowWidth: 600},
			Kafka: KafkaConfig{Topic: "stock_ticks"},
		}
	}

	tests := []struct {
		desc    string
		mod     func(c *Config)
		wantErr bool
	}{
		{desc: "success", mod: func(c *Config) {}},
		{desc: "no symbols", mod: func(c *Config) { c.Board.Symbols = nil }, wantErr: true},
		{desc: "zero period", mod: func(c *Config) { c.Board.Period = 0 }, wantErr: true},
		{desc: "negative width", mod: func(c *Config) { c.Board.NarrowWidth = -1 }, wantErr: true},
		{
			desc:    "brokers without topic",
			mod:     func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" },
			wantErr: true,
		},
	}

	for _, test := range tests {
		c := good()
		test.mod(&c)
		err := c.Validate()
		switch {
		case err == nil && test.wantErr:
			t.Errorf("TestValidate(%s): got err == nil, want err != nil", test.desc)
		case err != nil && !test.wantErr:
			t.Errorf("TestValidate(%s): got err == %s, want err == nil", test.desc, err)
		}
	}
}
