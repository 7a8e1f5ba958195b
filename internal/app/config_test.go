package app

import (
	"reflect"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GoogleClientID = "client"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with client id must be valid: %v", err)
	}
	if cfg.StorageDriver != StorageDriverMemory || cfg.RealtimeDriver != RealtimeDriverMemory {
		t.Fatalf("unexpected drivers: %s/%s", cfg.StorageDriver, cfg.RealtimeDriver)
	}
	if cfg.KafkaBrokers != "" {
		t.Fatal("kafka must be disabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := DefaultConfig()
	base.IdentityProvider = IdentityProviderDev

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "postgres without dsn", mutate: func(c *Config) { c.StorageDriver = StorageDriverPostgres }, want: "requires a DSN"},
		{name: "redis storage without addr", mutate: func(c *Config) { c.StorageDriver = StorageDriverRedis }, want: "redis storage requires"},
		{name: "redis realtime without addr", mutate: func(c *Config) { c.RealtimeDriver = RealtimeDriverRedis }, want: "realtime driver requires"},
		{name: "unknown storage", mutate: func(c *Config) { c.StorageDriver = "sqlite" }, want: "unsupported storage driver"},
		{name: "unknown realtime", mutate: func(c *Config) { c.RealtimeDriver = "nats" }, want: "unsupported realtime driver"},
		{name: "google without client", mutate: func(c *Config) { c.IdentityProvider = IdentityProviderGoogle }, want: "client id"},
		{name: "unknown provider", mutate: func(c *Config) { c.IdentityProvider = "github" }, want: "unsupported identity provider"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want containing %q", err, tc.want)
			}
		})
	}

	ok := base
	ok.StorageDriver = StorageDriverRedis
	ok.RealtimeDriver = RealtimeDriverRedis
	ok.RedisAddr = "localhost:6379"
	if err := ok.Validate(); err != nil {
		t.Fatalf("redis config: %v", err)
	}
}

func TestConfig_KafkaBrokers(t *testing.T) {
	cfg := Config{KafkaBrokers: " a:9092, ,b:9092 "}
	if got := cfg.kafkaBrokers(); !reflect.DeepEqual(got, []string{"a:9092", "b:9092"}) {
		t.Fatalf("kafkaBrokers = %v", got)
	}
	if got := (Config{}).kafkaBrokers(); got != nil {
		t.Fatalf("empty brokers = %v", got)
	}
}
