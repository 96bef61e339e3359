package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/meetassist/internal/ingest"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
transport: jetstream
nats:
  url: nats://nats:4222
  partitions: 4
  ackWait: 2m
blob:
  backend: objectstore
worker:
  ackPolicy: ack-after-success
  concurrency: 8
reconcile:
  writesPerSecond: 20
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, TransportJetStream, cfg.Transport)
	assert.Equal(t, 4, cfg.NATS.Partitions)
	assert.Equal(t, 2*time.Minute, cfg.NATS.AckWait)
	assert.Equal(t, "MEETASSIST", cfg.NATS.Stream, "unset fields keep their defaults")
	assert.Equal(t, ingest.AckAfterSuccess, cfg.Worker.Ingest().Policy)
	assert.Equal(t, 8, cfg.Worker.Ingest().Concurrency)
	assert.InDelta(t, 20.0, cfg.Reconcile.Reconciler().WritesPerSecond, 0.001)

	js := cfg.NATS.JetStream()
	assert.Equal(t, "meetassist.post-process", js.SubjectPrefix)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meetassist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transprot: valkey\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("VALKEY_URL", "valkey.ns.svc:6379")
	t.Setenv("VALKEY_DB", "3")
	t.Setenv("VALKEY_TLS_ENABLED", "true")
	t.Setenv("MEETASSIST_ACK_POLICY", "ack-after-success")
	t.Setenv("MEETASSIST_WORKER_CONCURRENCY", "not-a-number")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "valkey.ns.svc:6379", cfg.Valkey.URL)
	assert.Equal(t, 3, cfg.Valkey.DB)
	assert.True(t, cfg.Valkey.TLSEnabled)
	assert.Equal(t, "ack-after-success", cfg.Worker.AckPolicy)
	assert.Equal(t, 4, cfg.Worker.Concurrency, "invalid values fall back")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown transport", func(c *Config) { c.Transport = "kafka" }, "unknown transport"},
		{"missing valkey url", func(c *Config) { c.Valkey.URL = "" }, "valkey.url"},
		{"ca without tls", func(c *Config) { c.Valkey.TLSCAFile = "/ca.pem" }, "tlsEnabled"},
		{"no partitions", func(c *Config) { c.Transport = TransportJetStream; c.NATS.Partitions = 0 }, "nats.partitions"},
		{"unknown blob backend", func(c *Config) { c.Blob.Backend = "s3" }, "unknown blob backend"},
		{"bad ack policy", func(c *Config) { c.Worker.AckPolicy = "never" }, "worker.ackPolicy"},
		{"relative optimizer url", func(c *Config) { c.Optimizer.BaseURL = "optimizer" }, "absolute URL"},
		{"optimizer without callback", func(c *Config) { c.Optimizer.BaseURL = "http://optimizer:8080" }, "callbackURL"},
		{"negative write rate", func(c *Config) { c.Reconcile.WritesPerSecond = -1 }, "writesPerSecond"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "logFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValkeyClientOption(t *testing.T) {
	v := Default().Valkey
	v.Password = "secret"
	v.DB = 2

	opt, err := v.ClientOption()
	require.NoError(t, err)
	assert.Equal(t, []string{"localhost:6379"}, opt.InitAddress)
	assert.Equal(t, 2, opt.SelectDB)
	assert.Nil(t, opt.TLSConfig)

	v.TLSEnabled = true
	opt, err = v.ClientOption()
	require.NoError(t, err)
	assert.NotNil(t, opt.TLSConfig)

	v.TLSCAFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = v.ClientOption()
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(bad, []byte("not a certificate"), 0o600))
	v.TLSCAFile = bad
	_, err = v.ClientOption()
	assert.Error(t, err)
}
