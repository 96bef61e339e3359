package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teemow/meetassist/internal/ingest"
)

// Transport names.
const (
	TransportValkey    = "valkey"
	TransportJetStream = "jetstream"
	TransportMemory    = "memory"
)

// Blob backend names.
const (
	BlobValkey      = "valkey"
	BlobObjectStore = "objectstore"
	BlobMemory      = "memory"
)

// Config is the complete configuration.
type Config struct {
	LogFormat   string          `yaml:"logFormat"`
	Debug       bool            `yaml:"debug"`
	Transport   string          `yaml:"transport"`
	Valkey      ValkeyConfig    `yaml:"valkey"`
	NATS        NATSConfig      `yaml:"nats"`
	Blob        BlobConfig      `yaml:"blob"`
	Calendar    StoreConfig     `yaml:"calendar"`
	DeadLetters StoreConfig     `yaml:"deadLetters"`
	Optimizer   OptimizerConfig `yaml:"optimizer"`
	Worker      WorkerConfig    `yaml:"worker"`
	Reconcile   ReconcileConfig `yaml:"reconcile"`
	HTTP        HTTPConfig      `yaml:"http"`
}

// ValkeyConfig holds the Valkey connection and queue settings.
type ValkeyConfig struct {
	// URL is the server address, e.g. "valkey.namespace.svc:6379".
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	TLSEnabled bool   `yaml:"tlsEnabled"`
	// TLSCAFile is a PEM bundle for servers signed by a private CA.
	TLSCAFile string `yaml:"tlsCAFile"`
	KeyPrefix string `yaml:"keyPrefix"`
	DB        int    `yaml:"db"`

	// QueueKey is the list notifications are pushed to.
	QueueKey string `yaml:"queueKey"`
	// Reliable moves received messages to a processing list until acked.
	Reliable     bool          `yaml:"reliable"`
	BlockTimeout time.Duration `yaml:"blockTimeout"`
}

// NATSConfig holds the JetStream settings.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Stream        string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subjectPrefix"`
	Partitions    int           `yaml:"partitions"`
	Durable       string        `yaml:"durable"`
	AckWait       time.Duration `yaml:"ackWait"`
	MaxDeliver    int           `yaml:"maxDeliver"`
	// ObjectBucket is the object store bucket for the objectstore blob backend.
	ObjectBucket string `yaml:"objectBucket"`
}

// BlobConfig selects where planning payloads live.
type BlobConfig struct {
	Backend  string `yaml:"backend"`
	Compress bool   `yaml:"compress"`
}

// StoreConfig points at a SQLite database.
type StoreConfig struct {
	SQLitePath string `yaml:"sqlitePath"`
}

// OptimizerConfig configures the external optimizer client.
type OptimizerConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	Timeout     time.Duration `yaml:"timeout"`
	CallbackURL string        `yaml:"callbackURL"`
	Delay       time.Duration `yaml:"delay"`
}

// WorkerConfig tunes the ingest worker.
type WorkerConfig struct {
	AckPolicy   string `yaml:"ackPolicy"`
	Concurrency int    `yaml:"concurrency"`
	BatchSize   int    `yaml:"batchSize"`
}

// ReconcileConfig tunes the reconciler.
type ReconcileConfig struct {
	Concurrency     int     `yaml:"concurrency"`
	WritesPerSecond float64 `yaml:"writesPerSecond"`
	Burst           int     `yaml:"burst"`
}

// HTTPConfig configures the HTTP listeners.
type HTTPConfig struct {
	Addr           string `yaml:"addr"`
	MetricsEnabled bool   `yaml:"metricsEnabled"`
	MetricsAddr    string `yaml:"metricsAddr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		LogFormat: "text",
		Transport: TransportValkey,
		Valkey: ValkeyConfig{
			URL:          "localhost:6379",
			KeyPrefix:    "meetassist:",
			QueueKey:     "meetassist:post-process",
			BlockTimeout: 5 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			Stream:        "MEETASSIST",
			SubjectPrefix: "meetassist.post-process",
			Partitions:    1,
			Durable:       "meetassist-worker",
			AckWait:       60 * time.Second,
			MaxDeliver:    5,
			ObjectBucket:  "meetassist-results",
		},
		Blob:        BlobConfig{Backend: BlobValkey, Compress: true},
		Calendar:    StoreConfig{SQLitePath: "meetassist.db"},
		DeadLetters: StoreConfig{SQLitePath: "meetassist-deadletters.db"},
		Optimizer:   OptimizerConfig{Timeout: 30 * time.Second},
		Worker:      WorkerConfig{AckPolicy: string(ingest.AckBeforeProcess), Concurrency: 4, BatchSize: 10},
		Reconcile:   ReconcileConfig{Concurrency: 4, Burst: 1},
		HTTP:        HTTPConfig{Addr: ":8080", MetricsEnabled: true, MetricsAddr: ":9090"},
	}
}

// Load returns the defaults overlaid with the YAML file at path (if not
// empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(bytes.NewReader(data), &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv() {
	c.LogFormat = getEnvOrDefault("MEETASSIST_LOG_FORMAT", c.LogFormat)
	c.Debug = getEnvBoolOrDefault("MEETASSIST_DEBUG", c.Debug)
	c.Transport = getEnvOrDefault("MEETASSIST_TRANSPORT", c.Transport)

	c.Valkey.URL = getEnvOrDefault("VALKEY_URL", c.Valkey.URL)
	c.Valkey.Password = getEnvOrDefault("VALKEY_PASSWORD", c.Valkey.Password)
	c.Valkey.TLSEnabled = getEnvBoolOrDefault("VALKEY_TLS_ENABLED", c.Valkey.TLSEnabled)
	c.Valkey.TLSCAFile = getEnvOrDefault("VALKEY_TLS_CA_FILE", c.Valkey.TLSCAFile)
	c.Valkey.KeyPrefix = getEnvOrDefault("VALKEY_KEY_PREFIX", c.Valkey.KeyPrefix)
	c.Valkey.DB = getEnvIntOrDefault("VALKEY_DB", c.Valkey.DB)
	c.Valkey.QueueKey = getEnvOrDefault("MEETASSIST_QUEUE_KEY", c.Valkey.QueueKey)
	c.Valkey.Reliable = getEnvBoolOrDefault("MEETASSIST_QUEUE_RELIABLE", c.Valkey.Reliable)

	c.NATS.URL = getEnvOrDefault("NATS_URL", c.NATS.URL)
	c.NATS.Stream = getEnvOrDefault("MEETASSIST_NATS_STREAM", c.NATS.Stream)
	c.NATS.Partitions = getEnvIntOrDefault("MEETASSIST_NATS_PARTITIONS", c.NATS.Partitions)
	c.NATS.Durable = getEnvOrDefault("MEETASSIST_NATS_DURABLE", c.NATS.Durable)
	c.NATS.ObjectBucket = getEnvOrDefault("MEETASSIST_NATS_OBJECT_BUCKET", c.NATS.ObjectBucket)

	c.Blob.Backend = getEnvOrDefault("MEETASSIST_BLOB_BACKEND", c.Blob.Backend)
	c.Blob.Compress = getEnvBoolOrDefault("MEETASSIST_BLOB_COMPRESS", c.Blob.Compress)
	c.Calendar.SQLitePath = getEnvOrDefault("MEETASSIST_CALENDAR_DB", c.Calendar.SQLitePath)
	c.DeadLetters.SQLitePath = getEnvOrDefault("MEETASSIST_DEADLETTER_DB", c.DeadLetters.SQLitePath)

	c.Optimizer.BaseURL = getEnvOrDefault("MEETASSIST_OPTIMIZER_URL", c.Optimizer.BaseURL)
	c.Optimizer.Username = getEnvOrDefault("MEETASSIST_OPTIMIZER_USERNAME", c.Optimizer.Username)
	c.Optimizer.Password = getEnvOrDefault("MEETASSIST_OPTIMIZER_PASSWORD", c.Optimizer.Password)
	c.Optimizer.CallbackURL = getEnvOrDefault("MEETASSIST_CALLBACK_URL", c.Optimizer.CallbackURL)

	c.Worker.AckPolicy = getEnvOrDefault("MEETASSIST_ACK_POLICY", c.Worker.AckPolicy)
	c.Worker.Concurrency = getEnvIntOrDefault("MEETASSIST_WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Reconcile.WritesPerSecond = getEnvFloatOrDefault("MEETASSIST_WRITES_PER_SECOND", c.Reconcile.WritesPerSecond)

	c.HTTP.Addr = getEnvOrDefault("MEETASSIST_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.MetricsEnabled = getEnvBoolOrDefault("METRICS_ENABLED", c.HTTP.MetricsEnabled)
	c.HTTP.MetricsAddr = getEnvOrDefault("METRICS_ADDR", c.HTTP.MetricsAddr)
}

// Validate checks every section.
func (c Config) Validate() error {
	var errs []error
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("logFormat must be text or json, got %q", c.LogFormat))
	}
	switch c.Transport {
	case TransportValkey:
		errs = append(errs, c.Valkey.Validate())
	case TransportJetStream:
		errs = append(errs, c.NATS.Validate())
	case TransportMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport))
	}
	switch c.Blob.Backend {
	case BlobValkey:
		if c.Transport != TransportValkey {
			errs = append(errs, c.Valkey.Validate())
		}
	case BlobObjectStore:
		if c.NATS.ObjectBucket == "" {
			errs = append(errs, errors.New("nats.objectBucket is required for the objectstore blob backend"))
		}
		if c.Transport != TransportJetStream {
			errs = append(errs, c.NATS.Validate())
		}
	case BlobMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.Blob.Backend))
	}
	if c.Calendar.SQLitePath == "" {
		errs = append(errs, errors.New("calendar.sqlitePath is required"))
	}
	errs = append(errs, c.Optimizer.Validate(), c.Worker.Validate(), c.Reconcile.Validate())
	return errors.Join(errs...)
}

// Validate checks the Valkey settings.
func (v ValkeyConfig) Validate() error {
	if v.URL == "" {
		return errors.New("valkey.url is required")
	}
	if v.DB < 0 {
		return fmt.Errorf("valkey.db must not be negative, got %d", v.DB)
	}
	if v.TLSCAFile != "" && !v.TLSEnabled {
		return errors.New("valkey.tlsCAFile requires valkey.tlsEnabled")
	}
	if v.QueueKey == "" {
		return errors.New("valkey.queueKey is required")
	}
	return nil
}

// Validate checks the JetStream settings.
func (n NATSConfig) Validate() error {
	switch {
	case n.URL == "":
		return errors.New("nats.url is required")
	case n.Stream == "":
		return errors.New("nats.stream is required")
	case n.SubjectPrefix == "":
		return errors.New("nats.subjectPrefix is required")
	case n.Partitions < 1:
		return fmt.Errorf("nats.partitions must be at least 1, got %d", n.Partitions)
	}
	return nil
}

// Validate checks the optimizer settings. An empty BaseURL disables the
// optimizer client.
func (o OptimizerConfig) Validate() error {
	if o.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(o.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("optimizer.baseURL %q is not an absolute URL", o.BaseURL)
	}
	if o.CallbackURL == "" {
		return errors.New("optimizer.callbackURL is required with optimizer.baseURL")
	}
	if o.Timeout <= 0 {
		return errors.New("optimizer.timeout must be positive")
	}
	return nil
}

// Validate checks the worker settings.
func (w WorkerConfig) Validate() error {
	if _, err := ingest.ParseAckPolicy(w.AckPolicy); err != nil {
		return fmt.Errorf("worker.ackPolicy: %w", err)
	}
	if w.Concurrency < 1 {
		return fmt.Errorf("worker.concurrency must be at least 1, got %d", w.Concurrency)
	}
	if w.BatchSize < 1 {
		return fmt.Errorf("worker.batchSize must be at least 1, got %d", w.BatchSize)
	}
	return nil
}

// Validate checks the reconciler settings.
func (r ReconcileConfig) Validate() error {
	if r.Concurrency < 1 {
		return fmt.Errorf("reconcile.concurrency must be at least 1, got %d", r.Concurrency)
	}
	if r.WritesPerSecond < 0 {
		return fmt.Errorf("reconcile.writesPerSecond must not be negative, got %v", r.WritesPerSecond)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}
