package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "")
	t.Setenv("INSTRUMENTATION_ENABLED", "")
	t.Setenv("METRICS_EXPORTER", "")
	t.Setenv("TRACING_EXPORTER", "")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "")

	config := DefaultConfig()

	assert.Equal(t, "meetassist", config.ServiceName)
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterPrometheus, config.MetricsExporter)
	assert.Equal(t, ExporterNone, config.TracingExporter)
	assert.Equal(t, 0.1, config.TraceSamplingRate)
	assert.Equal(t, "/metrics", config.PrometheusEndpoint)
	assert.False(t, config.DetailedLabels)
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "meetassist-worker")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "stdout")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("METRICS_DETAILED_LABELS", "true")

	config := DefaultConfig()

	assert.Equal(t, "meetassist-worker", config.ServiceName)
	assert.False(t, config.Enabled)
	assert.Equal(t, ExporterStdout, config.MetricsExporter)
	assert.Equal(t, ExporterStdout, config.TracingExporter)
	assert.Equal(t, 0.5, config.TraceSamplingRate)
	assert.True(t, config.DetailedLabels)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"defaults", Config{MetricsExporter: ExporterPrometheus, TracingExporter: ExporterNone, TraceSamplingRate: 0.1}, false},
		{"empty exporters", Config{}, false},
		{"sampling below zero", Config{TraceSamplingRate: -0.1}, true},
		{"sampling above one", Config{TraceSamplingRate: 1.5}, true},
		{"bad metrics exporter", Config{MetricsExporter: "statsd"}, true},
		{"bad tracing exporter", Config{TracingExporter: "jaeger"}, true},
		{"otlp tracing without endpoint", Config{TracingExporter: ExporterOTLP}, true},
		{"otlp metrics without endpoint", Config{MetricsExporter: ExporterOTLP}, true},
		{"otlp with endpoint", Config{MetricsExporter: ExporterOTLP, TracingExporter: ExporterOTLP, OTLPEndpoint: "localhost:4318"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("MEETASSIST_TEST_STRING", "value")
	t.Setenv("MEETASSIST_TEST_BOOL", "yes-please")
	t.Setenv("MEETASSIST_TEST_FLOAT", "0.25")

	assert.Equal(t, "value", getEnvOrDefault("MEETASSIST_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnvOrDefault("MEETASSIST_TEST_UNSET", "default"))
	assert.True(t, getEnvBoolOrDefault("MEETASSIST_TEST_BOOL", true), "unparsable bool falls back to default")
	assert.Equal(t, 0.25, getEnvFloatOrDefault("MEETASSIST_TEST_FLOAT", 1))
	assert.Equal(t, 1.0, getEnvFloatOrDefault("MEETASSIST_TEST_UNSET", 1))
}
