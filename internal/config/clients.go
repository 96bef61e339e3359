package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/valkey-io/valkey-go"

	"github.com/teemow/meetassist/internal/ingest"
	"github.com/teemow/meetassist/internal/queue"
	"github.com/teemow/meetassist/internal/reconcile"
)

// ClientOption translates the connection settings for valkey.NewClient.
func (v ValkeyConfig) ClientOption() (valkey.ClientOption, error) {
	opt := valkey.ClientOption{
		InitAddress: []string{v.URL},
		Password:    v.Password,
		SelectDB:    v.DB,
	}
	if !v.TLSEnabled {
		return opt, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if v.TLSCAFile != "" {
		pem, err := os.ReadFile(v.TLSCAFile)
		if err != nil {
			return valkey.ClientOption{}, fmt.Errorf("read valkey CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return valkey.ClientOption{}, fmt.Errorf("no certificates found in %s", v.TLSCAFile)
		}
		tlsConfig.RootCAs = pool
	}
	opt.TLSConfig = tlsConfig
	return opt, nil
}

// Queue returns the list queue settings.
func (v ValkeyConfig) Queue() queue.ValkeyConfig {
	return queue.ValkeyConfig{
		Key:          v.QueueKey,
		Reliable:     v.Reliable,
		BlockTimeout: v.BlockTimeout,
	}
}

// JetStream returns the partitioned log settings.
func (n NATSConfig) JetStream() queue.JetStreamConfig {
	return queue.JetStreamConfig{
		Stream:        n.Stream,
		SubjectPrefix: n.SubjectPrefix,
		Partitions:    n.Partitions,
		Durable:       n.Durable,
		AckWait:       n.AckWait,
		MaxDeliver:    n.MaxDeliver,
	}
}

// Ingest returns the worker settings. Validate has checked the policy.
func (w WorkerConfig) Ingest() ingest.Config {
	policy, _ := ingest.ParseAckPolicy(w.AckPolicy)
	return ingest.Config{
		Policy:      policy,
		Concurrency: w.Concurrency,
		BatchSize:   w.BatchSize,
	}
}

// Reconciler returns the reconciler settings.
func (r ReconcileConfig) Reconciler() reconcile.Config {
	return reconcile.Config{
		Concurrency:     r.Concurrency,
		WritesPerSecond: r.WritesPerSecond,
		Burst:           r.Burst,
	}
}
