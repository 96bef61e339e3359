package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/meetassist/internal/batch"
	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/config"
	"github.com/teemow/meetassist/internal/deadletter"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/queue"
)

// deadLetterBatchLimit bounds concurrent replays and drops.
const deadLetterBatchLimit = 4

func newDeadLettersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletters",
		Aliases: []string{"dl"},
		Short:   "Inspect and replay failed reconciliation payloads",
	}
	cmd.AddCommand(newDeadLettersListCmd())
	cmd.AddCommand(newDeadLettersShowCmd())
	cmd.AddCommand(newDeadLettersReplayCmd())
	cmd.AddCommand(newDeadLettersDropCmd())
	return cmd
}

func newDeadLettersListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeadLetters(func(ctx context.Context, _ config.Config, store deadletter.Store) error {
				entries, err := store.List(ctx, limit)
				if err != nil {
					return err
				}
				return printDeadLetters(cmd.OutOrStdout(), entries)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries")
	return cmd
}

func newDeadLettersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one dead letter including its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeadLetters(func(ctx context.Context, _ config.Config, store deadletter.Store) error {
				e, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(showEntry{Entry: e, Payload: json.RawMessage(e.Payload)})
			})
		},
	}
}

// showEntry prints the payload as embedded JSON instead of base64.
type showEntry struct {
	deadletter.Entry
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newDeadLettersReplayCmd() *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "replay <id>...",
		Short: "Store the payloads again and queue them for reconciliation",
		Long: `Replay dead letters: each payload is stored under a fresh key and a
message referencing it is published to the configured transport. Replayed
entries are removed from the ledger unless --keep is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeadLetters(func(ctx context.Context, cfg config.Config, store deadletter.Store) error {
				logger := newLogger(cfg)
				conns, err := openInfra(ctx, cfg, nil, logger)
				if err != nil {
					return err
				}
				defer func() {
					if err := conns.Close(); err != nil {
						logger.Error("Error closing connections", logging.Err(err))
					}
				}()
				results := replayDeadLetters(ctx, store, conns.blobs, conns.publisher, args, keep)
				fmt.Fprintln(cmd.OutOrStdout(), batch.FormatResults(results))
				return batchError(results)
			})
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep replayed entries in the ledger")
	return cmd
}

func newDeadLettersDropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <id>...",
		Short: "Delete dead letters without replaying them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeadLetters(func(ctx context.Context, _ config.Config, store deadletter.Store) error {
				results := dropDeadLetters(ctx, store, args)
				fmt.Fprintln(cmd.OutOrStdout(), batch.FormatResults(results))
				return batchError(results)
			})
		},
	}
}

// withDeadLetters loads the configuration, opens the ledger and runs fn.
func withDeadLetters(fn func(ctx context.Context, cfg config.Config, store deadletter.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DeadLetters.SQLitePath == "" {
		return errors.New("no dead-letter database configured (deadLetters.sqlitePath or MEETASSIST_DEADLETTER_DB)")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := deadletter.OpenSQLite(ctx, cfg.DeadLetters.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(ctx, cfg, store)
}

func printDeadLetters(w io.Writer, entries []deadletter.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No dead letters")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tCLASS\tSTAGE\tFILE KEY\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Class, e.Stage, e.FileKey, e.Error)
	}
	return tw.Flush()
}

// replayDeadLetters re-queues the payloads of the given entries.
func replayDeadLetters(ctx context.Context, store deadletter.Store, blobs blob.Store, pub queue.Publisher, ids []string, keep bool) []batch.Result {
	return batch.ProcessBatch(ctx, ids, deadLetterBatchLimit, func(ctx context.Context, id string) (string, error) {
		e, err := store.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if len(e.Payload) == 0 {
			return requeueBlob(ctx, store, blobs, pub, e, keep)
		}
		var head struct {
			HostID string `json:"hostId"`
		}
		if err := json.Unmarshal(e.Payload, &head); err != nil {
			return "", fmt.Errorf("decode payload: %w", err)
		}
		if head.HostID == "" {
			return "", errors.New("payload has no host id")
		}

		key := blob.ProcessedKey(head.HostID, uuid.NewString())
		if err := blobs.Put(ctx, key, e.Payload); err != nil {
			return "", fmt.Errorf("store payload: %w", err)
		}
		if err := pub.Publish(ctx, head.HostID, queue.Body{FileKey: key}); err != nil {
			_ = blobs.Delete(ctx, key)
			return "", fmt.Errorf("publish: %w", err)
		}
		if !keep {
			if err := store.Delete(ctx, id); err != nil {
				return "", fmt.Errorf("queued as %s but not removed: %w", key, err)
			}
		}
		return "queued as " + key, nil
	})
}

// requeueBlob re-publishes an entry recorded before its payload was read.
// The blob is still under the original file key.
func requeueBlob(ctx context.Context, store deadletter.Store, blobs blob.Store, pub queue.Publisher, e deadletter.Entry, keep bool) (string, error) {
	if e.FileKey == "" {
		return "", fmt.Errorf("entry %s has no payload to replay", e.ID)
	}
	if _, err := blobs.Get(ctx, e.FileKey); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return "", fmt.Errorf("entry %s has no payload and %s is gone", e.ID, e.FileKey)
		}
		return "", fmt.Errorf("check %s: %w", e.FileKey, err)
	}
	host, _, _ := strings.Cut(e.FileKey, "/")
	if err := pub.Publish(ctx, host, queue.Body{FileKey: e.FileKey}); err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if !keep {
		if err := store.Delete(ctx, e.ID); err != nil {
			return "", fmt.Errorf("requeued %s but not removed: %w", e.FileKey, err)
		}
	}
	return "requeued " + e.FileKey, nil
}

func dropDeadLetters(ctx context.Context, store deadletter.Store, ids []string) []batch.Result {
	return batch.ProcessBatch(ctx, ids, deadLetterBatchLimit, func(ctx context.Context, id string) (string, error) {
		if err := store.Delete(ctx, id); err != nil {
			return "", err
		}
		return "deleted", nil
	})
}

func batchError(results []batch.Result) error {
	if s := batch.Summarize(results); s.Failed > 0 {
		return fmt.Errorf("%d of %d operations failed", s.Failed, s.Total)
	}
	return nil
}
