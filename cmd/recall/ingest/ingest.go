// Package ingestcmder provides the ingest command, which stores and indexes
// messages from JSONL files without a running server.
package ingestcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api/client"
	"github.com/papercomputeco/recall/cmd/recall/remote"
	"github.com/papercomputeco/recall/pkg/cliui"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/credentials"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/storage"
)

const ingestLongDesc string = `Store and index messages from JSONL files.

Each line is one JSON message:

  {"id":"m1","session_id":"s1","conversation_id":"c1","role":"user",
   "content":"deploy the api","created_at":"2025-01-02T12:00:00Z"}

id and session_id are required. Messages without created_at are stamped
with the current time. Use "-" to read from stdin.

Messages are written to the configured message store and embedded into
the vector index in batches. With --remote, batches are posted to a
running recall server instead, which may index them in the background.
With --watch, recall keeps following the files and ingests lines as they
are appended until interrupted.

Examples:
  recall ingest messages.jsonl
  recall ingest --batch-size 50 a.jsonl b.jsonl
  cat messages.jsonl | recall ingest -
  recall ingest --remote --api-target http://localhost:8081 messages.jsonl
  recall ingest --watch ~/agent/transcript.jsonl`

const ingestShortDesc string = "Store and index messages from JSONL files"

const defaultBatchSize = 100

type ingestCommander struct {
	cfg       *config.Config
	configDir string
	batchSize int
	watch     bool
	remote    bool
	debounce  time.Duration
	debug     bool

	in     io.Reader
	out    io.Writer
	logger *slog.Logger
	now    func() time.Time

	// Exactly one of stack and client is set.
	stack  *memory.Stack
	client *client.Client
	total  ingestTotals
}

type ingestTotals struct {
	messages int
	indexed  int
	skipped  int
	queued   int
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{now: time.Now}

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cmder.remote {
				cmder.client, err = remote.NewClient(cmd)
				return err
			}
			cmder.cfg, err = config.LoadCommandConfig(cmd,
				config.Binding{Flags: config.SharedFlags, Keys: config.SharedFlagKeys},
			)
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return cmder.run(ctx, args)
		},
	}

	config.AddSharedFlags(cmd)
	var apiTarget string
	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &apiTarget)
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Post messages to a running recall server")
	cmd.Flags().IntVarP(&cmder.batchSize, "batch-size", "b", defaultBatchSize, "Messages per store and index batch")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep following the files for appended messages")
	cmd.Flags().DurationVar(&cmder.debounce, "debounce", 250*time.Millisecond, "Quiet period before ingesting appended lines")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, files []string) error {
	if c.batchSize <= 0 {
		return errors.New("--batch-size must be positive")
	}
	if c.watch {
		for _, f := range files {
			if f == "-" {
				return errors.New("--watch cannot follow stdin")
			}
		}
	}

	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

	if c.client == nil {
		creds, err := credentials.NewManager(c.configDir)
		if err != nil {
			return fmt.Errorf("loading credentials: %w", err)
		}

		c.stack, err = memory.New(ctx, memory.Options{
			Config:    c.cfg,
			ConfigDir: c.configDir,
			Keys:      creds,
		}, c.logger)
		if err != nil {
			return err
		}
	}

	runErr := c.ingestFiles(ctx, files)
	if runErr == nil && c.watch {
		watchCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		runErr = c.watchFiles(watchCtx, files)
		stop()
	}

	// Closing saves the embedding cache and index.
	if c.stack != nil {
		if err := c.stack.Close(); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(c.out, "\n  %s %d messages, %s indexed, %s skipped",
		cliui.SuccessMark,
		c.total.messages,
		cliui.ValueStyle.Render(fmt.Sprint(c.total.indexed)),
		cliui.DimStyle.Render(fmt.Sprint(c.total.skipped)),
	)
	if c.total.queued > 0 {
		fmt.Fprintf(c.out, ", %s queued", cliui.DimStyle.Render(fmt.Sprint(c.total.queued)))
	}
	fmt.Fprint(c.out, "\n\n")
	return nil
}

func (c *ingestCommander) ingestFiles(ctx context.Context, files []string) error {
	for _, path := range files {
		var msgs []*storage.Message
		err := cliui.Step(c.out, "Reading "+displayName(path), func() error {
			var err error
			msgs, err = c.readFile(path)
			return err
		})
		if err != nil {
			return err
		}

		if err := c.ingest(ctx, msgs); err != nil {
			return err
		}
	}
	return nil
}

func (c *ingestCommander) readFile(path string) ([]*storage.Message, error) {
	if path == "-" {
		return decodeMessages(c.in, c.now)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	msgs, err := decodeMessages(f, c.now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return msgs, nil
}

// ingest stores and indexes msgs batch by batch.
func (c *ingestCommander) ingest(ctx context.Context, msgs []*storage.Message) error {
	for start := 0; start < len(msgs); start += c.batchSize {
		batch := msgs[start:min(start+c.batchSize, len(msgs))]

		label := fmt.Sprintf("Indexing messages %d-%d of %d", start+1, start+len(batch), len(msgs))
		err := cliui.Step(c.out, label, func() error {
			if c.client != nil {
				return c.post(ctx, batch)
			}

			if err := c.stack.Store.Put(ctx, batch...); err != nil {
				return fmt.Errorf("storing messages: %w", err)
			}

			res, err := c.stack.Memory.IndexBatchMessages(ctx, batch)
			if err != nil {
				return fmt.Errorf("indexing messages: %w", err)
			}

			c.total.messages += len(batch)
			c.total.indexed += res.Indexed
			c.total.skipped += res.Skipped
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// post sends a batch to the server. A queued batch is indexed later, so
// only its acceptance is counted.
func (c *ingestCommander) post(ctx context.Context, batch []*storage.Message) error {
	resp, err := c.client.Ingest(ctx, batch)
	if err != nil {
		return err
	}

	c.total.messages += resp.Accepted
	switch {
	case resp.Index != nil:
		c.total.indexed += resp.Index.Indexed
		c.total.skipped += resp.Index.Skipped
	case resp.Queued:
		c.total.queued += resp.Accepted
	}
	return nil
}

func displayName(path string) string {
	if path == "-" {
		return "stdin"
	}
	return path
}
