// Package servecmder provides the serve command that runs the recall API
// server with background indexing.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/recall/api"
	"github.com/papercomputeco/recall/api/mcp"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/credentials"
	"github.com/papercomputeco/recall/pkg/indexer"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/memory"
	"github.com/papercomputeco/recall/pkg/semantic"
)

type serveCommander struct {
	cfg       *config.Config
	configDir string
	workers   uint
	queueSize uint
	logFile   string
	debug     bool
	logger    *slog.Logger
}

const serveLongDesc string = `Run the recall API server.

Messages posted to /v1/messages are stored immediately and indexed by a
background worker pool, so a slow embedding provider never blocks ingestion.
The embedding cache and vector index are saved on shutdown. MCP clients reach
the memory tools at /mcp.

Configuration comes from config.toml in the .recall/ directory, RECALL_*
environment variables and the flags below, in increasing precedence.

Examples:
  recall serve
  recall serve --listen :9090 --embedding-provider hashing --embedding-dimensions 384
  recall serve --storage-provider postgres --postgres postgres://localhost/recall
  recall serve --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the recall API server"

var serveFlagKeys = []string{config.FlagAPIListen, config.FlagEventBrokers}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = config.LoadCommandConfig(cmd,
				config.Binding{Flags: config.SharedFlags, Keys: config.SharedFlagKeys},
				config.Binding{Flags: config.ServeFlags, Keys: serveFlagKeys},
			)
			if err != nil {
				return err
			}

			// A broker list implies the kafka publisher.
			if cmder.cfg.EventStream.Brokers != "" && cmder.cfg.EventStream.Provider == "" {
				cmder.cfg.EventStream.Provider = memory.EventStreamKafka
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd.Context())
		},
	}

	config.AddSharedFlags(cmd)
	var listen, brokers string
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventBrokers, &brokers)
	cmd.Flags().UintVar(&cmder.workers, "workers", 1, "Number of background indexing workers")
	cmd.Flags().UintVar(&cmder.queueSize, "queue-size", 256, "Capacity of the indexing queue")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	closeLog, err := c.setupLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	creds, err := credentials.NewManager(c.configDir)
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}

	stack, err := memory.New(ctx, memory.Options{
		Config:    c.cfg,
		ConfigDir: c.configDir,
		Keys:      creds,
	}, c.logger)
	if err != nil {
		return err
	}

	// Build the generator and index now so misconfiguration fails at startup.
	if err := stack.Memory.Initialize(ctx); err != nil {
		_ = stack.Close()
		return fmt.Errorf("initializing semantic memory: %w", err)
	}

	pool, err := indexer.NewPool(&indexer.Config{
		Indexer:    stack.Memory,
		Writer:     stack.Store,
		NumWorkers: c.workers,
		QueueSize:  c.queueSize,
		OnDone: func(job indexer.Job, res *semantic.BatchIndexResult, err error) {
			if err != nil {
				return
			}
			c.logger.Debug("indexed ingested messages",
				"messages", len(job.Messages),
				"indexed", res.Indexed,
				"skipped", res.Skipped,
			)
		},
	}, c.logger.With("component", "indexer"))
	if err != nil {
		_ = stack.Close()
		return fmt.Errorf("creating indexing pool: %w", err)
	}

	mcpServer, err := mcp.NewServer(mcp.Config{Memory: stack.Memory, Logger: c.logger.With("component", "mcp")})
	if err != nil {
		pool.Close()
		_ = stack.Close()
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		MCPHandler: mcpServer.Handler(),
	}, stack.Memory, stack.Store, pool, c.logger.With("component", "api"))
	if err != nil {
		pool.Close()
		_ = stack.Close()
		return err
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	if err := server.Shutdown(); err != nil {
		c.logger.Warn("API server shutdown failed", "error", err)
	}

	// Drain queued jobs before memory is saved.
	pool.Close()

	if err := stack.Close(); err != nil {
		c.logger.Error("failed to close semantic memory", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	return runErr
}

// setupLogger builds the terminal logger and, with --log-file, tees it into a
// JSON file that always records debug output.
func (c *serveCommander) setupLogger() (func(), error) {
	console := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))
	if c.logFile == "" {
		c.logger = console
		return func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	c.logger = logger.Multi(console, logger.New(
		logger.WithWriter(f),
		logger.WithJSON(true),
		logger.WithDebug(true),
		logger.WithComponent("serve"),
	))
	return func() { _ = f.Close() }, nil
}
