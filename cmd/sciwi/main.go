package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sciwi/internal/app"
	"sciwi/internal/chat"
	"sciwi/internal/config"
	"sciwi/internal/hosting"
	"sciwi/internal/logging"
	"sciwi/internal/netaddr"
)

type rootOptions struct {
	envFile string
	verbose bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		logging.Error("command failed", nil, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "sciwi",
		Short: "Send messages and local files to Synology Chat",
		Long: `sciwi posts messages to Synology Chat incoming webhooks. Local files and
buffers are published on a short-lived HTTP server so the chat server can
download them, and are removed when sciwi stops.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "env file to load before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", true, "log every published file and request (overrides SCIWI_VERBOSE)")

	rootCmd.AddCommand(
		sendCmd(opts),
		serveCmd(opts),
		ipCmd(),
	)
	return rootCmd
}

// setup loads configuration and builds the application for one command run.
func setup(cmd *cobra.Command, opts *rootOptions) (*app.App, *logging.Logger, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbose = opts.verbose
	}

	logOpts := logging.Options{
		Level:  logging.Level(cfg.LogLevel),
		Format: logging.Format(cfg.LogFormat),
		Output: cfg.LogOutput,
	}
	if cfg.LogOutput == "" || cfg.LogOutput == "stderr" {
		logOpts.Writer = cmd.ErrOrStderr()
	}
	logger := logging.New(logOpts)
	logging.SetDefault(logger)

	a, err := app.Build(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, nil, err
	}
	return a, logger, nil
}

// shutdown stops hosting within the configured timeout.
func shutdown(a *app.App, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		logger.Error("shutdown failed", nil, err)
	}
	_ = logger.Close()
}

func sendCmd(opts *rootOptions) *cobra.Command {
	var (
		filePath  string
		fromStdin bool
		ext       string
		fileURL   string
		channel   string
		linger    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message, optionally with a file",
		Example: `  sciwi send "build finished"
  sciwi send "nightly report" --file report.pdf
  grafana-render | sciwi send "cpu" --stdin --ext png --channel ops`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := 0
			for _, set := range []bool{filePath != "", fromStdin, fileURL != ""} {
				if set {
					sources++
				}
			}
			if sources > 1 {
				return errors.New("--file, --stdin and --file-url are mutually exclusive")
			}

			msg := chat.Message{
				Text:     strings.Join(args, " "),
				FilePath: filePath,
				FileURL:  fileURL,
			}
			if fromStdin {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				msg.Buffer = data
				msg.BufferExtension = ext
			}

			a, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer shutdown(a, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := a.Send(ctx, channel, msg); err != nil {
				return err
			}
			hosted := a.Files.State() == hosting.StateRunning
			logger.Info("message sent", map[string]any{"channel": channel, "hosted_file": hosted})

			if linger > 0 && hosted {
				logger.Info("keeping file available", map[string]any{"linger": linger.String()})
				select {
				case <-time.After(linger):
				case <-ctx.Done():
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "local file to attach")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "attach the bytes read from stdin")
	cmd.Flags().StringVar(&ext, "ext", "", "file extension for --stdin, e.g. png")
	cmd.Flags().StringVar(&fileURL, "file-url", "", "attach an already reachable URL")
	cmd.Flags().StringVarP(&channel, "channel", "c", "", "named channel from SCIWI_CHANNELS")
	cmd.Flags().DurationVar(&linger, "linger", 0, "keep serving an attached file this long after sending")

	return cmd
}

func serveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve <file>...",
		Short: "Publish files and serve them until interrupted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := setup(cmd, opts)
			if err != nil {
				return err
			}
			defer shutdown(a, logger)

			for _, path := range args {
				u, err := a.Files.PublishFile(path)
				if err != nil {
					return fmt.Errorf("publish %s: %w", path, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("serving", map[string]any{"files": len(args), "base_url": a.Files.BaseURL()})
			<-ctx.Done()
			logger.Info("shutting down", nil)
			return nil
		},
	}
}

func ipCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ip",
		Short: "Print the local address used for file URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				fmt.Fprintln(cmd.OutOrStdout(), netaddr.Default())
				return nil
			}
			candidates, err := netaddr.Candidates()
			if err != nil {
				return fmt.Errorf("list interfaces: %w", err)
			}
			for _, c := range candidates {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "print every candidate address")
	return cmd
}
