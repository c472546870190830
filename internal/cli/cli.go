package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"store_dashboard/internal/config"
	"store_dashboard/internal/dashboard"
	"store_dashboard/internal/logging"
	"store_dashboard/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const programName = "store-dashboard"

type Runner struct {
	cfg      config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func NewRunner(cfg config.Config, logger *zap.Logger, m *metrics.Metrics, reg *prometheus.Registry) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   logger.Named("cli"),
		metrics:  m,
		registry: reg,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
}

func (r *Runner) Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := r.run(ctx, os.Args[1:]); err != nil {
		return errors.New(friendlyError(err))
	}
	return nil
}

// env is everything a command needs once flags and config are settled.
type env struct {
	opts    Options
	cfg     config.Config
	client  *dashboard.Client
	metrics *metrics.Metrics
	logger  *zap.Logger
	out     io.Writer
}

func (r *Runner) run(ctx context.Context, args []string) error {
	opts, err := r.parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg := opts.apply(r.cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := r.logger
	if cfg.LogFile != r.cfg.LogFile {
		file, err := logging.OpenLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		if file != nil {
			defer file.Close()
		}
		logger = logging.AttachFileLogger(logger, file, logging.Level(cfg.Debug))
	}

	if cfg.MetricsAddr != "" && cfg.MetricsAddr != r.cfg.MetricsAddr && r.registry != nil {
		srv := metrics.NewServer(cfg.MetricsAddr, r.registry, logger)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Stop(stopCtx)
		}()
	}

	m := r.metrics
	if m == nil {
		m = metrics.Nop()
	}
	client, err := dashboard.NewClient(cfg, m, logger)
	if err != nil {
		return err
	}

	e := &env{
		opts:    opts,
		cfg:     cfg,
		client:  client,
		metrics: m,
		logger:  logger,
		out:     r.stdout,
	}

	logger.Info("command received",
		zap.String("command", opts.Command),
		zap.Strings("args", opts.Args),
		zap.String("backend_url", cfg.BackendAPIURL),
		zap.Bool("json", opts.JSON),
	)

	if opts.Command == "" {
		return runREPL(ctx, e, r.stdin)
	}
	return runCommand(ctx, e, opts.Command, opts.Args)
}

func (r *Runner) parseFlags(args []string) (Options, error) {
	opts := optionsFromConfig(r.cfg)
	var timeoutSeconds int

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(r.stderr)
	fs.Usage = func() {
		fmt.Fprintf(r.stderr, "Usage: %s [flags] [command] [args]\n\n", fs.Name())
		fmt.Fprintln(r.stderr, "Commands:")
		writeCommandHelp(r.stderr)
		fmt.Fprintln(r.stderr, "\nWithout a command an interactive session starts.\n\nFlags:")
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.BackendURL, "backend-url", opts.BackendURL, "Backend API base URL (BACKEND_API_URL)")
	fs.StringVar(&opts.MockURL, "mock-url", opts.MockURL, "Mock orders API base URL (MOCK_API_URL)")
	fs.IntVar(&timeoutSeconds, "timeout", int(opts.Timeout.Seconds()), "Request timeout in seconds")
	fs.DurationVar(&opts.Refresh, "refresh", opts.Refresh, "Refresh interval for the selected store")
	fs.BoolVar(&opts.JSON, "json", false, "Output JSON format")
	fs.BoolVar(&opts.Debug, "debug", opts.Debug, "Enable debug logging")
	fs.StringVar(&opts.LogFile, "log-file", opts.LogFile, "Log file path")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", opts.MetricsAddr, "Serve Prometheus metrics on this address")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	if timeoutSeconds > 0 {
		opts.Timeout = time.Duration(timeoutSeconds) * time.Second
	}

	rest := fs.Args()
	if len(rest) > 0 {
		opts.Command = strings.ToLower(strings.TrimSpace(rest[0]))
		opts.Args = rest[1:]
	}
	return opts, nil
}
