package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"subalign/internal/config"
	"subalign/internal/daemon"
	"subalign/internal/deps"
	"subalign/internal/logging"
	"subalign/internal/observe"
	"subalign/internal/services/stablets"
)

// Options configures server process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the server and blocks until SIGINT, SIGTERM, or cmdCtx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if opts.Development {
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "console"
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	workDir := filepath.Join(cfg.Paths.DataDir, "work")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}

	var daemonOpts []daemon.Option
	daemonOpts = append(daemonOpts, daemon.WithVersion(opts.Version))
	if cfg.Metrics.Enabled {
		provider, err := observe.InitProvider(signalCtx, observe.ProviderConfig{ServiceVersion: opts.Version})
		if err != nil {
			logging.WarnWithContext(logger, "metrics disabled", "metrics_init_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "/metrics is not served"),
			)
		} else {
			daemonOpts = append(daemonOpts, daemon.WithMetrics(provider))
		}
	}

	loader := stablets.NewLoader(stablets.Config{
		Launcher: cfg.Aligner.Launcher,
		Device:   cfg.Aligner.Device,
		WorkDir:  workDir,
	})
	d, err := daemon.New(cfg, logger, loader, daemonOpts...)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("server start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check server.bind and whether another instance is running"),
		)
		return err
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	fmt.Fprintf(os.Stdout, "subalign is running at %s (Ctrl+C to stop)\n", d.URL())

	<-signalCtx.Done()
	logger.Info("subalign server shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("launcher", strings.Join(cfg.Aligner.Launcher, " ")),
		logging.String("device", cfg.Aligner.Device),
		logging.String("default_model", cfg.Aligner.DefaultModel),
	}
	missing := false
	for _, status := range deps.Snapshot(cfg.LauncherBinary()) {
		key := strings.ToLower(strings.ReplaceAll(status.Name, " ", "_"))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
		if !status.Available && !status.Optional {
			missing = true
		}
	}
	if missing {
		logging.WarnWithContext(logger, "dependency snapshot", "dependency_snapshot",
			append(attrs,
				logging.String(logging.FieldErrorHint, "install ffmpeg and the configured Python launcher"),
				logging.String(logging.FieldImpact, "alignment tasks will fail until dependencies are installed"),
			)...)
		return
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
