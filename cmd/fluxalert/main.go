// Command fluxalert scans a GOES 5-minute integral proton flux file and sends
// a notification for every threshold elevation and recovery it finds.
//
// Usage:
//
//	fluxalert                     # prompts for the file name
//	fluxalert 20170910_Gp_part_5m.txt
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/chart"
	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/email"
	httpadapter "github.com/couchcryptid/proton-flux-alerts/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/proton-flux-alerts/internal/adapter/kafka"
	natsadapter "github.com/couchcryptid/proton-flux-alerts/internal/adapter/nats"
	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/swpc"
	"github.com/couchcryptid/proton-flux-alerts/internal/adapter/webhook"
	"github.com/couchcryptid/proton-flux-alerts/internal/config"
	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
	"github.com/couchcryptid/proton-flux-alerts/internal/notify"
	"github.com/couchcryptid/proton-flux-alerts/internal/observability"
	"github.com/couchcryptid/proton-flux-alerts/internal/pipeline"
)

const fileSuffix = ".txt"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fluxalert [file]",
		Short: "Send alerts for proton flux threshold crossings in a GOES data file",
		Long: "Scans a GOES 5-minute integral proton flux file, row by row, and notifies " +
			"the configured channels when the P>10, P>30, P>50 or P>100 flux rises above " +
			"1 pfu and again when it has stayed quiet for the recovery window.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := inputPath(args, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return run(cmd.Context(), path, cmd.OutOrStdout())
		},
	}
}

// inputPath takes the file name from args, or prompts for it when none is given.
func inputPath(args []string, in io.Reader, out io.Writer) (string, error) {
	if len(args) == 0 {
		return promptFilename(in, out)
	}
	if !strings.HasSuffix(args[0], fileSuffix) {
		return "", fmt.Errorf("input file %q must end in %s", args[0], fileSuffix)
	}
	return args[0], nil
}

// promptFilename asks until the answer ends in .txt.
func promptFilename(in io.Reader, out io.Writer) (string, error) {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "Please enter the proton flux file name (must end in %s): ", fileSuffix)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("read file name: %w", err)
			}
			return "", errors.New("read file name: no input")
		}
		name := strings.TrimSpace(scanner.Text())
		if strings.HasSuffix(name, fileSuffix) {
			return name, nil
		}
		fmt.Fprintf(out, "%q is not a %s file, try again.\n", name, fileSuffix)
	}
}

func run(ctx context.Context, path string, out io.Writer) error {
	start := domain.Now()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	records, err := swpc.ParseFile(path)
	if err != nil {
		logger.Error("failed to parse input", "path", path, "error", err)
		return err
	}
	logger.Info("feed loaded", "path", path, "records", len(records))

	channels, closeChannels, err := buildChannels(cfg, logger)
	if err != nil {
		logger.Error("failed to set up notification channels", "error", err)
		return err
	}
	defer closeChannels()

	dispatcher := notify.NewDispatcher(cfg.NotifyTimeout, logger, metrics, channels...)
	if len(channels) == 0 {
		logger.Warn("no notification channels configured, events will only be logged")
	} else {
		logger.Info("notification channels enabled", "channels", dispatcher.Channels())
	}

	renderer := chart.NewCachedRenderer(chart.NewRenderer(cfg.ChartPath, logger), cfg.ChartCacheSize)
	p := pipeline.New(cfg.Detector(), renderer, dispatcher, cfg.ReferenceLink, cfg.QuietWindow(), logger, metrics)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	sum, err := p.Run(ctx, records)
	elapsed := domain.Since(start)
	if err != nil {
		logger.Error("scan interrupted", "error", err, "elapsed", elapsed)
		return err
	}

	logger.Info("run finished", "started_at", start, "elapsed", elapsed)
	fmt.Fprintf(out, "Scanned %d rows: %d elevations, %d recoveries, %d failed deliveries in %s\n",
		sum.Records, sum.Elevations, sum.Recoveries, sum.Failed, elapsed.Round(time.Millisecond))
	return nil
}

// buildChannels creates every enabled notifier. The returned func releases
// connections held by the event bus channels.
func buildChannels(cfg *config.Config, logger *slog.Logger) ([]notify.Notifier, func(), error) {
	var (
		channels []notify.Notifier
		closers  []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.EmailEnabled {
		n, err := email.NewNotifier(cfg, logger)
		if err != nil {
			return nil, func() {}, err
		}
		channels = append(channels, n)
	}

	if cfg.WebhookEnabled {
		channels = append(channels, webhook.NewClient(cfg.WebhookURL, cfg.NotifyTimeout, cfg.NotifyRateLimit, logger))
	}

	if cfg.KafkaEnabled() {
		w := kafkaadapter.NewWriter(cfg, logger)
		channels = append(channels, w)
		closers = append(closers, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
	}

	if cfg.NATSEnabled() {
		nc, err := natsadapter.Connect(cfg.NATSURL, cfg.NotifyTimeout, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		channels = append(channels, natsadapter.NewPublisher(nc, cfg.NATSSubjectPrefix))
		closers = append(closers, func() {
			if err := nc.Drain(); err != nil {
				logger.Error("nats drain error", "error", err)
			}
		})
	}

	return channels, closeAll, nil
}
