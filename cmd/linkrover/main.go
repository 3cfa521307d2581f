// Package main wires together the link-check service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkrover/internal/api"
	"github.com/JakeFAU/linkrover/internal/checker"
	"github.com/JakeFAU/linkrover/internal/clock/system"
	"github.com/JakeFAU/linkrover/internal/config"
	"github.com/JakeFAU/linkrover/internal/controller"
	"github.com/JakeFAU/linkrover/internal/id/uuid"
	"github.com/JakeFAU/linkrover/internal/logging"
	"github.com/JakeFAU/linkrover/internal/metrics"
	"github.com/JakeFAU/linkrover/internal/progress"
	"github.com/JakeFAU/linkrover/internal/progress/sinks"
	"github.com/JakeFAU/linkrover/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/linkrover/internal/publisher/pubsub"
	"github.com/JakeFAU/linkrover/internal/report"
	"github.com/JakeFAU/linkrover/internal/storage"
	"github.com/JakeFAU/linkrover/internal/storage/gcs"
	"github.com/JakeFAU/linkrover/internal/storage/local"
	"github.com/JakeFAU/linkrover/internal/storage/memory"
	"github.com/JakeFAU/linkrover/internal/storage/postgres"
	"github.com/JakeFAU/linkrover/internal/update"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

// Exit codes for one-shot mode.
const (
	exitOK           = 0
	exitRunFailed    = 1
	exitInvalidInput = 2
	exitPersist      = 3
	exitConflict     = 4
	exitCancelled    = 5
)

// setFlags collects repeatable -set key=value pairs.
type setFlags []string

func (s *setFlags) String() string { return strings.Join(*s, ",") }

func (s *setFlags) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "linkrover.yaml", "Path to config file")
	serve := flag.Bool("serve", false, "Run the HTTP server instead of a one-shot check")
	addr := flag.String("addr", ":8080", "HTTP listen address in serve mode")
	save := flag.Bool("save", false, "Persist the configuration before running")
	reportDir := flag.String("report-dir", "", "Override the report output directory")
	timeout := flag.Duration("timeout", 0, "Overall deadline for a one-shot run (0 means none)")
	var sets setFlags
	flag.Var(&sets, "set", "Set a config property as key=value (repeatable)")
	flag.Parse()

	logger, err := logging.New(os.Getenv("LINKROVER_DEV") == "true")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return exitRunFailed
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := config.NewStore(*cfgPath, logger.Named("config"))
	if err != nil {
		logger.Error("load config failed", zap.Error(err))
		return exitInvalidInput
	}
	for _, pair := range sets {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			logger.Error("malformed -set flag, want key=value", zap.String("flag", pair))
			return exitInvalidInput
		}
		if err := store.UpdateValue(key, value); err != nil {
			logger.Error("config update rejected", zap.String("key", key), zap.Error(err))
			return exitInvalidInput
		}
	}
	if *reportDir != "" {
		if err := store.UpdateValue("report_dir", *reportDir); err != nil {
			logger.Error("config update rejected", zap.String("key", "report_dir"), zap.Error(err))
			return exitInvalidInput
		}
	}
	if *save {
		if err := store.Persist(); err != nil {
			logger.Error("persist config failed", zap.Error(err))
			return exitPersist
		}
	}

	metrics.Init()

	hub, err := buildHub(ctx, store, logger)
	if err != nil {
		logger.Error("progress hub init failed", zap.Error(err))
		return exitRunFailed
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	runs, err := buildRunStore(ctx)
	if err != nil {
		logger.Error("run store init failed", zap.Error(err))
		return exitRunFailed
	}
	blobs, err := buildBlobStore(ctx, store.ReportDir())
	if err != nil {
		logger.Error("blob store init failed", zap.Error(err))
		return exitRunFailed
	}
	pub, topic, err := buildPublisher(ctx)
	if err != nil {
		logger.Error("publisher init failed", zap.Error(err))
		return exitRunFailed
	}

	snap := store.Snapshot()
	prober := checker.NewHTTPProber(snap.ProbeTimeout, snap.UserAgent)
	engine := checker.New(prober, system.New(), logger.Named("engine"))
	writer := report.NewWriter(blobs, logger.Named("report"))

	ctrl, err := controller.New(engine, store, controller.Options{
		Runs:      runs,
		Reports:   writer,
		Publisher: pub,
		Topic:     topic,
		Emitter:   hub,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger.Named("controller"),
	})
	if err != nil {
		logger.Error("controller init failed", zap.Error(err))
		return exitRunFailed
	}

	if *serve {
		updates := update.New("JakeFAU", "linkrover", version,
			update.WithLogger(logger.Named("update")))
		server := api.NewServer(store, ctrl, api.Options{
			Reports: writer,
			Updates: updates,
			APIKey:  os.Getenv("LINKROVER_API_KEY"),
			Logger:  logger.Named("api"),
		})
		return serveHTTP(ctx, stop, server.Handler(), *addr, logger)
	}
	return runOnce(ctx, ctrl, *timeout, logger)
}

func buildHub(ctx context.Context, store *config.Store, logger *zap.Logger) (*progress.Hub, error) {
	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, err
	}
	return progress.NewHub(
		progress.Config{BaseContext: ctx, Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		sinks.NewAuditSink(store),
	), nil
}

// buildRunStore returns a postgres-backed store when LINKROVER_DATABASE_URL
// is set, and an in-memory store otherwise.
func buildRunStore(ctx context.Context) (storage.RunStore, error) {
	dsn := os.Getenv("LINKROVER_DATABASE_URL")
	if dsn == "" {
		return memory.NewRunStore(), nil
	}
	return postgres.NewRunStore(ctx, postgres.RunStoreConfig{DSN: dsn})
}

// buildBlobStore returns a GCS-backed store when LINKROVER_GCS_BUCKET is
// set, and a local filesystem store rooted at the report directory otherwise.
func buildBlobStore(ctx context.Context, reportDir string) (storage.BlobStore, error) {
	bucket := os.Getenv("LINKROVER_GCS_BUCKET")
	if bucket == "" {
		return local.New(local.Config{BaseDir: reportDir})
	}
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return gcs.New(client, gcs.Config{
		Bucket: bucket,
		Prefix: os.Getenv("LINKROVER_GCS_PREFIX"),
	})
}

// buildPublisher returns a Pub/Sub publisher when LINKROVER_PUBSUB_PROJECT
// and LINKROVER_PUBSUB_TOPIC are set. A nil publisher disables notifications.
func buildPublisher(ctx context.Context) (publisher.Publisher, string, error) {
	project := os.Getenv("LINKROVER_PUBSUB_PROJECT")
	topic := os.Getenv("LINKROVER_PUBSUB_TOPIC")
	if project == "" || topic == "" {
		return nil, "", nil
	}
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, "", err
	}
	return pubsubpublisher.New(client), topic, nil
}

func serveHTTP(ctx context.Context, stop context.CancelFunc, handler http.Handler, addr string, logger *zap.Logger) int {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return exitRunFailed
	}
	logger.Info("shutdown complete")
	return exitOK
}

// runOnce performs a single check run to completion. A signal or expired
// deadline cancels the run, and the exit code reflects its final status.
func runOnce(ctx context.Context, ctrl *controller.Controller, timeout time.Duration, logger *zap.Logger) int {
	runID, err := ctrl.RequestRun(ctx)
	if err != nil {
		if errors.Is(err, controller.ErrAlreadyRunning) {
			logger.Error("a run is already active", zap.Error(err))
			return exitConflict
		}
		logger.Error("request run failed", zap.Error(err))
		return exitRunFailed
	}
	logger.Info("run started", zap.String("run_id", runID))

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	run, err := ctrl.Wait(waitCtx, runID)
	if err != nil {
		// Interrupted or timed out: cancel the run and collect its outcome.
		logger.Info("cancelling run", zap.String("run_id", runID))
		if cancelErr := ctrl.Cancel(runID); cancelErr != nil {
			logger.Warn("cancel failed", zap.Error(cancelErr))
		}
		graceCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		run, err = ctrl.Wait(graceCtx, runID)
		if err != nil {
			logger.Error("run did not finish after cancellation", zap.Error(err))
			return exitRunFailed
		}
	}

	summary := run.Summary()
	logger.Info("run finished",
		zap.String("run_id", runID),
		zap.String("status", string(run.Status)),
		zap.Int("checked", summary.Checked),
		zap.Int("broken", summary.Broken),
		zap.Duration("elapsed", summary.Elapsed))

	switch run.Status {
	case checker.RunCompleted:
		if summary.Broken > 0 {
			return exitRunFailed
		}
		return exitOK
	case checker.RunCancelled:
		return exitCancelled
	default:
		return exitRunFailed
	}
}
