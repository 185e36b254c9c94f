// Package server wires configuration, storage backends, the retention
// scheduler and the gRPC endpoint into a runnable application and handles
// graceful shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/csvkeeper/internal/cryptox"
	"github.com/dmitrijs2005/csvkeeper/internal/filex"
	"github.com/dmitrijs2005/csvkeeper/internal/ingest"
	"github.com/dmitrijs2005/csvkeeper/internal/logging"
	"github.com/dmitrijs2005/csvkeeper/internal/server/blobs"
	"github.com/dmitrijs2005/csvkeeper/internal/server/config"
	"github.com/dmitrijs2005/csvkeeper/internal/server/notify"
	"github.com/dmitrijs2005/csvkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/csvkeeper/internal/server/services"

	gs "github.com/dmitrijs2005/csvkeeper/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	logCloser io.Closer
	repos     repomanager.RepositoryManager
	files     *services.FileService
	retention *services.RetentionService
	notifier  *notify.Dispatcher
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, logCloser, err := logging.New(logging.Options{
		Level:      c.LogLevel,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app, err := newApp(ctx, c, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}
	app.logCloser = logCloser
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {

	masterKey, err := cryptox.MasterKey(c.MasterKey, c.MasterPassphrase, c.MasterSalt)
	if err != nil {
		return nil, fmt.Errorf("master key: %w", err)
	}
	wrapper, err := cryptox.NewKeyWrapper(masterKey)
	if err != nil {
		return nil, err
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	boltPath := c.BoltPath
	if c.MetadataBackend == repomanager.BackendBolt {
		if boltPath, err = filex.EnsureParentDir(boltPath); err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	rm, err := repomanager.New(repomanager.Options{
		Backend:     c.MetadataBackend,
		DatabaseDSN: c.DatabaseDSN,
		BoltPath:    boltPath,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	dispatcher := notify.NewDispatcher(notify.NewLogSink(logger), logger, notify.Config{
		Workers:    c.NotifyWorkers,
		QueueSize:  c.NotifyQueueSize,
		MaxRetries: c.NotifyMaxRetries,
		Backoff:    c.NotifyBackoff,
	})

	normalizer := ingest.NewNormalizer(c.MaxUploadBytes)
	fs := services.NewFileService(rm.Files(), store, normalizer, wrapper, logger, c.UploadConcurrency)

	rs, err := services.NewRetentionService(rm.Files(), store, dispatcher, services.SystemClock, services.RetentionConfig{
		Window:      c.RetentionWindow,
		Schedule:    c.RetentionSchedule,
		Concurrency: c.SweepConcurrency,
	}, logger)
	if err != nil {
		_ = rm.Close()
		return nil, err
	}

	return &App{
		config:    c,
		logger:    logger,
		repos:     rm,
		files:     fs,
		retention: rs,
		notifier:  dispatcher,
	}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blobs.Store, error) {
	switch c.BlobBackend {
	case blobs.BackendS3:
		return blobs.NewS3Store(ctx, blobs.S3Options{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case blobs.BackendLocal:
		dir, err := filex.EnsureDir(c.BlobDir)
		if err != nil {
			return nil, err
		}
		return blobs.NewLocalStore(dir)
	case blobs.BackendMemory:
		return blobs.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) error {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.files, app.config.SecretKey, maxRecvBytes(app.config.MaxUploadBytes))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return err
	}
	return nil
}

// maxRecvBytes leaves headroom over the upload limit for message framing.
func maxRecvBytes(maxUpload int64) int {
	if maxUpload <= 0 {
		return 0
	}
	return int(maxUpload) + 64<<10
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// stops the scheduler, drains notifications and closes the stores.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	// notices queued before shutdown are still delivered; Stop drains them
	app.notifier.Start(context.WithoutCancel(ctx))
	app.retention.Start(ctx)

	var (
		wg     sync.WaitGroup
		runErr error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.retention.Stop()
	app.notifier.Stop()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "closing metadata store", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
	if app.logCloser != nil {
		_ = app.logCloser.Close()
	}

	return runErr
}
