package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"copyengine/internal/config"
	"copyengine/internal/copygen"
	"copyengine/internal/jobs"
	"copyengine/internal/logging"
	"copyengine/internal/mediaproxy"
	"copyengine/internal/notifications"
	"copyengine/internal/transcript"
	"copyengine/internal/workflow"
)

const (
	relaySweepInterval = time.Minute
	serverStopTimeout  = 5 * time.Second
)

// Daemon owns the job services and the HTTP API for one process.
type Daemon struct {
	cfg    *config.Config
	store  jobs.Store
	logger *slog.Logger

	launcher *workflow.Launcher
	copy     *copygen.Service
	pipeline *transcript.Pipeline
	relay    *mediaproxy.Relay
	handler  http.Handler

	lockPath string
	lock     *flock.Flock

	cancel context.CancelFunc
}

// Option customizes daemon wiring.
type Option func(*options)

type options struct {
	drafter    copygen.Drafter
	httpClient *http.Client
	notifier   notifications.Service
	now        func() time.Time
}

// WithDrafter replaces the chat model client used for copy drafts.
func WithDrafter(drafter copygen.Drafter) Option {
	return func(o *options) {
		o.drafter = drafter
	}
}

// WithHTTPClient replaces the client used for resolver, ASR, and relay calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithNotifier replaces the ntfy publisher built from config.
func WithNotifier(svc notifications.Service) Option {
	return func(o *options) {
		o.notifier = svc
	}
}

// WithClock replaces the clock reported by /healthz.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New constructs a daemon with initialized dependencies. Background tasks
// run until Run returns or Close is called.
func New(cfg *config.Config, store jobs.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.drafter == nil {
		o.drafter = copygen.NewModelClient(cfg)
	}
	if o.notifier == nil {
		o.notifier = notifications.NewService(cfg)
	}
	client := o.httpClient
	if client == nil {
		client = &http.Client{}
	}

	root, cancel := context.WithCancel(context.Background())
	launcher := workflow.NewLauncher(root, cfg, store, logger, workflow.WithNotifier(o.notifier))
	relay := mediaproxy.NewRelay(cfg, logger, mediaproxy.WithHTTPClient(client))
	engine := copygen.NewEngine(cfg, o.drafter, logger)

	d := &Daemon{
		cfg:      cfg,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		launcher: launcher,
		copy:     copygen.NewService(engine, store, launcher, logger),
		pipeline: transcript.NewPipeline(transcript.Dependencies{
			Store:         store,
			Launcher:      launcher,
			Resolver:      transcript.NewResolver(cfg, client, logger),
			Recognizer:    transcript.NewTranscriber(cfg, logger, transcript.WithASRClient(client)),
			Relay:         relay,
			PublicBaseURL: cfg.MediaProxy.PublicBaseURL,
			Logger:        logger,
		}),
		relay:    relay,
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
		cancel:   cancel,
	}
	d.handler = newAPIServer(d, cfg.Server.APIToken, o.now, logger).routes()
	return d, nil
}

// Handler returns the HTTP API.
func (d *Daemon) Handler() http.Handler {
	return d.handler
}

// Run acquires the instance lock, listens on the configured address and
// serves until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another copyengine daemon instance is already running (lock %s)", d.lockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", d.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return d.Serve(ctx, listener)
}

// Serve runs the API on listener and the relay sweeper until ctx is
// cancelled, then stops the launcher within the configured grace period.
func (d *Daemon) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           d.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return d.relay.Sweep(gctx, relaySweepInterval)
	})

	d.logger.Info("copyengine daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("address", listener.Addr().String()),
		logging.String("lock", d.lockPath),
		logging.Bool("auth_enabled", d.cfg.Server.APIToken != ""),
	)
	err := group.Wait()
	if stopErr := d.Close(); stopErr != nil {
		d.logger.Warn("tasks did not finish before shutdown", logging.Error(stopErr))
	}
	d.logger.Info("copyengine daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	return err
}

// Close stops accepting jobs and waits for running tasks within the
// configured grace period.
func (d *Daemon) Close() error {
	err := d.launcher.Stop(d.cfg.ShutdownGrace())
	d.cancel()
	return err
}

// ActiveTasks reports how many job tasks are still running.
func (d *Daemon) ActiveTasks() int {
	return d.launcher.Active()
}
