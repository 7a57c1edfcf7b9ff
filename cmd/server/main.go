// Command server runs the Altona Village estate management API: identity
// and role records, the ERF address directory, the change journal, the
// transition engine, archival, and the gate-register projection behind a
// single chi router.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	adminhandler "altona/internal/admin/handler"
	adminservice "altona/internal/admin/service"
	archivehandler "altona/internal/archive/handler"
	archiveservice "altona/internal/archive/service"
	archiveworker "altona/internal/archive/worker"
	archivestore "altona/internal/archive/store"
	directoryhandler "altona/internal/directory/handler"
	directoryservice "altona/internal/directory/service"
	directorystore "altona/internal/directory/store"
	gatehandler "altona/internal/gateregister/handler"
	gateservice "altona/internal/gateregister/service"
	identityhandler "altona/internal/identity/handler"
	identityservice "altona/internal/identity/service"
	identitystore "altona/internal/identity/store"
	"altona/internal/identity/token"
	journalhandler "altona/internal/journal/handler"
	jmodels "altona/internal/journal/models"
	journalservice "altona/internal/journal/service"
	journalstore "altona/internal/journal/store"
	journalworker "altona/internal/journal/worker"
	"altona/internal/platform/config"
	"altona/internal/platform/httpserver"
	"altona/internal/platform/logger"
	"altona/internal/platform/metrics"
	"altona/internal/platform/middleware"
	"altona/internal/platform/postgres"
	platformredis "altona/internal/platform/redis"
	transitionhandler "altona/internal/transition/handler"
	transitionservice "altona/internal/transition/service"
	transitionstore "altona/internal/transition/store"
	"altona/pkg/email"
	txcontext "altona/pkg/platform/tx"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	var cache *goredis.Client
	if redisClient != nil {
		defer redisClient.Close()
		cache = redisClient.Client
		log.Info("redis cache enabled")
	}

	m := metrics.New()
	runner := txcontext.NewSQLRunner(db)

	identityStore := identitystore.NewPostgres(db)
	journalStore := journalstore.NewPostgres(db)
	directoryStore := directorystore.NewPostgres(db)
	transitionStore := transitionstore.NewPostgres(db)
	archiveStore := archivestore.NewPostgres(db)

	tokens := token.NewManager(cfg.Auth.JWTSigningKey, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	sender := email.NewLogSender(log)

	journalSvc := journalservice.NewService(journalStore,
		journalservice.WithLogger(log),
		journalservice.WithMetrics(m),
		journalservice.WithIdentityReader(identityStore),
		journalservice.WithPageSize(uint64(cfg.Journal.PageSize)),
	)
	worker := journalworker.New(journalSvc, cfg.Journal.QueueSize, log)

	directorySvc := directoryservice.NewService(directoryStore,
		directoryservice.WithLogger(log),
	)

	gateSvc := gateservice.NewService(identityStore, journalSvc,
		gateservice.WithLogger(log),
		gateservice.WithMetrics(m),
		gateservice.WithCache(cache, cfg.Register.CacheTTL),
	)

	// Journal appends feed the gate-register changes view, so every recorded
	// change drops the cached snapshot.
	recorder := invalidatingRecorder{worker: worker, gate: gateSvc}

	identitySvc := identityservice.NewService(identityStore,
		identityservice.WithLogger(log),
		identityservice.WithMetrics(m),
		identityservice.WithRecorder(recorder),
		identityservice.WithNotifier(sender),
		identityservice.WithAddressLookup(directorySvc),
	)

	transitionSvc := transitionservice.NewService(transitionStore, identityStore, runner,
		transitionservice.WithLogger(log),
		transitionservice.WithMetrics(m),
		transitionservice.WithRecorder(recorder),
		transitionservice.WithNotifier(sender),
	)

	archiveSvc := archiveservice.NewService(archiveStore, identityStore, transitionStore, runner,
		archiveservice.WithLogger(log),
		archiveservice.WithMetrics(m),
	)
	purger := archiveworker.New(archiveSvc, cfg.Archive.PurgeInterval, log)

	adminSvc := adminservice.NewService(identityStore, transitionSvc, journalSvc, log)

	router := newRouter(cfg, log, m, db, tokens,
		identityhandler.New(identitySvc, tokens, log),
		directoryhandler.New(directorySvc, log),
		journalhandler.New(journalSvc, log),
		transitionhandler.New(transitionSvc, log),
		archivehandler.New(archiveSvc, log),
		gatehandler.New(gateSvc, log),
		adminhandler.New(adminSvc, log),
	)

	srv := httpserver.New(cfg.HTTP, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return ignoreCancel(worker.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCancel(purger.Run(gctx))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(
	cfg *config.Config,
	log *slog.Logger,
	m *metrics.Metrics,
	db *sql.DB,
	tokens *token.Manager,
	identity *identityhandler.Handler,
	directory *directoryhandler.Handler,
	journal *journalhandler.Handler,
	transitions *transitionhandler.Handler,
	archives *archivehandler.Handler,
	gate *gatehandler.Handler,
	admin *adminhandler.Handler,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := db.PingContext(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			identity.RegisterPublic(r)
			directory.RegisterPublic(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens, log))
			identity.RegisterAuthenticated(r)
			transitions.RegisterAuthenticated(r)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(log))
				identity.RegisterAdmin(r)
				directory.RegisterAdmin(r)
				journal.Register(r)
				transitions.RegisterAdmin(r)
				archives.RegisterAdmin(r)
				gate.RegisterAdmin(r)
				admin.RegisterAdmin(r)
			})
		})
	})

	return r
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// invalidatingRecorder enqueues the journal entry and drops the gate
// register snapshot so the changes view never serves stale data.
type invalidatingRecorder struct {
	worker *journalworker.Worker
	gate   *gateservice.Service
}

func (r invalidatingRecorder) Record(ctx context.Context, e jmodels.Entry) {
	r.worker.Record(ctx, e)
	r.gate.InvalidateCache(ctx)
}
