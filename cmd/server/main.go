package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bloodlink/internal/audit"
	authHandler "bloodlink/internal/auth/handler"
	authService "bloodlink/internal/auth/service"
	userStore "bloodlink/internal/auth/store/user"
	"bloodlink/internal/compat"
	donorHandler "bloodlink/internal/donor/handler"
	donorModels "bloodlink/internal/donor/models"
	donorService "bloodlink/internal/donor/service"
	donorStore "bloodlink/internal/donor/store/donor"
	"bloodlink/internal/geo"
	"bloodlink/internal/jwttoken"
	matchHandler "bloodlink/internal/match/handler"
	matchService "bloodlink/internal/match/service"
	historyStore "bloodlink/internal/match/store/history"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/httpserver"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/middleware"
	"bloodlink/internal/platform/redis"
	requestHandler "bloodlink/internal/request/handler"
	requestService "bloodlink/internal/request/service"
	requestStore "bloodlink/internal/request/store/request"
	"bloodlink/internal/transport/http/shared"
	id "bloodlink/pkg/domain"
	dErrors "bloodlink/pkg/domain-errors"
	"bloodlink/pkg/platform/sentinel"
)

// main wires stores, services and handlers and runs the HTTP server.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slogFatal := func(msg string, err error) {
		log.Error(msg, "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	// Stores. An empty DSN keeps everything in memory, which is enough for
	// local development and the test suites.
	var (
		users    authService.UserStore
		donors   donorService.Store
		requests requestService.Store
		history  matchService.HistoryStore

		donorSource   matchService.DonorSource
		requestSource matchService.RequestSource
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			slogFatal("open postgres", err)
		}
		defer db.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()
		if err != nil {
			slogFatal("ping postgres", err)
		}

		us := userStore.NewPostgresStore(db)
		ds := donorStore.NewPostgres(db)
		rs := requestStore.NewPostgres(db)
		hs := historyStore.NewPostgres(db)
		users, donors, requests, history = us, ds, rs, hs
		donorSource, requestSource = ds, rs
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		us := userStore.NewInMemoryStore()
		ds := donorStore.NewInMemory()
		rs := requestStore.NewInMemory()
		hs := historyStore.NewInMemory()
		users, donors, requests, history = us, ds, rs, hs
		donorSource, requestSource = ds, rs
	}

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		slogFatal("connect redis", err)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Audit trail: in-memory store always, kafka sink when brokers are set.
	auditOpts := []audit.PublisherOption{audit.WithLogger(log)}
	kafkaSink, err := audit.NewKafkaSink(cfg.Audit.Brokers, cfg.Audit.Topic)
	if err != nil {
		slogFatal("connect kafka", err)
	}
	if kafkaSink != nil {
		defer kafkaSink.Close()
		auditOpts = append(auditOpts, audit.WithSink(kafkaSink))
	}
	auditPublisher := audit.NewPublisher(audit.NewInMemoryStore(), auditOpts...)

	geoOpts := []geo.Option{geo.WithLogger(log)}
	if rdb != nil {
		geoOpts = append(geoOpts, geo.WithCache(rdb, cfg.Geocoder.CacheTTL))
	}
	resolver := geo.NewClient(cfg.Geocoder, geoOpts...)

	oracle := compat.Default()
	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "bloodlink", "bloodlink-api")
	validator := jwtValidator{tokens: tokens}

	donorOpts := []donorService.Option{
		donorService.WithLogger(log),
		donorService.WithAuditPublisher(auditPublisher),
		donorService.WithMetrics(m),
	}
	if rdb != nil {
		donorOpts = append(donorOpts, donorService.WithRegionStatsCache(rdb, 5*time.Minute))
	}
	donorOpts = append(donorOpts, donorService.WithRequestFeed(requestFeed{requests: requests}))
	donorSvc := donorService.New(donors, oracle, userDirectory{users: users}, resolver, donorOpts...)
	matchSvc := matchService.New(history, donorSource, requestSource, oracle,
		matchService.WithLogger(log),
		matchService.WithMetrics(m),
	)
	requestSvc := requestService.New(requests, donorDirectory{donors: donorSvc}, oracle, matchSvc, resolver,
		requestService.WithLogger(log),
		requestService.WithAuditPublisher(auditPublisher),
		requestService.WithMetrics(m),
	)
	authSvc := authService.New(users, donorSvc, tokens, cfg.TokenTTL,
		authService.WithLogger(log),
		authService.WithAuditPublisher(auditPublisher),
		authService.WithMetrics(m),
		authService.WithRequestPurger(requestSvc),
	)

	router := chi.NewRouter()
	authHandler.New(authSvc, log, m, validator).Register(router)
	donorHandler.New(donorSvc, log, m, validator).Register(router)
	requestHandler.New(requestSvc, log, m, validator).Register(router)
	matchHandler.New(matchSvc, log, m, validator).Register(router)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting bloodlink", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogFatal("server error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slogFatal("graceful shutdown failed", err)
	}
	log.Info("bloodlink stopped")
}

// jwtValidator adapts the token service to the middleware's claims type.
type jwtValidator struct {
	tokens *jwttoken.JWTService
}

func (v jwtValidator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := v.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{UserID: claims.UserID}, nil
}

// userDirectory exposes account names and emails to the donor service.
type userDirectory struct {
	users authService.UserStore
}

func (d userDirectory) NameAndEmail(ctx context.Context, userID id.UserID) (string, string, error) {
	u, err := d.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", "", dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return "", "", dErrors.Wrap(err, dErrors.CodeInternal, "could not load user")
	}
	return u.Name, u.Email, nil
}

// donorDirectory exposes donor profiles to the request lifecycle.
type donorDirectory struct {
	donors *donorService.Service
}

func (d donorDirectory) DonorByID(ctx context.Context, donorID id.DonorID) (requestService.DonorView, error) {
	donor, err := d.donors.Get(ctx, donorID)
	if err != nil {
		return requestService.DonorView{}, err
	}
	return donorView(donor), nil
}

func (d donorDirectory) DonorByOwner(ctx context.Context, ownerID id.UserID) (requestService.DonorView, error) {
	donor, err := d.donors.GetByOwner(ctx, ownerID)
	if err != nil {
		return requestService.DonorView{}, err
	}
	return donorView(donor), nil
}

func donorView(d *donorModels.Donor) requestService.DonorView {
	return requestService.DonorView{
		ID:        d.ID,
		OwnerID:   d.OwnerID,
		BloodType: d.BloodType,
		Email:     d.Email,
		Location:  d.LocationDisplay,
	}
}

// requestFeed surfaces the newest open requests on the landing page.
type requestFeed struct {
	requests requestService.Store
}

func (f requestFeed) RecentActive(ctx context.Context, limit int) ([]donorService.RecentRequest, error) {
	active, err := f.requests.ListActive(ctx, requestStore.ActiveFilter{})
	if err != nil {
		return nil, err
	}
	if len(active) > limit {
		active = active[len(active)-limit:]
	}
	out := make([]donorService.RecentRequest, 0, len(active))
	for i := len(active) - 1; i >= 0; i-- {
		r := active[i]
		location := r.Location
		if r.City != "" && r.Country != "" {
			location = r.City + ", " + r.Country
		}
		out = append(out, donorService.RecentRequest{
			ID:        r.ID,
			BloodType: r.BloodTypeNeeded,
			Location:  location,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
