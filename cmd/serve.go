package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/database"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/events"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/gateway"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/handler"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/notify"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/service"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/sweep"
)

func serveCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "Apply the schema before serving")
	return cmd
}

// services is the wired core, shared by serve and sweep.
type services struct {
	bookings   *service.BookingService
	payments   *service.PaymentService
	facilities *service.FacilityService
	sites      *service.SiteService
	users      *service.UserService
	dispatcher *notify.Dispatcher
	closers    []func() error
}

func (s *services) close() {
	s.dispatcher.Wait()
	for _, c := range s.closers {
		_ = c()
	}
}

func wire(rt *runtime) (*services, error) {
	cfg, log := rt.cfg, rt.log

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	// ── 1. Repositories ───────────────────────────────────────────────────
	bookingRepo := repository.NewBookingRepository(rt.pool)
	facilityRepo := repository.NewFacilityRepository(rt.pool)
	paymentRepo := repository.NewPaymentRepository(rt.pool)
	siteRepo := repository.NewSiteRepository(rt.pool)
	userRepo := repository.NewUserRepository(rt.pool)

	// ── 2. Side channels: events, notifications, gateway ──────────────────
	out := &services{dispatcher: notify.NewDispatcher(notify.NewLogNotifier(log), log, 10*time.Second)}

	var emitter events.Emitter = events.NewLogEmitter(log)
	if cfg.Rabbit.URL != "" {
		pub, err := events.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange)
		if err != nil {
			return nil, err
		}
		out.closers = append(out.closers, pub.Close)
		emitter = pub
		log.Info().Str("exchange", cfg.Rabbit.Exchange).Msg("publishing booking events")
	}

	var gw gateway.Gateway = gateway.Manual{}
	if cfg.Gateway.AccessToken != "" {
		mp, err := gateway.NewMercadoPago(cfg.Gateway.AccessToken, cfg.Gateway.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		gw = mp
		log.Info().Msg("payment gateway: mercadopago")
	}

	// ── 3. Services ───────────────────────────────────────────────────────
	out.bookings = service.NewBookingService(service.BookingDeps{
		Bookings:   bookingRepo,
		Facilities: facilityRepo,
		Users:      userRepo,
		Emitter:    emitter,
		Notifier:   out.dispatcher,
		Log:        log,
		Location:   loc,
		Currency:   cfg.Currency,
		PendingTTL: cfg.PendingTTL,
	})
	out.payments = service.NewPaymentService(service.PaymentDeps{
		Bookings: bookingRepo,
		Payments: paymentRepo,
		Users:    userRepo,
		Gateway:  gw,
		Emitter:  emitter,
		Notifier: out.dispatcher,
		Log:      log,
	})
	out.facilities = service.NewFacilityService(facilityRepo, siteRepo, bookingRepo, loc, log)
	out.sites = service.NewSiteService(siteRepo, log)
	out.users = service.NewUserService(userRepo)
	return out, nil
}

func sweepTasks(svc *services, every time.Duration) []*sweep.Task {
	return []*sweep.Task{
		{Name: "auto-transition", Interval: every, Run: svc.bookings.AutoTransition},
		{Name: "stale-cleanup", Interval: every, Run: svc.bookings.CleanupStale},
	}
}

func serve(ctx context.Context, migrate bool) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.pool.Close()
	cfg, log := rt.cfg, rt.log

	if err := cfg.RequireJWT(); err != nil {
		return err
	}
	if migrate {
		if err := database.Migrate(ctx, rt.pool); err != nil {
			return err
		}
	}

	svc, err := wire(rt)
	if err != nil {
		return err
	}
	defer svc.close()

	// ── 4. Background work ────────────────────────────────────────────────
	workCtx, stopWork := context.WithCancel(ctx)
	sched := sweep.NewScheduler(log, sweepTasks(svc, cfg.SweepEvery)...)
	sched.Start(workCtx)
	defer sched.Wait()
	defer stopWork()

	if cfg.Rabbit.URL != "" && cfg.Rabbit.PaymentQueue != "" {
		consumer, err := events.NewConsumer(cfg.Rabbit.URL, cfg.Rabbit.Exchange, cfg.Rabbit.PaymentQueue, log)
		if err != nil {
			return err
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(workCtx, svc.payments.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("payment consumer stopped")
			}
		}()
	}

	// ── 5. Build the router ───────────────────────────────────────────────
	router := handler.NewRouter(handler.Deps{
		Bookings:      svc.bookings,
		Payments:      svc.payments,
		Facilities:    svc.facilities,
		Sites:         svc.sites,
		Users:         svc.users,
		Issuer:        auth.NewIssuer(cfg.JWTSecret),
		DB:            rt.pool,
		Log:           log,
		CORSOrigin:    cfg.CORSOrigin,
		WebhookSecret: cfg.Gateway.WebhookSecret,
	})
	if cfg.Gateway.WebhookSecret == "" {
		log.Warn().Msg("MP_WEBHOOK_SECRET not set, payment webhooks are disabled")
	}

	// ── 6. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
