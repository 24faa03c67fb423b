// Package daemon wires the wallet kit behind an HTTP JSON-RPC server, plus
// an optional admin server with metrics and profiling endpoints.
package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof" //nolint:gosec
	"os"
	"os/signal"
	runtimePprof "runtime/pprof"
	"sync"
	"syscall"
	"time"

	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	supportlog "github.com/stellar/go/support/log"

	"github.com/owlwallet/stellarkit/internal/config"
	"github.com/owlwallet/stellarkit/internal/kit"
	"github.com/owlwallet/stellarkit/internal/methods"
)

const (
	prometheusNamespace        = "stellar_wallet"
	defaultReadTimeout         = 5 * time.Second
	defaultShutdownGracePeriod = 10 * time.Second
)

type Daemon struct {
	registry        *kit.Registry
	wallet          *kit.Kit
	logger          *supportlog.Entry
	listener        net.Listener
	server          *http.Server
	adminListener   net.Listener
	adminServer     *http.Server
	metricsRegistry *prometheus.Registry
	closeOnce       sync.Once
	closeError      error
	done            chan struct{}
}

// MustNew builds and wires a daemon from the resolved config, exiting the
// process on any setup failure.
func MustNew(cfg *config.Config) *Daemon {
	logger := setupLogger(cfg)
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: prometheusNamespace}),
	)

	registry := kit.NewRegistry(logger)
	wallet, err := registry.Acquire(kit.Config{
		WalletID:          cfg.WalletID,
		Network:           cfg.Network,
		AccountID:         cfg.AccountID,
		SecretSeed:        cfg.SecretSeed,
		HorizonURL:        cfg.HorizonURL,
		NetworkPassphrase: cfg.NetworkPassphrase,
		StorageDir:        cfg.StorageDir,
		SyncInterval:      cfg.SyncInterval,
		Logger:            logger,
		Registry:          metricsRegistry,
	})
	if err != nil {
		logger.WithError(err).Fatal("could not start wallet kit")
	}

	daemon := &Daemon{
		registry:        registry,
		wallet:          wallet,
		logger:          logger,
		metricsRegistry: metricsRegistry,
		done:            make(chan struct{}),
	}

	bridge := jhttp.NewBridge(handler.Map{
		"getBalance":      methods.NewGetBalanceHandler(wallet),
		"getSyncState":    methods.NewGetSyncStateHandler(wallet),
		"getLatestLedger": methods.NewGetLatestLedgerHandler(wallet),
		"getTransactions": methods.NewGetTransactionsHandler(wallet),
		"sendPayment":     methods.NewSendPaymentHandler(wallet),
	}, nil)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}).Handler)
	router.Handle("/", bridge)

	daemon.listener, err = net.Listen("tcp", cfg.Endpoint)
	if err != nil {
		logger.WithError(err).WithField("endpoint", cfg.Endpoint).Fatal("cannot listen on endpoint")
	}
	daemon.server = &http.Server{
		Handler:     router,
		ReadTimeout: defaultReadTimeout,
	}

	if cfg.AdminEndpoint != "" {
		adminMux := chi.NewMux()
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		for _, profile := range runtimePprof.Profiles() {
			adminMux.Handle("/debug/pprof/"+profile.Name(), pprof.Handler(profile.Name()))
		}
		adminMux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
		daemon.adminListener, err = net.Listen("tcp", cfg.AdminEndpoint)
		if err != nil {
			logger.WithError(err).WithField("endpoint", cfg.AdminEndpoint).Fatal("cannot listen on admin endpoint")
		}
		daemon.adminServer = &http.Server{Handler: adminMux}
	}
	return daemon
}

func setupLogger(cfg *config.Config) *supportlog.Entry {
	logger := supportlog.New()
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		logger.UseJSONFormatter()
	}
	return logger
}

// Run serves until an interrupt signal arrives or Close is called.
func (d *Daemon) Run() {
	d.logger.WithField("addr", d.listener.Addr().String()).Info("starting JSON-RPC server")
	go func() {
		if err := d.server.Serve(d.listener); !errors.Is(err, http.ErrServerClosed) {
			d.logger.WithError(err).Fatal("JSON-RPC server encountered fatal error")
		}
	}()

	if d.adminServer != nil {
		d.logger.WithField("addr", d.adminListener.Addr().String()).Info("starting admin server")
		go func() {
			if err := d.adminServer.Serve(d.adminListener); !errors.Is(err, http.ErrServerClosed) {
				d.logger.WithError(err).Error("admin server encountered fatal error")
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signals:
		d.Close()
	case <-d.done:
	}
}

func (d *Daemon) close() {
	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), defaultShutdownGracePeriod)
	defer shutdownRelease()
	var closeErrors []error

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.WithError(err).Error("error during JSON-RPC server shutdown")
		closeErrors = append(closeErrors, err)
	}
	if d.adminServer != nil {
		if err := d.adminServer.Shutdown(shutdownCtx); err != nil {
			d.logger.WithError(err).Error("error during admin server shutdown")
			closeErrors = append(closeErrors, err)
		}
	}
	d.registry.CloseAll()
	d.closeError = errors.Join(closeErrors...)
	close(d.done)
}

// Close shuts the servers down and stops every running kit.
func (d *Daemon) Close() error {
	d.closeOnce.Do(d.close)
	return d.closeError
}
