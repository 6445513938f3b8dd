package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/meatandeat/shopguard/account"
	"github.com/meatandeat/shopguard/api"
	"github.com/meatandeat/shopguard/guard"
	"github.com/meatandeat/shopguard/internal/config"
	"github.com/meatandeat/shopguard/internal/telemetry"
	"github.com/meatandeat/shopguard/internal/util"
)

var (
	listenAddr     string
	dataDir        string
	backend        string
	tlsCert        string
	tlsKey         string
	plainHTTP      bool
	trustedProxies []string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the security service",
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Address to listen on (overrides LISTEN_ADDR)")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for the bbolt database (overrides DATA_DIR)")
	serverCmd.Flags().StringVar(&backend, "storage", "", "Storage backend: memory, bbolt, postgres or redis (overrides STORAGE_BACKEND)")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file (overrides TLS_CERT)")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file (overrides TLS_KEY)")
	serverCmd.Flags().BoolVar(&plainHTTP, "plain-http", false, "Serve plain HTTP, for use behind a TLS-terminating proxy")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxies", nil, "CIDR ranges whose forwarding headers are trusted")
}

// loadConfig reads the environment and applies flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.ListenAddr = listenAddr
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("storage") {
		cfg.StorageBackend = backend
	}
	if flags.Changed("tls-cert") {
		cfg.TLSCert = tlsCert
	}
	if flags.Changed("tls-key") {
		cfg.TLSKey = tlsKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseProxies(raw []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(raw))
	for _, s := range raw {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", s, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	proxies, err := parseProxies(trustedProxies)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if cfg.SecretKey == config.DefaultSecret {
		logger.Warn("using the built-in development SECRET_KEY; set SECRET_KEY before deploying")
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	provider, err := telemetry.NewProvider(ctx, cfg.OTLPEndpoint, cfg.OTLPInsecure)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	provider.SetGlobal()
	metrics, err := telemetry.NewMetrics(provider.MeterProvider)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	g := guard.New(store,
		guard.WithLogger(logger),
		guard.WithMetrics(metrics),
		guard.WithSessionTimeout(cfg.SessionTTL()),
		guard.WithLoginLimit(cfg.LoginRateMax, cfg.RateWindow()),
		guard.WithAuditRetention(cfg.AuditRetention),
		guard.WithHasher(account.NewHasher(cfg.BcryptCost)),
	)
	a := api.New(g, api.WithLogger(logger), api.WithTrustedProxies(proxies))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Mount("/api/v1", a.Router())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serve := server.ListenAndServe
	if !plainHTTP {
		tlsConfig, err := serverTLSConfig(cfg)
		if err != nil {
			return err
		}
		server.TLSConfig = tlsConfig
		serve = func() error { return server.ListenAndServeTLS("", "") }
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan error, 1)
	go func() {
		if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			done <- fmt.Errorf("server failed: %w", err)
			return
		}
		done <- nil
	}()

	printBanner(os.Stdout)
	logger.Info("server started",
		"addr", cfg.ListenAddr,
		"storage", cfg.StorageBackend,
		"tls", !plainHTTP,
		"env", cfg.Env,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-done:
		return err
	}
}

func serverTLSConfig(cfg *config.Config) (*tls.Config, error) {
	var cert tls.Certificate
	var err error
	if cfg.TLSEnabled() {
		cert, err = tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
	} else {
		if cfg.Production() {
			return nil, errors.New("TLS_CERT and TLS_KEY are required in production unless --plain-http is set")
		}
		cert, err = util.GenerateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed certificate: %w", err)
		}
		fmt.Println("Using self-signed runtime generated certificate for TLS")
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
