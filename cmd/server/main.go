package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kavach-labs/hnswgo/pkg/api/rest"
	"github.com/kavach-labs/hnswgo/pkg/api/rest/middleware"
	"github.com/kavach-labs/hnswgo/pkg/config"
	"github.com/kavach-labs/hnswgo/pkg/hnsw"
	"github.com/kavach-labs/hnswgo/pkg/observability"
	"github.com/kavach-labs/hnswgo/pkg/tenant"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	// Parse command-line flags
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		configFile  = flag.String("config", "", "path to configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("hnswgo server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := loadConfig(*configFile)

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	observability.SetGlobalLogger(observability.NewLogger(
		observability.ParseLogLevel(cfg.Observability.LogLevel), os.Stdout,
	))
	logger := observability.GetGlobalLogger()
	metrics := observability.NewMetrics()

	manager := tenant.NewManager(hnsw.Config[hnsw.Hamming128]{
		M:              cfg.HNSW.M,
		EfConstruction: cfg.HNSW.EfConstruction,
		DMax:           cfg.HNSW.DMax,
		Seed:           cfg.HNSW.Seed,
	})

	restConfig := rest.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		CORSEnabled: true,
		CORSOrigins: []string{"*"},
		Auth: middleware.AuthConfig{
			Enabled:     cfg.Auth.Enabled,
			JWTSecret:   cfg.Auth.Secret,
			PublicPaths: []string{"/v1/health"},
		},
		RateLimit: middleware.RateLimitConfig{
			Enabled:        cfg.RateLimit.Enabled,
			RequestsPerSec: cfg.RateLimit.RequestsPerSecond,
			Burst:          cfg.RateLimit.Burst,
			PerIP:          true,
		},
		CacheEnabled:  cfg.Cache.Enabled,
		CacheCapacity: cfg.Cache.Capacity,
		CacheTTL:      cfg.Cache.TTL,

		DefaultEfSearch: cfg.HNSW.DefaultEfSearch,
	}

	server, err := rest.NewServer(restConfig, manager, metrics, logger)
	if err != nil {
		log.Fatalf("Failed to create REST server: %v", err)
	}

	printStartupInfo(cfg)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting REST API server")
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("REST server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("Server is ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping REST server: %v", err)
	}

	log.Println("Server stopped. Goodbye!")
}

func loadConfig(configFile string) *config.Config {
	// TODO: support loading from YAML/JSON config file
	if configFile != "" {
		log.Printf("Warning: config file support not yet implemented, using environment variables")
	}

	return config.LoadFromEnv()
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   _                                                       ║
║   | |__  _ __  _____      _____  __ _  ___                ║
║   | '_ \| '_ \/ __\ \ /\ / / _ \/ _` + "`" + ` |/ _ \               ║
║   | | | | | | \__ \\ V  V / (_) | (_| | (_) |              ║
║   |_| |_|_| |_|___/ \_/\_/ \___/ \__, |\___/               ║
║                                   |___/                   ║
║                                                           ║
║   In-memory approximate nearest neighbor search over      ║
║   Hamming-distance features                               ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║               Server Configuration                     ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Max Connections:  %-35d ║\n", cfg.Server.MaxConnections)
	fmt.Printf("║ Auth Enabled:     %-35v ║\n", cfg.Auth.Enabled)
	fmt.Printf("║ Rate Limiting:    %-35v ║\n", cfg.RateLimit.Enabled)
	if cfg.RateLimit.Enabled {
		fmt.Printf("║ Rate:             %-35s ║\n", fmt.Sprintf("%.1f req/s (burst: %d)", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	}
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               HNSW Configuration                       ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ M:                %-35d ║\n", cfg.HNSW.M)
	fmt.Printf("║ efConstruction:   %-35d ║\n", cfg.HNSW.EfConstruction)
	fmt.Printf("║ efSearch:         %-35d ║\n", cfg.HNSW.DefaultEfSearch)
	fmt.Printf("║ dMax:             %-35d ║\n", cfg.HNSW.DMax)
	fmt.Printf("║ seed:             %-35d ║\n", cfg.HNSW.Seed)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Cache Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.Cache.Enabled)
	fmt.Printf("║ Capacity:         %-35d ║\n", cfg.Cache.Capacity)
	fmt.Printf("║ TTL:              %-35s ║\n", cfg.Cache.TTL)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func showUsage() {
	fmt.Println("hnswgo server - in-memory HNSW nearest-neighbor search over HTTP")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  hnswgo-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Path to configuration file (not read; settings come from environment variables)")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8080)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  HNSW_HOST                  Server host")
	fmt.Println("  HNSW_PORT                  Server port")
	fmt.Println("  HNSW_MAX_CONNECTIONS       Max concurrent connections (validated, not enforced)")
	fmt.Println("  HNSW_REQUEST_TIMEOUT       Request timeout (e.g., 30s; parsed, not applied)")
	fmt.Println("  HNSW_ENABLE_TLS            Enable TLS (true/false; validated, the server still serves plain HTTP)")
	fmt.Println("  HNSW_TLS_CERT              TLS certificate file")
	fmt.Println("  HNSW_TLS_KEY               TLS key file")
	fmt.Println("  HNSW_M                     HNSW M parameter")
	fmt.Println("  HNSW_EF_CONSTRUCTION       HNSW efConstruction")
	fmt.Println("  HNSW_DEFAULT_EF_SEARCH     Default search-time ef")
	fmt.Println("  HNSW_D_MAX                 Max representable distance value")
	fmt.Println("  HNSW_SEED                  Level-sampler seed")
	fmt.Println("  HNSW_CACHE_ENABLED         Enable query cache (true/false)")
	fmt.Println("  HNSW_CACHE_CAPACITY        Cache capacity")
	fmt.Println("  HNSW_CACHE_TTL             Cache TTL (e.g., 5m)")
	fmt.Println("  HNSW_AUTH_ENABLED          Require bearer tokens (true/false)")
	fmt.Println("  HNSW_AUTH_SECRET           JWT HMAC signing secret")
	fmt.Println("  HNSW_RATE_LIMIT_ENABLED    Enable rate limiting (true/false)")
	fmt.Println("  HNSW_RATE_LIMIT_RPS        Requests per second per client")
	fmt.Println("  HNSW_RATE_LIMIT_BURST      Burst allowance per client")
	fmt.Println("  HNSW_LOG_LEVEL             Log level (debug/info/warn/error)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Start with default configuration")
	fmt.Println("  hnswgo-server")
	fmt.Println()
	fmt.Println("  # Start on custom port")
	fmt.Println("  hnswgo-server -port 9000")
	fmt.Println()
	fmt.Println("  # Start with environment variables")
	fmt.Println("  HNSW_PORT=9000 HNSW_M=32 hnswgo-server")
	fmt.Println()
}
