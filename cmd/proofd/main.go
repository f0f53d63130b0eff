package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Heisenberg1912/filecoin/internal/deals"
	"github.com/Heisenberg1912/filecoin/internal/gateway"
	"github.com/Heisenberg1912/filecoin/internal/notifications"
	"github.com/Heisenberg1912/filecoin/internal/proofs"
	"github.com/Heisenberg1912/filecoin/internal/registry"
	"github.com/Heisenberg1912/filecoin/internal/storage"
	"github.com/Heisenberg1912/filecoin/internal/store"
	"github.com/Heisenberg1912/filecoin/internal/webhooks"
	"github.com/Heisenberg1912/filecoin/internal/webserver"
)

func main() {
	ctx := context.Background()

	// Initialize Logrus
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)

	// Load .env file if present
	err := godotenv.Load()
	if err != nil {
		logrus.Info("No .env file found for proofd configuration. Proceeding with environment variables.")
	}

	// Load database configuration
	dbConfig, err := store.LoadDatabaseConfig()
	if err != nil {
		logger.Fatalf("Failed to load database configuration: %v", err)
	}

	// Initialize Database
	db, err := store.Open(dbConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize %s database: %v", dbConfig.Type, err)
	}
	defer db.Close(ctx)
	logger.Infof("%s database initialized successfully", dbConfig.Type)

	// Load registry configuration
	registryCfg, err := registry.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load registry configuration: %v", err)
	}

	// Initialize Registry
	reg, err := registry.Open(ctx, registryCfg, db)
	if err != nil {
		logger.Fatalf("Failed to initialize registry: %v", err)
	}
	logger.Infof("Registry initialized in %s mode", registryCfg.Mode)

	// Load storage configuration
	storageCfg, err := storage.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load storage configuration: %v", err)
	}

	// Initialize content-addressed storage
	blobStore, err := storage.Open(ctx, storageCfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	logger.Infof("Storage initialized in %s mode", storageCfg.Mode)

	// Load notification configuration
	notificationCfg, err := notifications.LoadNotificationConfig()
	if err != nil {
		logger.Fatalf("Failed to load notification configuration: %v", err)
	}

	// Initialize Notifier
	notifier, err := notifications.NewNotifier(notificationCfg)
	if err != nil {
		logger.Fatalf("Failed to initialize notifier: %v", err)
	}
	if notifier != nil {
		logger.Info("Notifier initialized successfully")
	} else {
		logger.Warn("No notification URLs configured. Skipping operator alerts.")
	}

	// Initialize webhook dispatcher
	dispatcher := webhooks.NewDispatcher(db)

	// Initialize gateway monitor
	gateways := gateway.NewMonitor(gateway.DefaultEndpoints())

	// Load deal-tracking configuration
	dealsCfg, err := deals.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load deal-tracking configuration: %v", err)
	}

	source := deals.OpenSource(dealsCfg)
	if source != nil {
		logger.Infof("Deal status source initialized: %s", source.SourceName())
	} else {
		logger.Warn("No deal status endpoint configured. Deal queries will be simulated.")
	}
	tracker := deals.NewTracker(source)

	// Load certification configuration
	proofsCfg, err := proofs.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load certification configuration: %v", err)
	}

	// Initialize Certifier
	certifier := proofs.NewCertifier(proofs.CertifierConfig{
		Storage:    blobStore,
		Registry:   reg,
		Database:   db,
		Dispatcher: dispatcher,
		Notifier:   notifier,
		Registrant: proofsCfg.Registrant,
		GatewayURL: proofsCfg.GatewayURL,
		Explorer:   registryCfg.Explorer,
	})

	webServerConfig, err := webserver.NewWebserverConfig()
	if err != nil {
		logger.Fatalf("Failed to load webserver configuration: %v", err)
	}

	// Initialize Web Server
	webServer := webserver.NewWebServer(certifier, gateways, tracker, db, webServerConfig, logger)

	// Create a cancellable context
	ctxCancel, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start the web server
	server, err := webserver.StartWebServer(ctxCancel, webServer)
	if err != nil {
		logger.Fatalf("Failed to start web server: %v", err)
	}

	// Alert the operator when every gateway goes unhealthy.
	go watchGateways(ctxCancel, gateways, notifier, logger)

	// Listen for OS signals to handle graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	logger.Infof("Received signal: %s. Initiating shutdown...", sig)

	// Initiate shutdown
	cancel()

	// Create a context with timeout for the server's shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()

	// Shutdown the web server gracefully
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Failed to gracefully shutdown the server: %v", err)
	}

	logger.Info("Shutdown complete. Exiting.")
}

// watchGateways periodically checks gateway health and alerts once per
// outage when no endpoint is reachable.
func watchGateways(ctx context.Context, gateways *gateway.Monitor, notifier *notifications.Notifier, logger *logrus.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	alerted := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthy := gateways.HealthyCount(ctx)
			if healthy == 0 {
				logger.Error("All gateway endpoints are unhealthy")
				if !alerted {
					notifier.Send("Gateway outage", "All gateway endpoints are unhealthy; retrieval is degraded.")
					alerted = true
				}
			} else if alerted {
				logger.WithField("healthy", healthy).Info("Gateway health recovered")
				notifier.Send("Gateway recovery", "Gateway endpoints are reachable again.")
				alerted = false
			}
		}
	}
}
