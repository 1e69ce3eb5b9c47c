package main

import (
	"context"
	"log"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openfleet/fleetd/adapters/api"
	"github.com/openfleet/fleetd/adapters/events"
	"github.com/openfleet/fleetd/adapters/signer/custody"
	"github.com/openfleet/fleetd/adapters/signer/local"
	"github.com/openfleet/fleetd/adapters/store"
	"github.com/openfleet/fleetd/ports"
	"github.com/openfleet/fleetd/service"
	transport "github.com/openfleet/fleetd/transport/http"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	addr := getenv("LISTEN_ADDR", ":9000")
	backendURL := getenv("FLEET_API_URL", "http://localhost:3007")

	// Store and event publisher: Redis when configured, in-memory otherwise.
	var (
		kv  ports.Store
		pub ports.Publisher
	)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Fatal("failed to parse Redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		kv = store.NewRedisStore(redisClient)

		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			logger.Fatal("failed to create Redis publisher", zap.Error(err))
		}
		pub = events.NewWatermillPublisher(publisher)
	} else {
		logger.Info("REDIS_URL not set, using in-memory store without event publishing")
		kv = store.NewMemoryStore()
	}

	apiClient := api.NewClient(api.Config{
		BaseURL: backendURL,
		Tokens:  api.NewStoreTokenSource(kv),
		Logger:  logger,
	})

	// Signer: local key when provided, remote custody otherwise.
	var signer ports.Signer
	if keyHex := os.Getenv("SIGNER_PRIVATE_KEY"); keyHex != "" {
		localSigner, err := local.NewSignerFromHex(keyHex)
		if err != nil {
			logger.Fatal("invalid SIGNER_PRIVATE_KEY", zap.Error(err))
		}
		logger.Info("using local signer", zap.String("address", localSigner.Address()))
		signer = localSigner
	} else {
		custodyClient, err := custody.NewClient(custody.ClientConfig{
			BaseURL:           os.Getenv("CUSTODY_API_URL"),
			OrganizationID:    os.Getenv("CUSTODY_ORG_ID"),
			SubOrganizationID: os.Getenv("CUSTODY_SUB_ORG_ID"),
		})
		if err != nil {
			logger.Fatal("signer configuration missing: set SIGNER_PRIVATE_KEY or CUSTODY_API_URL/CUSTODY_ORG_ID/CUSTODY_SUB_ORG_ID", zap.Error(err))
		}
		signer = custody.NewSigner(custodyClient, kv, logger)
	}

	onboarding := service.NewOnboarding(apiClient, signer, pub, logger)
	directory := service.NewDirectory(apiClient, kv, logger)
	directory.Load(ctx)
	if oracleID := os.Getenv("ORACLE_ID"); oracleID != "" {
		apiClient.SetOracle(oracleID)
	}

	handlers := transport.NewHandlers(
		onboarding,
		service.NewJobRegistry(),
		directory,
		service.NewSettings(apiClient, kv, logger),
		service.NewFleet(apiClient, logger),
		service.NewIdentity(apiClient, logger),
		logger,
	)

	router := transport.SetupRouter(handlers, kv)

	logger.Info("starting fleetd", zap.String("addr", addr), zap.String("backend", backendURL))
	if err := router.Run(addr); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
