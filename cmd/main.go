/**
 * @description
 * This is the main entry point for the compliance-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, message broker, repository, the core application service, and the
 * HTTP server. It wires everything together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/remitta/compliance-service/internal/api"
	"github.com/remitta/compliance-service/internal/app"
	"github.com/remitta/compliance-service/internal/config"
	"github.com/remitta/compliance-service/internal/store"
	rmrabbit "github.com/remitta/compliance-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.TenantJWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"tenant jwt secret must be configured\" env=TENANT_JWT_SECRET")
	}

	// Regulatory thresholds are validated up front. A misconfigured cap stops
	// the service rather than running it permissive.
	limits, err := cfg.Limits()
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid regulatory limits\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting compliance-service\" port=%s window_cap=%s period_days=%d",
		cfg.ServerPort, limits.WindowCap, limits.PeriodDays)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 10
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the RabbitMQ producer for transfer lifecycle events. Event
	// delivery is best effort; the service stays up without a broker.
	var publisher rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable, using fallback\" err=%v", err)
		publisher = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		publisher = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	var redisClient *redis.Client
	if cfg.EligibilityRateLimitPerMinute > 0 {
		if cfg.RedisURL == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing, eligibility rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed, eligibility rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				pingErr := redisClient.Ping(pingCtx).Err()
				cancelPing()
				if pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed, eligibility rate limiting disabled\" err=%v", pingErr)
					_ = redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	complianceService := app.NewService(repository, publisher, limits)
	if redisClient != nil {
		complianceService.SetEligibilityRateLimiter(
			app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.EligibilityRateLimitPerMinute,
		)
	}

	// Start the ingestion consumer so sends executed outside the HTTP API are
	// still recorded against the rolling window.
	if rabbitProducer != nil {
		ingestConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
		if err != nil {
			log.Printf("level=warn component=bootstrap msg=\"ingest consumer unavailable\" err=%v", err)
		} else {
			defer ingestConsumer.Close()
			ingestHandler := app.NewTransferIngestConsumer(complianceService)
			err = ingestConsumer.ConsumeWithBindings(rmrabbit.IngestExchange, "compliance.transfer.ingest", map[string]func([]byte) bool{
				rmrabbit.RoutingKeyTransferExecuted: ingestHandler.HandleMessage,
			})
			if err != nil {
				log.Printf("level=warn component=bootstrap msg=\"ingest consumer bind failed\" err=%v", err)
			} else {
				log.Println("level=info component=bootstrap msg=\"ingest consumer started\" queue=compliance.transfer.ingest")
			}
		}
	}

	// Initialize the API handlers.
	complianceHandlers := api.NewComplianceHandlers(complianceService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/compliance", api.ComplianceRoutes(complianceHandlers, cfg.TenantJWTSecret))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
