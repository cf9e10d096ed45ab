package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	echoapi "github.com/coinkeep/finauth/api/echo"
	"github.com/coinkeep/finauth/cache"
	redisstore "github.com/coinkeep/finauth/cache/redis"
	"github.com/coinkeep/finauth/config"
	"github.com/coinkeep/finauth/domain"
	"github.com/coinkeep/finauth/internal/auth"
	"github.com/coinkeep/finauth/internal/server"
	"github.com/coinkeep/finauth/mongodb"
	"github.com/coinkeep/finauth/services"
	"github.com/coinkeep/finauth/tracing"
)

var (
	httpServer     *http.Server
	tracerProvider *sdktrace.TracerProvider
)

func main() {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize Logger
	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	if cfg.LogPretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(logLevel).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stderr).Level(logLevel).With().Timestamp().Logger()
	}
	if parseErr != nil {
		log.Warn().Str("configured_log_level", cfg.LogLevel).
			Msg("Invalid LOG_LEVEL configured, defaulting to 'info'")
	}

	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("mongo_db_name", cfg.MongoDBName).
		Bool("redis_code_store", cfg.RedisAddr != "").
		Msg("Starting finauth server")

	// Initialize OpenTelemetry TracerProvider
	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}
	tracerProvider = tp

	// --- Initialize Dependencies ---
	ctx := context.Background()
	if initErr := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); initErr != nil {
		log.Fatal().Err(initErr).Msg("Failed to initialize MongoDB connection")
	}
	db := mongodb.GetDB()

	userRepo, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize UserRepository")
	}

	// Authorization codes live in Redis when an address is configured,
	// otherwise in process memory.
	var codeRepo domain.AuthCodeRepository
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
			log.Fatal().Err(pingErr).Msg("Failed to connect to Redis")
		}
		codeRepo = redisstore.NewCodeStore(redisClient, cfg.RedisKeyPrefix)
	} else {
		codeRepo = cache.NewMemoryCodeStore()
	}

	// Services
	passwordHasher := auth.NewBcryptPasswordHasher(0)
	tokenSigner := services.NewTokenSigner()
	tokenSigner.AddKeySigner(cfg.JWTSecretKey)

	authService := services.NewAuthService(userRepo, passwordHasher)
	codeService := services.NewAuthCodeService(codeRepo)
	tokenService := services.NewTokenService(tokenSigner, cfg.JWTSecretKey, cfg.TokenIssuer)

	authAPI := echoapi.NewAuthAPI(
		authService,
		codeService,
		tokenService,
		userRepo,
		time.Duration(cfg.AccessTokenTTLMin)*time.Minute,
		time.Duration(cfg.AuthCodeTTLMin)*time.Minute,
	)

	// Setup and start the HTTP server
	httpServer = server.NewHTTPServer(cfg, authAPI)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	receivedSignal := <-quit

	log.Info().Str("signal", receivedSignal.String()).Msg("Shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("TracerProvider shutdown error")
		}
	}

	mongodb.CloseMongoDB(shutdownCtx)

	log.Info().Msg("Server gracefully stopped.")
}
