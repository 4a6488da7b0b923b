package main

import (
	"context"
	"fmt"
	"net/http"

	"rift-tracker/internal/config"
	"rift-tracker/internal/constants"
	fxmodules "rift-tracker/internal/fx"
	"rift-tracker/internal/middleware"
	"rift-tracker/internal/server"
	"rift-tracker/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	srv *server.Server,
	pool *worker.Pool,
	scheduler *worker.Scheduler,
	cfg *config.Config,
	mongoClient *mongo.Client,
	redisClient *redis.Client,
	logger zerolog.Logger,
) {
	mux := http.NewServeMux()
	srv.Register(mux)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(mux))

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			pool.Start()
			scheduler.Start()
			go func() {
				logger.Info().Str("addr", httpServer.Addr).Msg("server starting")
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			scheduler.Stop()
			pool.Stop()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := redisClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing redis connection")
			}
			if err := mongoClient.Disconnect(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}

			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
