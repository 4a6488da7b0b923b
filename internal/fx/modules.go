package fx

import (
	"rift-tracker/internal/api"
	"rift-tracker/internal/config"
	"rift-tracker/internal/database"
	"rift-tracker/internal/logger"
	"rift-tracker/internal/queue"
	"rift-tracker/internal/repository"
	"rift-tracker/internal/resolver"
	"rift-tracker/internal/server"
	"rift-tracker/internal/service"
	"rift-tracker/internal/worker"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	// storage
	fx.Provide(database.NewClient),
	fx.Provide(database.NewDatabase),
	fx.Provide(queue.NewRedisClient),
	fx.Provide(queue.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewRawMatchRepository),
	fx.Provide(repository.NewCleanMatchRepository),
	fx.Provide(repository.NewStatsRepository),
	// api client
	fx.Provide(api.NewRiotClient),
	fx.Provide(resolver.New),
	// svc
	fx.Provide(service.NewPlayerService),
	fx.Provide(service.NewFetchService),
	fx.Provide(service.NewNormalizeService),
	fx.Provide(service.NewDispatchService),
	fx.Provide(service.NewMaintenanceService),
	// background workers
	fx.Provide(worker.NewPool),
	fx.Provide(worker.NewScheduler),
	// server
	fx.Provide(server.New),
)
