// cmd/stock-service/main.go
package main

import (
	"context"
	"time"

	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/redis"
	"atlas/internal/service/stock/actor"
	"atlas/internal/service/stock/application"
	stockdomain "atlas/internal/service/stock/domain"
	"atlas/internal/service/stock/infrastructure"
	"atlas/internal/service/stock/interfaces"

	"go.opentelemetry.io/otel"
)

const (
	serviceName = "stock-service"
	servicePort = 8082
)

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()

			// 台账优先走 Redis（扣减用 Lua 原子脚本），连不上时退化为内存台账
			var ledger stockdomain.Ledger
			redisClient, err := redis.NewClient(cfg.Infra.Redis.Addrs)
			if err != nil {
				logger.Logger().Warn().Err(err).Msg("redis unavailable, using in-memory stock ledger")
				ledger = infrastructure.NewMemoryLedger()
			} else {
				redisLedger, err := infrastructure.NewRedisLedger(redisClient)
				if err != nil {
					logger.Logger().Fatal().Err(err).Msg("failed to initialize redis stock ledger")
				}
				ledger = redisLedger
				appCtx.OnShutdown(func(ctx context.Context) { redisClient.Close() })
			}

			actors := actor.NewManager(ledger)
			appCtx.OnShutdown(func(ctx context.Context) { actors.Close() })

			sweepInterval := time.Duration(cfg.Stock.SweepIntervalSeconds) * time.Second
			service := application.NewStockService(actors, ledger, otel.Tracer(serviceName), sweepInterval)
			appCtx.Go(service.RunSweeper)

			interfaces.NewStockHandler(service).RegisterRoutes(appCtx.Mux)
		},
	})
}
