// cmd/order-service/main.go
package main

import (
	"context"
	"time"

	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/httpclient"
	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/zookeeper"
	"atlas/internal/service/order/application"
	"atlas/internal/service/order/application/saga"
	"atlas/internal/service/order/domain"
	"atlas/internal/service/order/domain/port"
	"atlas/internal/service/order/infrastructure"
	"atlas/internal/service/order/infrastructure/adapter"
	"atlas/internal/service/order/interfaces"

	"go.opentelemetry.io/otel"
)

const (
	serviceName = "order-service"
	servicePort = 8081

	timeoutConsumerGroup = "order-service-timeout"
)

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()
			tracer := otel.Tracer(serviceName)

			// 订单仓储：MySQL 不可用时退化为内存实现，便于本地开发
			var orders domain.OrderRepository
			if cfg.Infra.Mysql.DSN != "" {
				repo, err := infrastructure.NewGormOrderRepository(cfg.Infra.Mysql.DSN)
				if err != nil {
					logger.Logger().Fatal().Err(err).Msg("failed to connect order database")
				}
				orders = repo
			} else {
				logger.Logger().Warn().Msg("MYSQL_DSN not set, using in-memory order repository")
				orders = infrastructure.NewMemoryOrderRepository()
			}

			// 协作方客户端共享同一个可追踪的 HTTP 客户端
			client := httpclient.NewClient(tracer)

			publisher := infrastructure.NewKafkaEventPublisher(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderEventsTopic)
			appCtx.OnShutdown(func(ctx context.Context) { publisher.Close() })

			var scheduler port.DelayScheduler
			if cfg.App.FeatureFlags.EnablePaymentTimeout {
				kafkaScheduler := adapter.NewKafkaDelayScheduler(cfg.Infra.Kafka.Brokers,
					cfg.Infra.Kafka.DelayTopic, cfg.Infra.Kafka.TimeoutCheckTopic)
				appCtx.OnShutdown(func(ctx context.Context) { kafkaScheduler.Close() })
				scheduler = kafkaScheduler
			}

			// 单副本默认用进程内锁，多副本部署开启 Zookeeper 锁
			var locker port.Locker = infrastructure.NewLocalLocker()
			if cfg.App.FeatureFlags.EnableZookeeperLock {
				conn, err := zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
				if err != nil {
					logger.Logger().Fatal().Err(err).Msg("failed to connect zookeeper")
				}
				appCtx.OnShutdown(func(ctx context.Context) { conn.Close() })
				locker = infrastructure.NewZkLocker(conn)
			}

			orchestrator := saga.NewOrchestrator(saga.Deps{
				Orders:         orders,
				Cart:           adapter.NewCartAdapter(client, cfg.Services.CartURL),
				Catalog:        adapter.NewCatalogAdapter(client, cfg.Services.CatalogURL),
				Shipping:       adapter.NewShippingAdapter(client, cfg.Services.ShippingURL),
				Payment:        adapter.NewPaymentAdapter(client, cfg.Services.PaymentURL),
				Stock:          adapter.NewStockAdapter(client, cfg.Services.StockURL),
				Publisher:      publisher,
				Scheduler:      scheduler,
				Locker:         locker,
				Tracer:         tracer,
				ReservationTTL: time.Duration(cfg.Order.ReservationTTLMinutes) * time.Minute,
			})

			flowTimeout := time.Duration(cfg.Order.ProcessingTimeoutSeconds) * time.Second
			service := application.NewService(orchestrator, orders, tracer, flowTimeout)

			if cfg.App.FeatureFlags.EnablePaymentTimeout {
				consumer := interfaces.NewPaymentTimeoutConsumer(cfg.Infra.Kafka.Brokers,
					cfg.Infra.Kafka.TimeoutCheckTopic, timeoutConsumerGroup, service)
				appCtx.Go(consumer.Run)
			}

			interfaces.NewOrderHandler(service).RegisterRoutes(appCtx.Mux)
		},
	})
}
