// cmd/push-gateway/main.go
package main

import (
	"atlas/internal/pkg/bootstrap"
	"atlas/internal/service/push"
)

const (
	serviceName = "push-gateway"
	servicePort = 8088

	consumerGroup = "push-gateway"
)

// 推送网关：订阅订单事件，通过 WebSocket 实时推给下单用户。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()

			hub := push.NewHub()
			appCtx.Go(hub.Run)

			consumer := push.NewEventConsumer(cfg.Infra.Kafka.Brokers,
				cfg.Infra.Kafka.OrderEventsTopic, consumerGroup, hub)
			appCtx.Go(consumer.Run)

			hub.RegisterRoutes(appCtx.Mux)
		},
	})
}
