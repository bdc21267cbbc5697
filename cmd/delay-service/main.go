// cmd/delay-service/main.go
package main

import (
	"atlas/internal/pkg/bootstrap"
	"atlas/internal/pkg/mq"
)

const (
	serviceName = "delay-service"
	servicePort = 8087

	consumerGroup = "delay-service"
)

// 延迟消息中转服务：消费延迟主题，到期后把消息转投真实主题。
func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        servicePort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := bootstrap.GetCurrentConfig()
			relay := mq.NewDelayRelay(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DelayTopic, consumerGroup)
			appCtx.Go(relay.Run)
		},
	})
}
