// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"atlas/internal/pkg/logger"
	"atlas/internal/pkg/nacos"
	"atlas/internal/pkg/tracing"
)

// AppCtx 传递给各服务的注册函数。
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client

	// Go 启动一个随服务生命周期运行的后台任务（Kafka 消费者、过期清扫器等）。
	// 服务关停时传入的 ctx 会被取消。
	Go func(task func(ctx context.Context))

	// OnShutdown 注册一个在关停流程中执行的清理函数（LIFO）。
	OnShutdown func(fn func(ctx context.Context))
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx AppCtx) // 每个服务注册自己独特的 HTTP 路由与后台任务
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	Init()
	logger.Init(info.ServiceName)
	cfg := GetCurrentConfig()

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Logger().Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 2. Nacos 注册（地址未配置时跳过，便于本地开发和测试）
	var namingClient *nacos.Client
	nacosAddrs := getEnv("NACOS_SERVER_ADDRS", "")
	ip, _ := getOutboundIP()
	if nacosAddrs != "" {
		namingClient, err = nacos.NewNacosClient(nacosAddrs,
			getEnv("NACOS_NAMESPACE", ""), getEnv("NACOS_GROUP", "DEFAULT_GROUP"))
		if err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Logger().Fatal().Err(err).Msg("failed to register service with nacos")
		}
	} else {
		logger.Logger().Printf("NACOS_SERVER_ADDRS not set, skipping service registration")
	}

	// 3. 后台任务与关停钩子
	bgCtx, bgCancel := context.WithCancel(context.Background())
	var bgWg sync.WaitGroup

	var shutdownMu sync.Mutex
	var shutdownFns []func(ctx context.Context)

	appCtx := AppCtx{
		Mux:   http.NewServeMux(),
		Nacos: namingClient,
		Go: func(task func(ctx context.Context)) {
			bgWg.Add(1)
			go func() {
				defer bgWg.Done()
				task(bgCtx)
			}()
		},
		OnShutdown: func(fn func(ctx context.Context)) {
			shutdownMu.Lock()
			defer shutdownMu.Unlock()
			shutdownFns = append(shutdownFns, fn)
		},
	}
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(appCtx)
	}

	// 4. 启动 HTTP Server
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: appCtx.Mux}
	go func() {
		logger.Logger().Printf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger().Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger().Printf("Shutting down service %s...", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 按与注册相反的顺序执行清理 (后进先出)
	// a. 从 Nacos 注销，停止新流量进入
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Logger().Error().Err(err).Msg("error deregistering from nacos")
		}
	}

	// b. 关闭 HTTP 服务器，排干在途请求
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down http server")
	}

	// c. 取消并等待后台任务
	bgCancel()
	bgWg.Wait()

	// d. 执行服务注册的清理函数
	shutdownMu.Lock()
	fns := shutdownFns
	shutdownMu.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i](ctx)
	}

	// e. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		logger.Logger().Error().Err(err).Msg("error shutting down tracer provider")
	}

	logger.Logger().Printf("Service %s gracefully shut down.", info.ServiceName)
}

// getOutboundIP 获取本机对外 IP，用于服务注册。
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1", err
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
