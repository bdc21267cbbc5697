// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 设置服务名等全局字段，应在服务启动时调用一次。
func Init(serviceName string) {
	base = base.With().Str("service", serviceName).Logger()
}

// Logger 返回全局的基础 logger。
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回一个绑定了当前 trace_id / span_id 的 logger。
// 这样日志和 Jaeger 中的链路可以互相检索。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &base
	}
	l := base.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &l
}
