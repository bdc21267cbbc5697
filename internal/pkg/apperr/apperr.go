// Package apperr 定义了协调器的错误分类。
//
// Saga 的传播策略依赖错误的"种类"而不是具体文案：
//   - validation: 入参非法，在产生任何副作用之前被拦截，不需要补偿；
//   - conflict: 业务冲突（购物车为空、库存不足、订单状态不匹配等）；
//   - external: 下游协作方不可达或返回了意外的结构；
//   - reservation_expired: 对一个已过期预占执行 Reduce，
//     这是资金可能已扣而库存无法落账的危险场景，需要人工对账。
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrExternal           = errors.New("external service error")
	ErrReservationExpired = errors.New("reservation expired")
)

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

// Validation 构造一个校验类错误。
func Validation(format string, args ...any) error { return wrap(ErrValidation, format, args...) }

// Conflict 构造一个业务冲突类错误。
func Conflict(format string, args ...any) error { return wrap(ErrConflict, format, args...) }

// External 构造一个下游服务类错误。
func External(format string, args ...any) error { return wrap(ErrExternal, format, args...) }

// ReservationExpired 构造一个预占已过期错误。
func ReservationExpired(format string, args ...any) error {
	return wrap(ErrReservationExpired, format, args...)
}

// Kind 返回错误的分类标识，用于日志与监控指标的维度。
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	case errors.Is(err, ErrValidation):
		return "validation"

	case errors.Is(err, ErrReservationExpired):
		return "reservation_expired"

	case errors.Is(err, ErrConflict):
		return "conflict"

	case errors.Is(err, ErrExternal):
		return "external"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// HTTPStatus 把错误分类映射到对外的 HTTP 状态码。
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, ErrConflict),
		errors.Is(err, ErrReservationExpired):
		return http.StatusConflict

	case errors.Is(err, ErrExternal):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}
