// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"atlas/internal/pkg/apperr"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const defaultCallTimeout = 5 * time.Second

// Client 是一个可追踪的、可注入的HTTP客户端。
// 所有对协作方服务（购物车、商品目录、运费、支付、库存）的出站调用都必须经过它，
// 统一处理链路透传、鉴权头和单次调用超时。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	// Timeout 是单次出站调用的超时上限；调用方传入的 ctx 先到期则以 ctx 为准。
	Timeout time.Duration
}

// NewClient 创建一个新的客户端实例
func NewClient(tracer trace.Tracer) *Client {
	// 不在 http.Client 上设置 Timeout 字段，让超时完全受控于每次请求传入的 context
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		Timeout:    defaultCallTimeout,
	}
}

// PostJSON 向协作方发送一个 JSON 请求体，并将 JSON 响应解码到 respBody（可为 nil）。
func (c *Client) PostJSON(ctx context.Context, serviceURL, token string, reqBody, respBody any) error {
	return c.do(ctx, http.MethodPost, serviceURL, token, reqBody, respBody)
}

// GetJSON 发起一个 GET 调用并将 JSON 响应解码到 respBody。
func (c *Client) GetJSON(ctx context.Context, serviceURL, token string, respBody any) error {
	return c.do(ctx, http.MethodGet, serviceURL, token, nil, respBody)
}

func (c *Client) do(ctx context.Context, method, serviceURL, token string, reqBody, respBody any) error {
	parsedURL, err := url.Parse(serviceURL)
	if err != nil {
		return err
	}
	// 从 URL 中解析出服务名用于 Span
	spanName := fmt.Sprintf("call-%s", strings.Split(parsedURL.Host, ":")[0])

	ctx, span := c.Tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// 每次远程调用都有独立的超时，超时与显式失败走同一条补偿路径
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			span.RecordError(err)
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), body)
	if err != nil {
		span.RecordError(err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	span.SetAttributes(
		attribute.String("http.url", parsedURL.String()),
		attribute.String("http.method", method),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return apperr.External("call %s: %v", serviceURL, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusConflict {
		// 409 是协作方的业务冲突（库存不足、订单状态不匹配），不是服务故障
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := apperr.Conflict("service %s: %s", parsedURL.Host, strings.TrimSpace(string(snippet)))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := apperr.External("service %s returned status %s: %s", serviceURL, resp.Status, strings.TrimSpace(string(snippet)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			span.RecordError(err)
			return apperr.External("decode response from %s: %v", serviceURL, err)
		}
	}
	return nil
}
