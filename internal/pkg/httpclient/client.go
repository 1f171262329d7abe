// internal/pkg/httpclient/client.go

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 把逻辑服务名解析成 base URL，例如 "inventory-service" -> "http://10.0.0.3:3002"。
type Resolver interface {
	Resolve(service string) (string, error)
}

// StaticResolver 是基于配置的固定映射。
type StaticResolver map[string]string

func (s StaticResolver) Resolve(service string) (string, error) {
	base, ok := s[service]
	if !ok || base == "" {
		return "", fmt.Errorf("no address configured for service %q", service)
	}
	return strings.TrimRight(base, "/"), nil
}

// StatusError 表示下游返回了非 2xx 状态码。
type StatusError struct {
	Service    string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service %s %s returned status %d", e.Service, e.Path, e.StatusCode)
}

// Client 是一个可追踪的、可注入的HTTP客户端
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	Resolver   Resolver
}

// NewClient 创建一个新的客户端实例。http.Client 不设置 Timeout，超时完全由每次请求的 ctx 控制。
func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		Resolver:   resolver,
	}
}

// PostJSON 以 JSON 发送 in，并把 2xx 响应解码到 out（out 可为 nil）。
func (c *Client) PostJSON(ctx context.Context, service, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(raw)
	}
	return c.do(ctx, http.MethodPost, service, path, body, out)
}

// GetJSON 发送 GET 请求并解码响应。
func (c *Client) GetJSON(ctx context.Context, service, path string, out any) error {
	return c.do(ctx, http.MethodGet, service, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, service, path string, body io.Reader, out any) error {
	base, err := c.Resolver.Resolve(service)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", service)
	}
	target := base + path

	ctx, span := c.Tracer.Start(ctx, fmt.Sprintf("call-%s", service), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	span.SetAttributes(
		attribute.String("http.url", target),
		attribute.String("http.method", method),
		attribute.String("peer.service", service),
	)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	InjectCorrelation(ctx, req.Header)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "%s %s", method, target)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Service: service, Path: path, StatusCode: resp.StatusCode, Body: raw}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "decode response body")
		}
	}
	return nil
}
