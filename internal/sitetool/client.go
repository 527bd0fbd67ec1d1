package sitetool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"sitetools/internal/core"
)

const (
	DefaultBaseURL   = "https://v2.xxapi.cn/api"
	DefaultUserAgent = "xiaoxiaoapi/1.0.0 (https://xxapi.cn)"
)

// Config — неизменяемые параметры доступа к API.
type Config struct {
	BaseURL string
	Headers map[string]string
}

// DefaultConfig возвращает адрес и заголовки публичного API xxapi.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Headers: map[string]string{"User-Agent": DefaultUserAgent},
	}
}

// Client запрашивает эндпоинты API и всегда возвращает корректный конверт.
type Client struct {
	baseURL string
	headers map[string]string
	fetcher Fetcher
	logger  *slog.Logger
}

// NewClient копирует конфигурацию, чтобы ее нельзя было изменить снаружи.
func NewClient(cfg Config, fetcher Fetcher, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		headers: headers,
		fetcher: fetcher,
		logger:  logger,
	}
}

// URL строит адрес запроса {base}/{endpoint}?params.
func (c *Client) URL(e Endpoint, params url.Values) string {
	u := c.baseURL + "/" + e.Path()
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// Call выполняет запрос. Сбой транспорта превращается в {500, "服务暂时不可用"},
// любой другой сбой — в {500, "内部服务器错误"}.
func (c *Client) Call(ctx context.Context, e Endpoint, params url.Values) (env Envelope) {
	u := c.URL(e, params)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("api call panicked", "endpoint", e.String(), "panic", fmt.Sprint(r))
			env = failureEnvelope(msgInternal)
		}
	}()

	c.logger.Info("api request", "endpoint", e.String(), "url", u)
	body, err := c.fetcher.FetchJSON(ctx, u, c.headers)
	if err != nil {
		var te *TransportError
		if errors.As(err, &te) {
			c.logger.Error("api request failed", "endpoint", e.String(), "err", err)
			return failureEnvelope(msgUnavailable)
		}
		c.logger.Error("api request error", "endpoint", e.String(), "err", err)
		return failureEnvelope(msgInternal)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		c.logger.Error("decode api envelope", "endpoint", e.String(), "err", err)
		return failureEnvelope(msgInternal)
	}
	return env
}

// Run выполняет запрос и рендерит ответ для чата.
func (c *Client) Run(ctx context.Context, e Endpoint, params url.Values) core.Reply {
	env := c.Call(ctx, e, params)
	reply, err := e.Render(env)
	if err != nil {
		c.logger.Error("render api response", "endpoint", e.String(), "code", env.Code, "err", err)
		return Failure(msgInternal)
	}
	return reply
}
