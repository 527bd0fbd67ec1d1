package sitetool

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBytes = 4 << 20

var errNotJSON = errors.New("response body is not JSON")

// Fetcher получает JSON по URL. Любой неуспех (сеть, таймаут, не-2xx,
// тело не JSON) возвращается как *TransportError.
type Fetcher interface {
	FetchJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error)
}

// TransportError описывает сбой доставки запроса к API.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NewHTTPClient создает общий пул соединений к API.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- режим включается оператором в конфиге.
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// HTTPFetcher реализует Fetcher поверх net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher оборачивает клиент; клиент безопасен для конкурентного использования.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(0, false)
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) FetchJSON(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if !json.Valid(body) {
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Err: errNotJSON}
	}
	return body, nil
}

// Close закрывает простаивающие соединения пула.
func (f *HTTPFetcher) Close() {
	f.client.CloseIdleConnections()
}
