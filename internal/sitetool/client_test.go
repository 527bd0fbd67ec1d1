package sitetool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

type fakeFetcher struct {
	body    string
	err     error
	panics  bool
	url     string
	headers map[string]string
	calls   int
}

func (f *fakeFetcher) FetchJSON(ctx context.Context, u string, headers map[string]string) ([]byte, error) {
	f.calls++
	f.url, f.headers = u, headers
	if f.panics {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestClientURLAndHeaders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.example/api/"
	f := &fakeFetcher{body: `{"code":200,"msg":"ok","data":{"address":"bing.com","ping":"1ms","port":"443"}}`}
	c := NewClient(cfg, f, quietLogger())
	cfg.Headers["User-Agent"] = "mutated"

	params := url.Values{}
	params.Set("address", "bing.com")
	params.Set("port", "443")
	c.Run(context.Background(), EndpointTCPing, params)

	if f.url != "https://api.example/api/tcping?address=bing.com&port=443" {
		t.Fatalf("unexpected url: %s", f.url)
	}
	if f.headers["User-Agent"] != DefaultUserAgent {
		t.Fatalf("client config must not change after construction, got %q", f.headers["User-Agent"])
	}
}

func TestClientEscapesParams(t *testing.T) {
	c := NewClient(DefaultConfig(), &fakeFetcher{}, quietLogger())
	params := url.Values{}
	params.Set("url", "https://www.bing.com/search?q=a&b=c")
	want := "https://v2.xxapi.cn/api/screenshot?url=https%3A%2F%2Fwww.bing.com%2Fsearch%3Fq%3Da%26b%3Dc"
	if got := c.URL(EndpointScreenshot, params); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestClientCallMapsFailures(t *testing.T) {
	cases := []struct {
		name string
		f    *fakeFetcher
		want string
	}{
		{"transport", &fakeFetcher{err: &TransportError{URL: "x", Err: errors.New("refused")}}, "服务暂时不可用"},
		{"other error", &fakeFetcher{err: errors.New("weird")}, "内部服务器错误"},
		{"bad envelope", &fakeFetcher{body: `{"code":"200"}`}, "内部服务器错误"},
		{"panic", &fakeFetcher{panics: true}, "内部服务器错误"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewClient(DefaultConfig(), tc.f, quietLogger())
			env := c.Call(context.Background(), EndpointPing, url.Values{"url": {"bing.com"}})
			if env.Code != 500 || env.Msg != tc.want {
				t.Fatalf("unexpected envelope: %#v", env)
			}
			if got := c.Run(context.Background(), EndpointPing, url.Values{"url": {"bing.com"}}).Text(); got != "错误："+tc.want {
				t.Fatalf("unexpected reply: %q", got)
			}
		})
	}
}

func TestClientRunRendersAPIFailure(t *testing.T) {
	c := NewClient(DefaultConfig(), &fakeFetcher{body: `{"code":404,"msg":"not found"}`}, quietLogger())
	if got := c.Run(context.Background(), EndpointWhois, url.Values{"domain": {"x"}}).Text(); got != "错误：not found" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestClientRunShapeErrorIsInternal(t *testing.T) {
	c := NewClient(DefaultConfig(), &fakeFetcher{body: `{"code":200,"msg":"ok","data":[1,2]}`}, quietLogger())
	if got := c.Run(context.Background(), EndpointPortScan, url.Values{"address": {"8.8.8.8"}}).Text(); got != "错误：内部服务器错误" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestClientOverRealHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ping" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"msg":"连接成功","data":{"time":"8ms","server":"204.79.197.200"}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL + "/api"}, NewHTTPFetcher(srv.Client()), quietLogger())
	got := c.Run(context.Background(), EndpointPing, url.Values{"url": {"bing.com"}}).Text()
	if got != "状态：连接成功\n延迟：8ms\nIP：204.79.197.200" {
		t.Fatalf("unexpected reply: %q", got)
	}

	srv.Close()
	got = c.Run(context.Background(), EndpointPing, url.Values{"url": {"bing.com"}}).Text()
	if got != "错误：服务暂时不可用" {
		t.Fatalf("closed server must yield service unavailable, got %q", got)
	}
}
