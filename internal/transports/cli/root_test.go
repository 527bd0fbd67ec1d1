package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sitetools/pkg/logger"
)

func quietLogger(io.Writer, string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// runSplit исполняет команду с настоящим логгером и раздельными stdout/stderr.
func runSplit(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "")
	root := New("1.2.3", logger.NewWithWriter)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func apiConfig(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"msg":"连接成功","data":{"time":"8ms","server":"1.2.3.4"}}`))
	}))
	t.Cleanup(srv.Close)
	path := filepath.Join(t.TempDir(), "c.yaml")
	body := fmt.Sprintf("log:\n  level: debug\napi:\n  base_url: %s/api\n", srv.URL)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := New("1.2.3", quietLogger)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "1.2.3\n" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestExecHelpAndValidation(t *testing.T) {
	out, err := run(t, "", "exec", "sitehelp")
	if err != nil {
		t.Fatalf("exec sitehelp: %v", err)
	}
	if !strings.Contains(out, "/tcping <域名或IP地址>") {
		t.Fatalf("unexpected help: %q", out)
	}

	out, err = run(t, "", "exec", "tcping", "bing.com", "abc")
	if err != nil {
		t.Fatalf("exec tcping: %v", err)
	}
	if !strings.HasPrefix(out, "端口号必须是数字!") {
		t.Fatalf("unexpected tcping output: %q", out)
	}
}

func TestExecUnknownCommand(t *testing.T) {
	if _, err := run(t, "", "exec", "nope"); err == nil || !strings.Contains(err.Error(), "available") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestConsoleReadsStdin(t *testing.T) {
	out, err := run(t, "/whois\n", "console")
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	if !strings.HasPrefix(out, "请输入要查询的域名!") {
		t.Fatalf("unexpected console output: %q", out)
	}
}

func TestBadConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := run(t, "", "--config", path, "exec", "sitehelp"); err == nil {
		t.Fatalf("expected config error")
	}
	empty := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := run(t, "", "-c", empty, "exec", "sitehelp"); err == nil {
		t.Fatalf("expected empty config error")
	}
}

func TestExecKeepsLogsOffStdout(t *testing.T) {
	stdout, stderr, err := runSplit(t, "", "-c", apiConfig(t), "exec", "ping", "bing.com")
	if err != nil {
		t.Fatalf("exec ping: %v", err)
	}
	if stdout != "状态：连接成功\n延迟：8ms\nIP：1.2.3.4\n" {
		t.Fatalf("stdout must hold only the reply: %q", stdout)
	}
	if !strings.Contains(stderr, `"msg":"api request"`) || !strings.Contains(stderr, `"msg":"command audit"`) {
		t.Fatalf("logs must go to stderr: %q", stderr)
	}
}

func TestConsoleKeepsLogsOffStdout(t *testing.T) {
	stdout, stderr, err := runSplit(t, "/ping bing.com\n/ping bing.com\n", "-c", apiConfig(t), "console")
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	reply := "状态：连接成功\n延迟：8ms\nIP：1.2.3.4\n"
	if stdout != reply+reply {
		t.Fatalf("stdout must hold only replies: %q", stdout)
	}
	if strings.Count(stderr, `"msg":"command audit"`) != 2 {
		t.Fatalf("expected two audit lines on stderr: %q", stderr)
	}
}
