package site

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"sitetools/internal/core"
	"sitetools/internal/sitetool"
)

const defaultTCPingPort = 80

const helpText = `站长工具使用帮助:

/sitehelp    - 显示帮助信息
/tcping <域名或IP地址> - TCP端口连通性测试
/ping <网址> - 测试网站连通性
/siteno <含http(s)的网址> - 测试网站延迟
/whois <域名> - 查询域名信息
/port <IP地址> - 端口扫描
/site <含http(s)的网址>  - 获取网站截图

示例:
/tcping bing.com 或 /tcping bing.com 443
/ping bing.com
/siteno https://www.bing.com
/whois bing.com
/port 8.8.8.8
/site https://www.bing.com`

const usageBadPort = "端口号必须是数字!\n示例: /tcping bing.com 443"

// command связывает чат-команду с эндпоинтом API.
type command struct {
	endpoint sitetool.Endpoint
	param    string
	usage    string
}

var commands = map[string]command{
	"tcping": {
		endpoint: sitetool.EndpointTCPing,
		param:    "address",
		usage:    "传入需要tcping的ip或者域名，不需要加http或https!\n示例: /tcping bing.com\n示例: /tcping bing.com 443",
	},
	"ping": {
		endpoint: sitetool.EndpointPing,
		param:    "url",
		usage:    "请输入要测试的域名!\n示例: /ping bing.com",
	},
	"siteno": {
		endpoint: sitetool.EndpointSpeed,
		param:    "url",
		usage:    "请输入要测试的网址，包含http(s)等！\n示例: /siteno https://www.bing.com",
	},
	"whois": {
		endpoint: sitetool.EndpointWhois,
		param:    "domain",
		usage:    "请输入要查询的域名!\n示例: /whois bing.com",
	},
	"port": {
		endpoint: sitetool.EndpointPortScan,
		param:    "address",
		usage:    "请输入IP地址!\n示例: /port 8.8.8.8",
	},
	"site": {
		endpoint: sitetool.EndpointScreenshot,
		param:    "url",
		usage:    "请输入网址,包含http(s)等!\n示例: /site https://www.bing.com",
	},
}

// Runner выполняет запрос к API и рендерит ответ.
type Runner interface {
	Run(ctx context.Context, e sitetool.Endpoint, params url.Values) core.Reply
}

// Module предоставляет команды диагностики сайтов.
type Module struct {
	api Runner
}

// New создает модуль поверх клиента API.
func New(api Runner) *Module {
	return &Module{api: api}
}

func (m *Module) Name() string { return "site" }

func (m *Module) Commands() []string {
	return []string{"sitehelp", "tcping", "ping", "siteno", "whois", "port", "site"}
}

func (m *Module) Init(ctx context.Context) error {
	if m.api == nil {
		return fmt.Errorf("site module: api runner is nil")
	}
	return nil
}

func (m *Module) Execute(ctx context.Context, cmd string, text string) (core.Reply, error) {
	if cmd == "sitehelp" {
		return core.PlainReply(helpText), nil
	}
	c, ok := commands[cmd]
	if !ok {
		return core.Reply{}, fmt.Errorf("%s: %w", cmd, core.ErrUnknownCommand)
	}
	args := sitetool.ParseArgs(text, 1)
	if len(args) == 0 {
		return core.PlainReply(c.usage), nil
	}

	params := url.Values{}
	params.Set(c.param, args[0])
	if c.endpoint == sitetool.EndpointTCPing {
		port := defaultTCPingPort
		if len(args) > 1 {
			p, err := strconv.Atoi(args[1])
			if err != nil {
				return core.PlainReply(usageBadPort), nil
			}
			port = p
		}
		params.Set("port", strconv.Itoa(port))
	}
	return m.api.Run(ctx, c.endpoint, params), nil
}
