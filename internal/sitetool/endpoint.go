package sitetool

import (
	"fmt"

	"sitetools/internal/core"
)

// Endpoint — одна диагностическая операция удаленного API.
type Endpoint int

const (
	EndpointTCPing Endpoint = iota + 1
	EndpointPing
	EndpointSpeed
	EndpointWhois
	EndpointPortScan
	EndpointScreenshot
)

// Path возвращает сегмент пути в URL API.
func (e Endpoint) Path() string {
	switch e {
	case EndpointTCPing:
		return "tcping"
	case EndpointPing:
		return "ping"
	case EndpointSpeed:
		return "speed"
	case EndpointWhois:
		return "whois"
	case EndpointPortScan:
		return "portscan"
	case EndpointScreenshot:
		return "screenshot"
	default:
		return ""
	}
}

func (e Endpoint) String() string {
	if p := e.Path(); p != "" {
		return p
	}
	return fmt.Sprintf("endpoint(%d)", int(e))
}

// Render превращает конверт в ответ. Для code != 200 возвращается
// "错误：msg"; если data не подходит под формат эндпоинта — ошибка.
func (e Endpoint) Render(env Envelope) (core.Reply, error) {
	if !env.OK() {
		return Failure(env.Message()), nil
	}
	switch e {
	case EndpointTCPing:
		return formatTCPing(env)
	case EndpointPing:
		return formatPing(env)
	case EndpointSpeed:
		return formatSpeed(env)
	case EndpointWhois:
		return formatWhois(env)
	case EndpointPortScan:
		return formatPortScan(env)
	case EndpointScreenshot:
		return formatScreenshot(env)
	default:
		return core.Reply{}, fmt.Errorf("%s: %w", e, errUnknownEndpoint)
	}
}
