package sitetool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sitetools/internal/core"
)

const (
	maxListedPorts = 20
	portSeparator  = " | "
	ellipsis       = "..."
	emptyList      = "无"
	dnsShown       = 2
)

var (
	errUnknownEndpoint = errors.New("unknown endpoint")
	errEmptyData       = errors.New("response has no data")
	errMissingField    = errors.New("response data misses field")
)

// Failure — единый текст ошибки для пользователя.
func Failure(msg string) core.Reply {
	return core.PlainReply("错误：" + msg)
}

func decodeData(env Envelope, v interface{}) error {
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return errEmptyData
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// decodeObject декодирует data-объект и требует наличия всех ключей,
// которые выводит шаблон. Значение null допустимо и печатается пустым.
func decodeObject(env Envelope, v interface{}, keys ...string) error {
	if err := decodeData(env, v); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &fields); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			return fmt.Errorf("%q: %w", k, errMissingField)
		}
	}
	return nil
}

type tcpingData struct {
	Address Text `json:"address"`
	Ping    Text `json:"ping"`
	Port    Text `json:"port"`
}

func formatTCPing(env Envelope) (core.Reply, error) {
	var d tcpingData
	if err := decodeObject(env, &d, "address", "ping", "port"); err != nil {
		return core.Reply{}, err
	}
	return core.PlainReply(fmt.Sprintf("状态：%s\n测试地址：%s\n延迟：%s\n端口：%s",
		env.Msg, d.Address, d.Ping, d.Port)), nil
}

type pingData struct {
	Time   Text `json:"time"`
	Server Text `json:"server"`
}

func formatPing(env Envelope) (core.Reply, error) {
	var d pingData
	if err := decodeObject(env, &d, "time", "server"); err != nil {
		return core.Reply{}, err
	}
	return core.PlainReply(fmt.Sprintf("状态：%s\n延迟：%s\nIP：%s", env.Msg, d.Time, d.Server)), nil
}

func formatSpeed(env Envelope) (core.Reply, error) {
	var latency Text
	if err := decodeData(env, &latency); err != nil {
		return core.Reply{}, err
	}
	return core.PlainReply(fmt.Sprintf("状态：%s\n延迟：%sms", env.Msg, latency)), nil
}

type whoisData struct {
	DomainName   Text   `json:"Domain Name"`
	Registrar    Text   `json:"Sponsoring Registrar"`
	Registrant   Text   `json:"Registrant"`
	DNS          []Text `json:"DNS Serve"`
	RegisteredAt Text   `json:"Registration Time"`
	ExpiresAt    Text   `json:"Expiration Time"`
}

func formatWhois(env Envelope) (core.Reply, error) {
	var d whoisData
	if err := decodeObject(env, &d, "Domain Name", "Sponsoring Registrar", "Registrant",
		"DNS Serve", "Registration Time", "Expiration Time"); err != nil {
		return core.Reply{}, err
	}
	dns := d.DNS
	if len(dns) > dnsShown {
		dns = dns[:dnsShown]
	}
	servers := make([]string, 0, len(dns))
	for _, s := range dns {
		servers = append(servers, s.String())
	}
	return core.PlainReply(fmt.Sprintf("域名：%s\n注册商：%s\n注册人：%s\nDNS：%s\n有效期：%s 至 %s",
		d.DomainName, d.Registrar, d.Registrant, strings.Join(servers, ", "), d.RegisteredAt, d.ExpiresAt)), nil
}

func formatPortScan(env Envelope) (core.Reply, error) {
	var table PortTable
	if err := decodeData(env, &table); err != nil {
		return core.Reply{}, err
	}
	return core.PlainReply(FormatPortTable(table)), nil
}

// FormatPortTable рендерит списки открытых и закрытых портов.
func FormatPortTable(table PortTable) string {
	var open, closed []string
	for _, p := range table {
		if p.Open {
			open = append(open, p.Port)
		} else {
			closed = append(closed, p.Port)
		}
	}
	return fmt.Sprintf("开放端口：%s\n未开放端口：%s", joinPorts(open), joinPorts(closed))
}

func joinPorts(ports []string) string {
	if len(ports) == 0 {
		return emptyList
	}
	if len(ports) > maxListedPorts {
		ports = append(ports[:maxListedPorts:maxListedPorts], ellipsis)
	}
	return strings.Join(ports, portSeparator)
}

func formatScreenshot(env Envelope) (core.Reply, error) {
	var imageURL Text
	if err := decodeData(env, &imageURL); err != nil {
		return core.Reply{}, err
	}
	if imageURL == "" {
		return core.Reply{}, errEmptyData
	}
	return core.Reply{Segments: []core.Segment{
		{Type: core.SegmentText, Text: fmt.Sprintf("截图成功：%s\n", env.Msg)},
		{Type: core.SegmentImage, URL: imageURL.String()},
	}}, nil
}
