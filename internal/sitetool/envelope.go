package sitetool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// CodeOK — код успешного ответа API.
const CodeOK = 200

const (
	msgUnknown     = "未知错误"
	msgUnavailable = "服务暂时不可用"
	msgInternal    = "内部服务器错误"
)

// Envelope — обертка {code, msg, data}, в которой API возвращает результат.
type Envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// OK сообщает об успешном ответе.
func (e Envelope) OK() bool { return e.Code == CodeOK }

// Message возвращает текст причины; пустой msg заменяется на "未知错误".
func (e Envelope) Message() string {
	if e.Msg == "" {
		return msgUnknown
	}
	return e.Msg
}

func failureEnvelope(msg string) Envelope {
	return Envelope{Code: 500, Msg: msg}
}

// Text — скалярное поле, которое API присылает то строкой, то числом.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
	case b[0] == '{' || b[0] == '[':
		return fmt.Errorf("expected scalar, got %.20s", b)
	default:
		n, err := formatNumber(b)
		if err != nil {
			return err
		}
		*t = Text(n)
	}
	return nil
}

// formatNumber печатает число без экспоненты и хвостовых нулей:
// 1e3 -> "1000", 35.20 -> "35.2". Целые литералы остаются как есть.
func formatNumber(b []byte) (string, error) {
	if bytes.EqualFold(b, []byte("true")) || bytes.EqualFold(b, []byte("false")) {
		return string(b), nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return "", fmt.Errorf("expected scalar, got %.20s", b)
	}
	if bytes.ContainsAny(b, ".eE") {
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return string(b), nil
}

func (t Text) String() string { return string(t) }

// PortStatus — состояние одного порта из результата сканирования.
type PortStatus struct {
	Port string
	Open bool
}

// PortTable хранит результат portscan в порядке ключей JSON-объекта.
type PortTable []PortStatus

var errNotObject = errors.New("port table is not a JSON object")

func (p *PortTable) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errNotObject
	}
	table := PortTable{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("port %s: %w", key, err)
		}
		table = append(table, PortStatus{Port: key, Open: truthy(v)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = table
	return nil
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	default:
		return true
	}
}
