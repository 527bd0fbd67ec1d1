package common

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// AuditEvent фиксирует вызов команды транспортом.
type AuditEvent struct {
	Subject   string
	Action    string
	Source    string
	Status    string
	RequestID string
	Args      []string
	TS        time.Time
}

// AuditSink записывает аудиторные события.
type AuditSink interface {
	Write(ctx context.Context, ev AuditEvent) error
}

// LogAuditSink пишет аудит в структурированный лог.
type LogAuditSink struct {
	Logger *slog.Logger
}

func (s LogAuditSink) Write(ctx context.Context, ev AuditEvent) error {
	lg := s.Logger
	if lg == nil {
		lg = slog.Default()
	}
	level := slog.LevelInfo
	if ev.Status != "ok" {
		level = slog.LevelWarn
	}
	lg.LogAttrs(ctx, level, "command audit",
		slog.String("request_id", ev.RequestID),
		slog.String("source", ev.Source),
		slog.String("subject", ev.Subject),
		slog.String("command", ev.Action),
		slog.Any("args", ev.Args),
		slog.String("status", ev.Status),
		slog.Time("ts", ev.TS),
	)
	return nil
}

func newRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// NewRequestID выдает случайный идентификатор запроса.
func NewRequestID() string { return newRequestID() }
