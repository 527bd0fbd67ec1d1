package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitetools/internal/core"
	"sitetools/internal/sitetool"
)

var (
	errEmptyCommand = errors.New("empty command")

	// ErrNotCommand — текст не является зарегистрированной командой.
	ErrNotCommand = errors.New("not a command")
	// ErrAccessDenied — subject не прошел allowlist.
	ErrAccessDenied = errors.New("access denied")
	// ErrRateLimited — subject превысил лимит запросов.
	ErrRateLimited = errors.New("rate limit exceeded")
)

const (
	replyDenied      = "无权使用该命令"
	replyRateLimited = "请求过于频繁，请稍后再试"
)

// Service объединяет общий пайплайн command->authz->ratelimit->core.
type Service struct {
	Source      string
	Registry    *core.Registry
	Authorizer  core.Authorizer
	RateLimiter *RateLimiter
	AuditSink   AuditSink
}

// ExecuteText разбирает текст сообщения и вызывает модуль команды.
// Для отказа в доступе и превышения лимита возвращается и текстовый ответ,
// и ошибка; для текста без команды — ErrNotCommand и пустой ответ.
func (s *Service) ExecuteText(ctx context.Context, subjectID, text string) (core.Reply, error) {
	cmd, args, err := ParseTextCommand(text)
	if err != nil {
		return core.Reply{}, fmt.Errorf("%w: %v", ErrNotCommand, err)
	}
	if !s.Registry.Has(cmd) {
		return core.Reply{}, fmt.Errorf("%s: %w", cmd, ErrNotCommand)
	}
	subject := core.Subject{Source: s.Source, ID: subjectID}
	action := core.Action{Command: cmd}
	if s.Authorizer != nil {
		if err := s.Authorizer.Authorize(subject, action); err != nil {
			s.writeAudit(ctx, subject, "denied", cmd, args)
			return core.PlainReply(replyDenied), fmt.Errorf("%w: %v", ErrAccessDenied, err)
		}
	}
	if s.RateLimiter != nil {
		if !s.RateLimiter.Allow(s.Source+":"+subjectID, time.Now()) {
			s.writeAudit(ctx, subject, "rate_limited", cmd, args)
			return core.PlainReply(replyRateLimited), ErrRateLimited
		}
	}
	reply, execErr := s.Registry.Execute(ctx, cmd, text)
	status := "ok"
	if execErr != nil {
		status = "error"
	}
	s.writeAudit(ctx, subject, status, cmd, args)
	return reply, execErr
}

func (s *Service) writeAudit(ctx context.Context, subject core.Subject, status, cmd string, args []string) {
	if s.AuditSink == nil {
		return
	}
	_ = s.AuditSink.Write(ctx, AuditEvent{
		Subject:   subject.ID,
		Action:    cmd,
		Source:    subject.Source,
		Status:    status,
		RequestID: newRequestID(),
		Args:      args,
		TS:        time.Now().UTC(),
	})
}

// ParseTextCommand переводит текст в (command, args).
// Формат: /command arg1 arg2; ведущий "/" и суффикс @bot необязательны.
func ParseTextCommand(text string) (string, []string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", nil, errEmptyCommand
	}
	cmd := sitetool.CommandName(t)
	if cmd == "" {
		return "", nil, fmt.Errorf("invalid command format: %w", errEmptyCommand)
	}
	return cmd, sitetool.ParseArgs(t, 0), nil
}
