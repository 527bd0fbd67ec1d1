package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	errCommandExists    = errors.New("command already registered")
	errUnknownCommand   = errors.New("unknown command")
	errInvalidArguments = errors.New("invalid arguments")
)

// ErrUnknownCommand возвращается, если ни один модуль не обслуживает команду.
var ErrUnknownCommand = errUnknownCommand

// Registry хранит зарегистрированные модули и выполняет команды.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]CommandProvider
}

// NewRegistry создает пустой реестр модулей.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]CommandProvider)}
}

// Register добавляет модуль; каждая его команда должна быть уникальной.
func (r *Registry) Register(ctx context.Context, provider CommandProvider) error {
	if provider == nil {
		return fmt.Errorf("provider is nil: %w", errInvalidArguments)
	}
	name := provider.Name()
	if name == "" {
		return fmt.Errorf("provider name is empty: %w", errInvalidArguments)
	}
	cmds := provider.Commands()
	if len(cmds) == 0 {
		return fmt.Errorf("%s has no commands: %w", name, errInvalidArguments)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cmd := range cmds {
		if _, exists := r.commands[strings.ToLower(cmd)]; exists {
			return fmt.Errorf("%s/%s: %w", name, cmd, errCommandExists)
		}
	}
	if err := provider.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	for _, cmd := range cmds {
		r.commands[strings.ToLower(cmd)] = provider
	}
	return nil
}

// Has сообщает, зарегистрирована ли команда.
func (r *Registry) Has(cmd string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[strings.ToLower(cmd)]
	return ok
}

// Execute вызывает модуль, обслуживающий команду.
func (r *Registry) Execute(ctx context.Context, cmd, text string) (Reply, error) {
	r.mu.RLock()
	prov, ok := r.commands[strings.ToLower(cmd)]
	r.mu.RUnlock()
	if !ok {
		return Reply{}, fmt.Errorf("%s: %w", cmd, errUnknownCommand)
	}
	return prov.Execute(ctx, strings.ToLower(cmd), text)
}

// Commands возвращает отсортированный список команд.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
