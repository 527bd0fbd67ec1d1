package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"sitetools/internal/core"
	"sitetools/internal/transports/common"
)

// SubjectID — идентификатор оператора консоли.
const SubjectID = "local"

// Adapter читает команды построчно и печатает ответы.
type Adapter struct {
	svc *common.Service
	in  io.Reader
	out io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// NewAdapter создает консольный адаптер поверх in/out.
func NewAdapter(registry *core.Registry, authorizer core.Authorizer, limiter *common.RateLimiter, audit common.AuditSink, in io.Reader, out io.Writer) *Adapter {
	return &Adapter{
		svc: &common.Service{
			Source:      "console",
			Registry:    registry,
			Authorizer:  authorizer,
			RateLimiter: limiter,
			AuditSink:   audit,
		},
		in:  in,
		out: out,
	}
}

func (a *Adapter) Name() string { return "console" }

// Start запускает чтение ввода в фоне до EOF, Stop или отмены ctx.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return errors.New("console transport already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.cancel, a.done, a.err = cancel, done, nil
	go func() {
		err := a.Run(runCtx)
		a.mu.Lock()
		a.err = err
		a.mu.Unlock()
		close(done)
	}()
	return nil
}

// Stop прерывает чтение и ждет завершения текущей команды.
func (a *Adapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done закрывается, когда Run завершился.
func (a *Adapter) Done() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.done
}

// Err возвращает ошибку Run после закрытия Done.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Run обрабатывает строки до EOF или отмены контекста. Чтение идет
// в отдельной горутине, поэтому отмена не ждет следующей строки.
func (a *Adapter) Run(ctx context.Context) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if err := a.HandleLine(ctx, line); err != nil {
				return err
			}
		}
	}
}

// HandleLine исполняет одну команду; ошибкой считается только сбой записи.
func (a *Adapter) HandleLine(ctx context.Context, line string) error {
	reply, err := a.svc.ExecuteText(ctx, SubjectID, line)
	if errors.Is(err, common.ErrNotCommand) {
		_, werr := fmt.Fprintln(a.out, "未知命令，输入 /sitehelp 查看帮助")
		return werr
	}
	return Render(a.out, reply)
}

// Render печатает ответ: текст как есть, изображения ссылкой.
func Render(w io.Writer, reply core.Reply) error {
	for _, seg := range reply.Segments {
		var err error
		switch seg.Type {
		case core.SegmentImage:
			_, err = fmt.Fprintf(w, "[图片] %s\n", seg.URL)
		default:
			text := seg.Text
			if !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			_, err = io.WriteString(w, text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
