// Package template renders response text: a `{name}` substitution pass followed by
// `$(directive arg)` resolution.
package template

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"djBot/internal/domain"
)

const maxDirectivePasses = 10

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// RenderContext is owned by a single dispatch.
type RenderContext struct {
	InvokerName string
	Args        []string
	RawContent  string
	CommandName string
}

type CounterReader interface {
	Get(ctx context.Context, name string) (int64, error)
	Exists(ctx context.Context, name string) (bool, error)
}

type Engine struct {
	counters CounterReader
	live     domain.StreamStatusService
	client   *http.Client
	eval     *Evaluator
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Engine)

func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLiveLookup enables $(uptime).
func WithLiveLookup(svc domain.StreamStatusService) Option {
	return func(e *Engine) { e.live = svc }
}

func WithEvaluator(ev *Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.eval = ev
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func New(counters CounterReader, opts ...Option) *Engine {
	e := &Engine{
		counters: counters,
		client:   &http.Client{Timeout: 5 * time.Second},
		eval:     NewEvaluator(nil),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Format replaces `{key}` placeholders present in vars. Unknown keys stay verbatim.
func (e *Engine) Format(tmpl string, vars map[string]string) string {
	if len(vars) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		e.logger.Debug("template: missing variable", zap.String("key", key))
		return match
	})
}

// Process runs Format and then Render with the invoker taken from vars["user"].
func (e *Engine) Process(ctx context.Context, tmpl string, vars map[string]string) string {
	out := e.Format(tmpl, vars)
	if !strings.Contains(out, "$(") {
		return out
	}
	return e.Render(ctx, out, RenderContext{InvokerName: vars["user"]})
}

// Render resolves directives. It never fails: unknown directives stay in the
// output and failing ones become a bracketed error marker.
//
// Each pass resolves only the first directive found and restarts from the
// beginning of the string.
func (e *Engine) Render(ctx context.Context, tmpl string, rc RenderContext) string {
	text := tmpl
	for pass := 0; pass < maxDirectivePasses; pass++ {
		start := strings.Index(text, "$(")
		if start < 0 {
			break
		}
		end := matchParen(text, start+1)
		if end < 0 {
			break
		}

		full := text[start : end+1]
		name, arg, _ := strings.Cut(text[start+2:end], " ")

		replacement, ok := e.resolve(ctx, name, arg, rc)
		if !ok {
			replacement = full
		}
		text = text[:start] + replacement + text[end+1:]
	}
	return text
}

// matchParen returns the index of the `)` closing the `(` at open, or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func (e *Engine) resolve(ctx context.Context, name, arg string, rc RenderContext) (string, bool) {
	switch name {
	case "user":
		return rc.InvokerName, true
	case "touser":
		if len(rc.Args) > 0 {
			return rc.Args[0], true
		}
		return rc.InvokerName, true
	case "query":
		return strings.Join(rc.Args, " "), true
	case "count":
		return e.count(ctx, rc.CommandName), true
	case "urlfetch":
		return e.urlfetch(ctx, arg), true
	case "eval":
		return e.evaluate(arg), true
	case "uptime":
		return e.uptime(ctx), true
	}

	// Bare name without arguments: another command's counter.
	if name != "" && arg == "" && e.counters != nil {
		exists, err := e.counters.Exists(ctx, name)
		if err != nil {
			e.logger.Warn("template: counter lookup failed", zap.String("name", name), zap.Error(err))
			return "", false
		}
		if !exists {
			return "", false
		}
		return e.count(ctx, name), true
	}
	return "", false
}
