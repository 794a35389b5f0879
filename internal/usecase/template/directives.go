package template

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"djBot/internal/infrastructure/telemetry"
)

const (
	urlfetchMaxRunes = 400
	urlfetchMaxBytes = 64 << 10
)

func (e *Engine) count(ctx context.Context, name string) string {
	if name == "" || e.counters == nil {
		return "0"
	}
	v, err := e.counters.Get(ctx, name)
	if err != nil {
		telemetry.DirectiveErrors.WithLabelValues("count").Inc()
		e.logger.Warn("template: count failed", zap.String("name", name), zap.Error(err))
		return fmt.Sprintf("[Error: %v]", err)
	}
	return strconv.FormatInt(v, 10)
}

func (e *Engine) urlfetch(ctx context.Context, rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		telemetry.DirectiveErrors.WithLabelValues("urlfetch").Inc()
		return fmt.Sprintf("[Error: %v]", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		telemetry.DirectiveErrors.WithLabelValues("urlfetch").Inc()
		return fmt.Sprintf("[Error: %v]", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		telemetry.DirectiveErrors.WithLabelValues("urlfetch").Inc()
		return fmt.Sprintf("[Error: %d]", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, urlfetchMaxBytes))
	if err != nil {
		telemetry.DirectiveErrors.WithLabelValues("urlfetch").Inc()
		return fmt.Sprintf("[Error: %v]", err)
	}
	return truncateRunes(string(body), urlfetchMaxRunes)
}

func (e *Engine) evaluate(src string) string {
	out, err := e.eval.Eval(src)
	if err != nil {
		telemetry.DirectiveErrors.WithLabelValues("eval").Inc()
		e.logger.Debug("template: eval failed", zap.String("expr", src), zap.Error(err))
		return fmt.Sprintf("[Eval Error: %v]", err)
	}
	return out
}

func (e *Engine) uptime(ctx context.Context) string {
	if e.live == nil {
		return "[Error: No context]"
	}
	status, err := e.live.Status(ctx)
	if err != nil {
		telemetry.DirectiveErrors.WithLabelValues("uptime").Inc()
		return fmt.Sprintf("[Error fetching uptime: %v]", err)
	}
	if !status.IsLive || status.StartedAt.IsZero() {
		return "Stream is offline."
	}
	total := int64(e.now().Sub(status.StartedAt).Seconds())
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
