package template

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
)

const maxExprLen = 512

// Evaluator runs the restricted expression language behind $(eval): literals,
// arithmetic, comparison, logic, ternaries and a few random helpers. The
// environment holds no I/O.
type Evaluator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEvaluator uses rnd for the random helpers, or a fresh source when nil.
func NewEvaluator(rnd *rand.Rand) *Evaluator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Evaluator{rnd: rnd}
}

func (ev *Evaluator) Eval(src string) (string, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return "", errors.New("empty expression")
	}
	if len(src) > maxExprLen {
		return "", fmt.Errorf("expression longer than %d characters", maxExprLen)
	}

	env := ev.env()
	program, err := expr.Compile(src, expr.Env(env), expr.Patch(randomNamespace{}))
	if err != nil {
		return "", firstLine(err)
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return "", firstLine(err)
	}
	if f, ok := out.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
		return "", errors.New("division by zero")
	}
	return formatValue(out), nil
}

// randomNamespace rewrites random.randint, random.choice and random.random
// into the top-level helpers so "random" can also be called on its own.
type randomNamespace struct{}

func (randomNamespace) Visit(node *ast.Node) {
	member, ok := (*node).(*ast.MemberNode)
	if !ok {
		return
	}
	ident, ok := member.Node.(*ast.IdentifierNode)
	if !ok || ident.Value != "random" {
		return
	}
	prop, ok := member.Property.(*ast.StringNode)
	if !ok {
		return
	}
	switch prop.Value {
	case "randint", "choice", "random":
		ast.Patch(node, &ast.IdentifierNode{Value: prop.Value})
	}
}

func (ev *Evaluator) env() map[string]any {
	randint := func(a, b int) (int, error) {
		if b < a {
			return 0, fmt.Errorf("empty range for randint(%d, %d)", a, b)
		}
		ev.mu.Lock()
		defer ev.mu.Unlock()
		return a + ev.rnd.IntN(b-a+1), nil
	}
	random := func() float64 {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		return ev.rnd.Float64()
	}
	choice := func(items ...any) (any, error) {
		if len(items) == 1 {
			if list, ok := items[0].([]any); ok {
				items = list
			}
		}
		if len(items) == 0 {
			return nil, errors.New("cannot choose from an empty sequence")
		}
		ev.mu.Lock()
		defer ev.mu.Unlock()
		return items[ev.rnd.IntN(len(items))], nil
	}

	return map[string]any{
		"randint": randint,
		"choice":  choice,
		"random":  random,
	}
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case bool:
		if val {
			return "True"
		}
		return "False"
	default:
		return fmt.Sprint(val)
	}
}

func firstLine(err error) error {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return errors.New(strings.TrimSpace(msg))
}
