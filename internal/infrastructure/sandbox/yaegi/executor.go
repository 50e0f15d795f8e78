// Package yaegi evaluates generated analytics code inside an embedded Go
// interpreter. The interpreter sees only the filtered view and a fixed
// import whitelist; there is no filesystem, network, or process access
// beyond what the whitelisted packages expose.
package yaegi

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/kirillkom/shipment-qna-assistant/internal/core/domain"
)

const defaultTimeout = 10 * time.Second

// resultBinding is the variable the generated code must assign its output
// to; the executor reads it back after evaluation.
const resultBinding = "result"

var allowedImports = map[string]struct{}{
	"fmt":           {},
	"strings":       {},
	"strconv":       {},
	"sort":          {},
	"math":          {},
	"time":          {},
	"regexp":        {},
	"encoding/json": {},
	"view":          {},
}

var packageClausePattern = regexp.MustCompile(`(?m)^\s*package\s+\w+\s*$`)

// allowedSymbols is stdlib.Symbols restricted to the whitelisted packages.
// The interpreter never sees any other package's symbols, so a script that
// slips an import past static validation still cannot resolve it.
var allowedSymbols = func() interp.Exports {
	out := interp.Exports{}
	for key, symbols := range stdlib.Symbols {
		// Keys are "<import path>/<package name>".
		path := key
		if idx := strings.LastIndex(key, "/"); idx >= 0 {
			path = key[:idx]
		}
		if _, ok := allowedImports[path]; ok {
			out[key] = symbols
		}
	}
	return out
}()

// Executor runs one script per call in a fresh interpreter instance. A
// script that outlives the deadline is abandoned; its goroutine cannot be
// forcibly stopped, so timeouts should stay short.
type Executor struct {
	timeout time.Duration
}

func New(timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Executor{timeout: timeout}
}

func (e *Executor) Run(ctx context.Context, code string, view *domain.Table) (any, error) {
	code = packageClausePattern.ReplaceAllString(code, "")
	if err := validateImports(code); err != nil {
		return nil, domain.WrapError(domain.ErrExecution, "validate script", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("script panicked: %v", r)}
			}
		}()
		value, err := evaluate(code, view)
		done <- outcome{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, domain.WrapError(domain.ErrExecution, "run script", ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, domain.WrapError(domain.ErrExecution, "run script", out.err)
		}
		return out.value, nil
	}
}

func evaluate(code string, view *domain.Table) (any, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(allowedSymbols); err != nil {
		return nil, fmt.Errorf("load stdlib symbols: %w", err)
	}
	err := i.Use(interp.Exports{
		"view/view": {
			"Rows": reflect.ValueOf(func() []map[string]any { return view.Rows }),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("bind view: %w", err)
	}
	if _, err := i.Eval(`import "view"`); err != nil {
		return nil, fmt.Errorf("import view: %w", err)
	}

	if _, err := i.Eval(code); err != nil {
		return nil, fmt.Errorf("evaluate script: %w", err)
	}

	v, err := i.Eval(resultBinding)
	if err != nil {
		return nil, fmt.Errorf("script did not assign %q: %w", resultBinding, err)
	}
	if v.IsValid() && v.CanInterface() {
		return v.Interface(), nil
	}
	return nil, nil
}

// validateImports rejects any import outside the whitelist before the
// interpreter sees the script. The Go parser enumerates the import
// declarations, so raw-string, grouped, aliased, and dot imports are all
// covered. Imports buried after statements escape this pass and fail at
// evaluation instead: the interpreter only carries the whitelisted symbols.
func validateImports(code string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "script.go", "package main\n"+code, parser.ImportsOnly)
	if err != nil {
		return fmt.Errorf("parse script imports: %w", err)
	}
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("malformed import path %s", imp.Path.Value)
		}
		if _, ok := allowedImports[path]; !ok {
			return fmt.Errorf("import %q is not allowed", path)
		}
	}
	return nil
}
