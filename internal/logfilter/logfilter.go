// Package logfilter evaluates CEL expressions against log records.
//
// Expressions see the variables timestamp (string), text (string), index
// (int, position in the store) and json (text parsed as JSON, or null).
// For example:
//
//	text.contains("error") && timestamp >= "2024-01-01T00:00:00"
package logfilter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/rzbill/logcache/internal/logstore"
)

// Filter is a compiled expression. The zero value and a nil *Filter match
// every record.
type Filter struct {
	prog cel.Program
}

// Compile type-checks expr. It must evaluate to a bool. An empty expression
// returns a filter that matches everything.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("timestamp", cel.StringType),
		cel.Variable("text", cel.StringType),
		cel.Variable("index", cel.IntType),
		cel.Variable("json", cel.DynType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("filter must be a bool expression, got %s", ast.OutputType())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Filter{prog: prog}, nil
}

// Match reports whether rec at position index satisfies the filter.
// Evaluation errors count as no match.
func (f *Filter) Match(index int, rec logstore.Record) bool {
	if f == nil || f.prog == nil {
		return true
	}
	text := rec.Text()
	var doc any
	if strings.HasPrefix(strings.TrimSpace(text), "{") {
		_ = json.Unmarshal([]byte(text), &doc)
	}
	out, _, err := f.prog.Eval(map[string]any{
		"timestamp": rec.Timestamp(),
		"text":      text,
		"index":     int64(index),
		"json":      doc,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
