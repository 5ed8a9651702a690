// Package script runs JavaScript against a dom.Document. Scripts mutate the
// document through a small DOM binding, which drives the style engine
// observing it, and call flush() to request a style update.
package script

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/chrisuehlinger/invalidator/dom"
)

// Runtime wraps a goja runtime bound to one document.
type Runtime struct {
	vm      *goja.Runtime
	doc     *dom.Document
	log     *zap.Logger
	nodes   map[dom.NodeID]*goja.Object
	onFlush func() error
	errors  []error
}

// NewRuntime creates a runtime with console, document and flush bound. A
// nil log discards console output.
func NewRuntime(doc *dom.Document, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Runtime{
		vm:    goja.New(),
		doc:   doc,
		log:   log.Named("script"),
		nodes: make(map[dom.NodeID]*goja.Object),
	}
	r.setupConsole()
	r.setupFlush()
	r.vm.Set("document", r.bindDocument())
	return r
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime { return r.vm }

// SetOnFlush sets the function flush() calls. Its error is thrown into the
// script.
func (r *Runtime) SetOnFlush(fn func() error) { r.onFlush = fn }

// Run compiles and runs src. name is used in stack traces. Uncaught
// exceptions are returned and also kept in Errors.
func (r *Runtime) Run(name, src string) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script %s: panic: %v", name, p)
			r.errors = append(r.errors, err)
		}
	}()

	program, err := goja.Compile(name, src, false)
	if err != nil {
		err = fmt.Errorf("compile %s: %w", name, err)
		r.errors = append(r.errors, err)
		return err
	}
	if _, err = r.vm.RunProgram(program); err != nil {
		err = fmt.Errorf("run %s: %w", name, err)
		r.errors = append(r.errors, err)
		return err
	}
	return nil
}

// Eval runs an expression and returns its value exported to Go.
func (r *Runtime) Eval(code string) (any, error) {
	v, err := r.vm.RunString(code)
	if err != nil {
		return nil, err
	}
	return v.Export(), nil
}

// Errors returns the errors of every failed Run.
func (r *Runtime) Errors() []error {
	return append([]error{}, r.errors...)
}

func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()
	logAt := func(level func(string, ...zap.Field)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			level(formatArgs(call.Arguments))
			return goja.Undefined()
		}
	}
	console.Set("log", logAt(r.log.Info))
	console.Set("info", logAt(r.log.Info))
	console.Set("debug", logAt(r.log.Debug))
	console.Set("warn", logAt(r.log.Warn))
	console.Set("error", logAt(r.log.Error))
	r.vm.Set("console", console)
}

func (r *Runtime) setupFlush() {
	r.vm.Set("flush", func(call goja.FunctionCall) goja.Value {
		if r.onFlush == nil {
			return goja.Undefined()
		}
		if err := r.onFlush(); err != nil {
			panic(r.vm.NewGoError(err))
		}
		return goja.Undefined()
	})
}

func formatArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
