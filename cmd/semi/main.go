// Command semi compiles and runs a single Semi source file, demonstrating
// the embedding API (semi.New, semi.CompileModule, VM.RunModule,
// VM.AddNativeFunction) the way gothird's own main.go demonstrates its VM:
// flags for trace/timeout/dump, a leveled logger, context-based timeout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/semi-lang/semi-sub001/internal/logio"
	"github.com/semi-lang/semi-sub001/pkg/semi"
)

func main() {
	var (
		trace   bool
		dump    bool
		timeout time.Duration
	)
	flag.BoolVar(&trace, "trace", false, "enable instruction trace logging")
	flag.BoolVar(&dump, "dump", false, "print the compiled module's exports after execution")
	flag.DurationVar(&timeout, "timeout", 0, "specify a time limit")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer os.Exit(log.ExitCode())

	args := flag.Args()
	if len(args) != 1 {
		log.Errorf("usage: semi [flags] <script.semi>")
		return
	}

	source, err := os.ReadFile(args[0])
	if err != nil {
		log.Errorf("%+v", err)
		return
	}

	vm := semi.New(
		semi.WithLogf(log.Leveledf("TRACE")),
		semi.WithTrace(trace),
	)
	registerNatives(vm, &log)

	m, err := semi.CompileModule(vm, args[0], source)
	if err != nil {
		log.Errorf("%+v", err)
		return
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, runErr := runWithTimeout(ctx, vm, m)
	if runErr != nil {
		log.Errorf("%+v", runErr)
		return
	}
	if !result.IsInvalid() {
		log.Printf("", "%s", result.String())
	}

	if dump {
		dumpExports(&log, vm, m)
	}
}

// runWithTimeout runs m on a goroutine so a --timeout flag can bound a
// script that never returns (the VM itself has no notion of wall-clock
// deadlines; RunModule runs to completion or returns a VM-level error).
func runWithTimeout(ctx context.Context, vm *semi.VM, m *semi.Module) (semi.Value, error) {
	type outcome struct {
		v   semi.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := vm.RunModule(m)
		done <- outcome{v, err}
	}()
	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		return semi.Invalid, errors.New("semi: execution timed out")
	}
}

func dumpExports(log *logio.Logger, vm *semi.VM, m *semi.Module) {
	for _, name := range m.ExportNames() {
		v, _ := m.LookupExport(name)
		log.Printf("DUMP", "%s = %s", name, v.String())
	}
}

func registerNatives(vm *semi.VM, log *logio.Logger) {
	must := func(err error) {
		if err != nil {
			log.Errorf("%+v", err)
		}
	}
	must(vm.AddNativeFunction("print", nativePrint))
	must(vm.AddNativeFunction("len", nativeLen))
	must(vm.AddNativeFunction("append", nativeAppend))
	must(vm.AddNativeFunction("min", nativeMin))
	must(vm.AddNativeFunction("max", nativeMax))
	must(vm.AddNativeFunction("now", nativeNow))
}

// nativePrint is the minimal host function every Semi script needs to
// produce observable output; semi itself has no I/O primitives (spec's
// "built-in native functions" are explicitly out of scope for the VM core
// and left to the embedder).
func nativePrint(vm *semi.VM, args []semi.Value) (semi.Value, error) {
	for i, a := range args {
		if i > 0 {
			fmt.Print(" ")
		}
		fmt.Print(a.String())
	}
	fmt.Println()
	return semi.Invalid, nil
}

func nativeLen(vm *semi.VM, args []semi.Value) (semi.Value, error) {
	if len(args) != 1 {
		return semi.Invalid, errors.New("len: expected 1 argument")
	}
	n, err := semi.Length(args[0])
	if err != nil {
		return semi.Invalid, err
	}
	return semi.IntValue(int64(n)), nil
}

func nativeAppend(vm *semi.VM, args []semi.Value) (semi.Value, error) {
	if len(args) != 2 {
		return semi.Invalid, errors.New("append: expected 2 arguments")
	}
	if err := semi.AppendToList(args[0], args[1]); err != nil {
		return semi.Invalid, err
	}
	return args[0], nil
}

func nativeMin(vm *semi.VM, args []semi.Value) (semi.Value, error) {
	return reduceNumbers(args, func(a, b float64) bool { return a < b })
}

func nativeMax(vm *semi.VM, args []semi.Value) (semi.Value, error) {
	return reduceNumbers(args, func(a, b float64) bool { return a > b })
}

func reduceNumbers(args []semi.Value, better func(a, b float64) bool) (semi.Value, error) {
	if len(args) == 0 {
		return semi.Invalid, errors.New("expected at least 1 argument")
	}
	best := args[0]
	for _, a := range args[1:] {
		if !a.IsNumber() || !best.IsNumber() {
			return semi.Invalid, errors.New("expected numeric arguments")
		}
		if better(numericValue(a), numericValue(best)) {
			best = a
		}
	}
	return best, nil
}

func numericValue(v semi.Value) float64 {
	if v.Kind() == semi.KindFloat {
		return v.AsFloat()
	}
	return float64(v.AsInt())
}

func nativeNow(vm *semi.VM, args []semi.Value) (semi.Value, error) {
	return semi.IntValue(time.Now().UnixNano()), nil
}
