package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/wippyai/plugin-tracker/dispatch"
	"github.com/wippyai/plugin-tracker/internal/scenario"
	"github.com/wippyai/plugin-tracker/plugin"
	"github.com/wippyai/plugin-tracker/registry"
	"github.com/wippyai/plugin-tracker/tracker"
)

func main() {
	var (
		script      = flag.String("script", "", "Path to a scenario script (more may follow as arguments)")
		wasmFile    = flag.String("wasm", "", "Path to a guest wasm module")
		funcName    = flag.String("func", "", "Guest function to call")
		args        = flag.String("args", "", "Integer arguments (comma-separated)")
		list        = flag.Bool("list", false, "List host functions and exit")
		verbose     = flag.Bool("v", false, "Log tracker activity to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	opts := tracker.DefaultOptions()
	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer log.Sync()
		setLoggers(log)
		opts.Logger = log
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *list {
		for _, fn := range plugin.Functions() {
			fmt.Printf("  %s\n", fn)
		}
		return
	}

	if *interactive {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			if err := runInteractive(ctx, opts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		fmt.Fprintln(os.Stderr, "stdout is not a terminal; ignoring -i")
	}

	scripts := flag.Args()
	if *script != "" {
		scripts = append([]string{*script}, scripts...)
	}

	switch {
	case *wasmFile != "":
		if err := runGuest(ctx, opts, *wasmFile, *funcName, *args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case len(scripts) > 0:
		ok, err := runScripts(ctx, opts, scripts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Usage: trackersim -script <file.yaml> [more.yaml ...]")
		fmt.Fprintln(os.Stderr, "       trackersim -wasm <guest.wasm> -func name [-args 1,2]")
		fmt.Fprintln(os.Stderr, "       trackersim -list")
		fmt.Fprintln(os.Stderr, "       trackersim -i  (interactive mode)")
		os.Exit(1)
	}
}

func setLoggers(log *zap.Logger) {
	tracker.SetLogger(log)
	registry.SetLogger(log)
	dispatch.SetLogger(log)
	plugin.SetLogger(log)
	scenario.SetLogger(log)
}

// runScripts runs each script on its own tracker, concurrently, and prints
// the reports in argument order.
func runScripts(ctx context.Context, opts tracker.Options, paths []string) (bool, error) {
	reports := make([]*scenario.Report, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			s, err := scenario.Load(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			q := dispatch.New(tracker.New(opts), dispatch.Options{Logger: opts.Logger})
			q.Start(gctx)
			defer q.Close()

			return q.Do(gctx, func(t *tracker.Tracker) {
				reports[i] = scenario.Run(t, s)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	ok := true
	for _, r := range reports {
		fmt.Print(r)
		ok = ok && r.OK()
	}
	return ok, nil
}

// runGuest loads one guest, calls funcName and reports what the guest
// left behind before and after the instance is closed.
func runGuest(ctx context.Context, opts tracker.Options, path, funcName, argStr string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	params, err := parseArgs(argStr)
	if err != nil {
		return err
	}

	q := dispatch.New(tracker.New(opts), dispatch.Options{Logger: opts.Logger})
	q.Start(ctx)
	defer q.Close()

	host, err := plugin.NewHost(ctx, q, plugin.DefaultOptions())
	if err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	defer host.Close(ctx)

	mod, err := host.Load(ctx, path, data)
	if err != nil {
		return err
	}
	inst, err := host.Instantiate(ctx, mod)
	if err != nil {
		return err
	}

	if funcName != "" {
		results, err := inst.Call(ctx, funcName, params...)
		if err != nil {
			fmt.Printf("Call failed: %v\n", err)
		} else {
			fmt.Printf("Result: %v\n", results)
		}
	}

	live, err := dispatch.Call(ctx, q, func(t *tracker.Tracker) int {
		return t.LiveObjectCount(inst.Handle())
	})
	if err != nil {
		return err
	}
	fmt.Printf("Live objects in instance %d: %d (crashed: %v)\n", inst.Handle(), live, inst.Crashed())

	if err := inst.Close(ctx); err != nil {
		return fmt.Errorf("close instance: %w", err)
	}
	stats, err := dispatch.Call(ctx, q, (*tracker.Tracker).Stats)
	if err != nil {
		return err
	}
	fmt.Printf("After close: resources=%d vars=%d instances=%d\n", stats.Resources, stats.Vars, stats.Instances)
	return nil
}

func parseArgs(s string) ([]uint64, error) {
	if s == "" {
		return nil, nil
	}
	var out []uint64
	for _, part := range strings.Split(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid argument %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}
