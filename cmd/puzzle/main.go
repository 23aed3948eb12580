package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/barisesen/puzzle-js"
	"github.com/barisesen/puzzle-js/config"
	"github.com/barisesen/puzzle-js/gateway"
	"github.com/barisesen/puzzle-js/internal/obs"
	"github.com/barisesen/puzzle-js/puzzlehttp"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "compile":
		if err := runCompile(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "serve":
		if err := runServe(args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("puzzle version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`puzzle - fragment composition template engine

Usage:
  puzzle <command> [arguments]

Commands:
  compile <file>         Compile one template, print its fragment plan
  serve <dir> [--addr=<addr>] [--debug]
                          Compile every *.puzzle.html in dir and serve it
  version                 Print version
  help                    Show this help`)
}

func runCompile(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: puzzle compile <file>")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	name := templateName(args[0])
	tmpl, err := puzzle.Compile(context.Background(), string(src), puzzle.CompileOptions{
		Name:   name,
		Client: gateway.NewClient(nil, obs.Nop()),
	})
	if err != nil {
		return err
	}

	fmt.Printf("compiled %q\n", name)
	fmt.Printf("  waited fragments:  %d\n", len(tmpl.WaitedFragments()))
	fmt.Printf("  chunked fragments: %d\n", len(tmpl.ChunkedFragments()))
	if tmpl.StaticRoute() != nil {
		fmt.Printf("  static route:      %s\n", tmpl.StaticRoute().Path)
	}
	return nil
}

func runServe(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: puzzle serve <dir> [--addr=<addr>] [--debug]")
	}
	dir := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	for _, a := range args[1:] {
		switch {
		case a == "--debug":
			cfg.Debug = true
		case strings.HasPrefix(a, "--addr="):
			cfg.ListenAddr = strings.TrimPrefix(a, "--addr=")
		}
	}

	logger := obs.New(cfg.Debug)
	defer logger.Sync()

	client := gateway.NewClient(nil, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var mounted int
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".puzzle.html") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		name := templateName(path)
		tmpl, err := puzzle.Compile(context.Background(), string(src), puzzle.CompileOptions{
			Name:   name,
			Client: client,
			Config: cfg,
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("compile %s: %w", path, err)
		}

		route := "/" + name
		puzzlehttp.Mount(router, route, tmpl)
		logger.Info("mounted template", zap.String("template", name), zap.String("route", route))
		mounted++
	}

	if mounted == 0 {
		return fmt.Errorf("no *.puzzle.html templates found in %s", dir)
	}

	fmt.Printf("serving %d template(s) on %s\n", mounted, cfg.ListenAddr)
	return http.ListenAndServe(cfg.ListenAddr, router)
}

// templateName derives a template's logical name from its file path: the
// base name with the .puzzle.html suffix stripped.
func templateName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, ".puzzle.html")
}
