// Package main is the entry point for the sendmail-style Graph relay.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shineum/graph-sendmail/internal/app"
	"github.com/shineum/graph-sendmail/internal/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to YAML settings file")
	// sendmail-style callers pass their own flags and recipients; they are ignored.
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(os.Stderr)
	_ = flag.CommandLine.Parse(knownArgs(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	err := app.Run(ctx, app.Options{
		ConfigPath:     *configPath,
		Stdin:          os.Stdin,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		InstallDefault: true,
	})

	stop()
	os.Exit(app.ExitCode(err))
}

// knownArgs keeps only the -config flag and its value so that arbitrary
// sendmail arguments never abort the run.
func knownArgs(args []string) []string {
	var kept []string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "-config" || arg == "--config":
			kept = append(kept, arg)
			if i+1 < len(args) {
				kept = append(kept, args[i+1])
				i++
			}
		case strings.HasPrefix(arg, "-config=") || strings.HasPrefix(arg, "--config="):
			kept = append(kept, arg)
		}
	}
	return kept
}
