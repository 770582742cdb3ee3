// Package app runs one relay invocation: load settings, read the message
// from standard input, translate it and deliver it through the configured
// provider.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shineum/graph-sendmail/internal/compose"
	"github.com/shineum/graph-sendmail/internal/config"
	"github.com/shineum/graph-sendmail/internal/email"
	"github.com/shineum/graph-sendmail/internal/exitcode"
	"github.com/shineum/graph-sendmail/internal/input"
	"github.com/shineum/graph-sendmail/internal/logging"
	"github.com/shineum/graph-sendmail/internal/normalize"
	"github.com/shineum/graph-sendmail/internal/parser"
	"github.com/shineum/graph-sendmail/internal/provider"
	"github.com/shineum/graph-sendmail/internal/provider/graph"
	"github.com/shineum/graph-sendmail/internal/provider/ses"
	"github.com/shineum/graph-sendmail/internal/provider/stdout"
	"github.com/shineum/graph-sendmail/internal/relay"
)

const firstRunMessage = "settings file not found. Created new file with default settings.  Please edit it and try again."

// ConfigError wraps a settings load, validation or provider setup failure.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// InputError wraps a failure to read standard input.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input: %v", e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// ProviderFactory creates the delivery provider selected by cfg.
type ProviderFactory func(ctx context.Context, cfg *config.Config) (provider.Provider, error)

// Options configures Run. Zero fields fall back to the process defaults.
type Options struct {
	ConfigPath string
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
	Now        func() time.Time

	// NewProvider defaults to NewProvider writing dry runs to Stdout.
	NewProvider ProviderFactory

	// InstallDefault makes the run's logger the slog default.
	InstallDefault bool
}

func (o *Options) setDefaults() {
	if o.ConfigPath == "" {
		o.ConfigPath = config.DefaultPath()
	}
	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewProvider == nil {
		out := o.Stdout
		o.NewProvider = func(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
			return NewProvider(ctx, cfg, out)
		}
	}
}

// Run performs a single relay. A *config.MissingError means the settings
// template was just created; nothing else was attempted.
func Run(ctx context.Context, opts Options) error {
	opts.setDefaults()

	level := new(slog.LevelVar)
	logger := opts.logger(logging.Options{Level: level, Dir: filepath.Dir(opts.ConfigPath)})

	cfg, err := config.Load(opts.ConfigPath)
	var missing *config.MissingError
	if errors.As(err, &missing) {
		logger.Warn(firstRunMessage, "path", missing.Path)
		return err
	}
	if err != nil {
		logger.Error("Problem loading settings.", "path", opts.ConfigPath, "error", err)
		return &ConfigError{Err: err}
	}

	level.Set(logging.ParseLevel(cfg.Logging.Level))
	logger = opts.logger(logging.Options{Format: cfg.Logging.Format, Level: level, Dir: cfg.Dir})

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid settings.", "path", opts.ConfigPath, "error", err)
		return &ConfigError{Err: err}
	}

	raw, err := input.Read(opts.Stdin)
	if err != nil {
		logger.Error("Problem reading standard input.", "error", err)
		return &InputError{Err: err}
	}

	if cfg.SaveEmailsToDisk {
		path, err := input.SaveRaw(cfg.Dir, raw, opts.Now(), opts.Stdout)
		if err != nil {
			logger.Error("Problem saving email to disk.", "dir", cfg.Dir, "error", err)
		} else {
			logger.Debug("saved raw email", "path", path)
		}
	}

	msg, err := translate(raw, cfg)
	if err != nil {
		logger.Error("Problem parsing email.", "error", err)
		return err
	}

	p, err := opts.NewProvider(ctx, cfg)
	if err != nil {
		logger.Error("Problem creating mail provider.", "provider", cfg.Provider, "error", err)
		return &ConfigError{Err: err}
	}

	return relay.New(p, logger).Deliver(ctx, cfg.Graph.SendingUser, msg)
}

// translate parses raw and builds the outbound message with the configured
// content options.
func translate(raw []byte, cfg *config.Config) (*email.Outbound, error) {
	parsed, err := parser.Parse(raw)
	if err != nil {
		return nil, err
	}

	return compose.Build(parsed, normalize.Options{
		DecodeHTML:         cfg.Content.HTMLDecode,
		CollapseBlankLines: cfg.Content.RemoveDuplicateBlankLines,
	})
}

func (o *Options) logger(lo logging.Options) *slog.Logger {
	lo.Console = o.Stderr
	logger := logging.New(lo)
	if o.InstallDefault {
		slog.SetDefault(logger)
	}
	return logger
}

// NewProvider creates the provider named by cfg.Provider. The stdout
// provider prints to out, or to os.Stdout when out is nil.
func NewProvider(ctx context.Context, cfg *config.Config, out io.Writer) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderSES:
		p, err := ses.New(ctx, ses.SESProviderConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.ProviderStdout:
		if out == nil {
			return stdout.New(), nil
		}
		return stdout.NewWithWriter(out), nil
	case config.ProviderGraph, "":
		return graph.New(ctx, graph.GraphProviderConfig{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// ExitCode maps an error returned by Run to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return exitcode.Success
	}

	var (
		missing     *config.MissingError
		parseErr    *email.ParseError
		lookupErr   *relay.IdentityLookupError
		notFoundErr *relay.IdentityNotFoundError
		sendErr     *relay.SendError
		inputErr    *InputError
	)

	switch {
	case errors.As(err, &missing):
		return exitcode.Success
	case errors.As(err, &parseErr):
		return exitcode.ParseError
	case errors.As(err, &lookupErr), errors.As(err, &notFoundErr):
		return exitcode.IdentityError
	case errors.As(err, &sendErr):
		return exitcode.SendError
	case errors.As(err, &inputErr):
		return exitcode.IOError
	default:
		return exitcode.ConfigError
	}
}
