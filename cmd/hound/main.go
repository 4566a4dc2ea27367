// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command hound runs the local document search service.
//
// Usage:
//
//	hound serve --config hound.yaml
//	hound validate hound.yaml
//	hound keys create --name ci-bot --permissions read,search
//	hound mcp --config hound.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	hound "github.com/kadirpekel/hound"
	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/logger"
	"github.com/kadirpekel/hound/pkg/mcp"
	"github.com/kadirpekel/hound/pkg/server"
	"github.com/kadirpekel/hound/pkg/watcher"
)

const (
	exitOK            = 0
	exitStartupFailed = 1
	exitInvalidConfig = 2
)

// configError marks failures that should exit with the invalid-config code.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the search service."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the configuration JSON Schema."`
	Keys     KeysCmd     `cmd:"" help:"Manage API keys directly against the data directory."`
	MCP      MCPCmd      `cmd:"" name:"mcp" help:"Serve search tools to MCP clients over stdio."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error). Overrides configuration."`
	LogFormat string `help:"Log format (text or json). Overrides configuration."`
}

// loadConfig loads and validates the configuration named on the command
// line, initializing the process-wide logger on the way.
func (cli *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return nil, configError{err}
	}

	levelStr := cli.LogLevel
	if levelStr == "" {
		levelStr = cfg.Logging.Level
	}
	level, _ := logger.ParseLevel(levelStr)
	format := cli.LogFormat
	if format == "" {
		format = cfg.Logging.Format
	}
	logger.Init(level, os.Stderr, format)
	return cfg, nil
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(hound.GetVersion().String())
	return nil
}

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Port           int  `help:"Override the configured listen port."`
	PromptAdminKey bool `name:"prompt-admin-key" help:"Read the admin key from the terminal instead of configuration."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.PromptAdminKey {
		key, err := promptSecret("Admin key: ")
		if err != nil {
			return fmt.Errorf("failed to read admin key: %w", err)
		}
		cfg.Auth.AdminKey = key
	}

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Watcher.Enabled {
		w, err := watcher.New(cfg.Watcher, app.registry, app.scheduler)
		if err != nil {
			return fmt.Errorf("failed to create filesystem watcher: %w", err)
		}
		g.Go(func() error {
			if err := w.Start(ctx); err != nil && ctx.Err() == nil {
				return fmt.Errorf("filesystem watcher stopped: %w", err)
			}
			return nil
		})
	}

	srv := server.New(server.Options{
		Config:        cfg,
		Registry:      app.registry,
		Scheduler:     app.scheduler,
		Engine:        app.engine,
		Ledger:        app.ledger,
		Store:         app.store,
		Embedder:      app.embedder,
		Keys:          app.keys,
		Issuer:        app.issuer,
		Authenticator: app.auth,
		Limiter:       app.limiter,
		Metrics:       app.metrics,
	})

	fmt.Printf("hound %s listening on http://%s\n", hound.Version, cfg.Server.Addr())
	fmt.Printf("   Health:   http://%s/health\n", cfg.Server.Addr())
	fmt.Printf("   API:      http://%s/api/v1\n", cfg.Server.Addr())
	fmt.Printf("   Metrics:  http://%s/metrics\n", cfg.Server.Addr())
	if !app.auth.AdminEnabled() {
		fmt.Println("   Admin:    disabled (no admin key configured)")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	g.Go(func() error {
		return srv.Start(ctx)
	})
	return g.Wait()
}

// promptSecret reads a line from the terminal with echo disabled.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal")
	}
	raw, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// MCPCmd serves the search tools over stdio for MCP clients.
type MCPCmd struct{}

func (c *MCPCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}
	// Logs must not pollute the stdio protocol stream.
	logger.Init(slog.LevelError, os.Stderr, "text")

	app, err := buildApp(cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return mcp.New(app.engine, app.registry).Serve()
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("hound"),
		kong.Description("Local document search with hybrid keyword and semantic retrieval."),
		kong.UsageOnError(),
	)

	if err := ctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var cfgErr configError
		if errors.As(err, &cfgErr) {
			os.Exit(exitInvalidConfig)
		}
		os.Exit(exitStartupFailed)
	}
	os.Exit(exitOK)
}
