// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main runs the tagfilter engine as a msgpack IPC server for an editor
host, or as a CLI for testing suggestions.

tagfilter keeps a search box's query in sync with a managed filter block inside
markdown notes. The host streams keystrokes; tagfilter suggests tags, and a
moment after the user stops typing rewrites only the managed part of the
note's ```base block:

	```base
	# BEGIN FILTERS (managed by tagfilter)
	# tagfilter-input: %23proj
	# tagfilter-caret: 5
	filters:
	  or:
	    - file.hasTag("project")
	    - file.hasTag("projecta")
	# END FILTERS
	# Manual edits below this point are preserved.
	```

# Usage

Serve a vault over stdin/stdout:

	tagfilter --vault ~/notes

Watch the vault for changes made by other programs and enable debug logs:

	tagfilter --vault ~/notes --watch -d

Try suggestions interactively:

	tagfilter --vault ~/notes -c

# Configuration

Settings live in a TOML file, created with defaults on first run:

	[match]
	enable_prefix = true
	enable_suffix = true
	enable_substring = true

	[sync]
	debounce_ms = 1000
	index_debounce_ms = 500

Settings changed over IPC are written back to the same file.

# Command Line Flags

	--vault string    Vault directory (default from config, else cwd)
	--config string   Path to a config file
	-d                Enable debug logging
	-c                Run the CLI instead of the IPC server
	--watch           Watch the vault for external changes
	--limit int       Suggestions per CLI token
	--no-filter       Do not reject invalid CLI tokens
	--version         Show the version

All logs go to stderr; stdout carries only msgpack.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bastiangx/tagfilter/internal/cli"
	"github.com/bastiangx/tagfilter/pkg/config"
	"github.com/bastiangx/tagfilter/pkg/server"
	"github.com/bastiangx/tagfilter/pkg/suggest"
	"github.com/bastiangx/tagfilter/pkg/syncer"
	"github.com/bastiangx/tagfilter/pkg/vault"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"
)

const (
	Version = "0.1.0-beta"
	AppName = "tagfilter"
	gh      = "https://github.com/bastiangx/tagfilter"
)

// sigHandler flushes pending writes and exits on SIGINT/SIGTERM.
func sigHandler(cancel context.CancelFunc, engine *syncer.Engine) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		engine.Close()
		cancel()
		os.Exit(0)
	}()
}

// main wires config, vault, engine and the chosen front end.
func main() {
	showVersion := flag.Bool("version", false, "Show current version")
	vaultDir := flag.String("vault", "", "Vault directory (default: [vault] root from config, else cwd)")
	configPath := flag.String("config", "", "Path to config file")
	debugMode := flag.BoolP("debug", "d", false, "Toggle debug mode")
	cliMode := flag.BoolP("cli", "c", false, "Run CLI -- useful for testing and debugging")
	watch := flag.Bool("watch", false, "Watch the vault for changes made by other programs")
	limit := flag.Int("limit", suggest.SuggestionLimit, "Number of suggestions per CLI token")
	noFilter := flag.Bool("no-filter", false, "Disable CLI token validation (DBG only)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	cfg, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(activePath))

	root := *vaultDir
	if root == "" {
		root = cfg.Vault.Root
	}
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			log.Fatalf("Failed to determine vault dir: %v", err)
		}
		log.Warnf("No vault dir given, using cwd: %s", root)
	}
	store, err := vault.New(root, cfg.Vault.Extensions)
	if err != nil {
		log.Fatalf("Failed to open vault: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := syncer.New(ctx, syncer.Options{Docs: store, Source: store, Config: cfg})
	if err != nil {
		log.Fatalf("Failed to init engine: %v", err)
	}
	sigHandler(cancel, engine)

	if err := engine.RebuildIndex(ctx); err != nil {
		log.Warnf("Initial tag index build failed: %v", err)
	}

	// CLI would be mainly used for testing and dbg purposes.
	if *cliMode {
		log.SetReportTimestamp(false)
		inputHandler := cli.NewInputHandler(engine.Provider(), os.Stdin, os.Stderr,
			cfg.Server.MaxToken, *limit, cfg.Filter.MaxTagsPerTerm, *noFilter)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	if *watch {
		watcher, err := vault.NewWatcher(store, engine.HandleNotification)
		if err != nil {
			log.Fatalf("Failed to create watcher: %v", err)
		}
		if err := watcher.Start(ctx); err != nil {
			log.Fatalf("Failed to watch vault: %v", err)
		}
		defer watcher.Stop()
	}

	srv := server.NewServer(engine, cfg, activePath)
	showStartupInfo(store.Root(), engine.Index().Snapshot().Len())

	if err := srv.Start(ctx); err != nil {
		engine.Close()
		log.Fatalf("Server error: %v", err)
	}
	engine.Close()
}

func printVersion() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	logger.SetStyles(styles)

	logger.Print("")
	logger.Print("[ tagfilter ] Keeps your filter blocks in sync with what you type")
	logger.Print("", "version", Version)
	logger.Print("")
	logger.Print("use -h or --help to see available options")
	logger.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(root string, tags int) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	fmt.Fprintln(os.Stderr, "===========")
	fmt.Fprintln(os.Stderr, " tagfilter ")
	fmt.Fprintln(os.Stderr, "===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("vault: ( %s )", root)
	log.Infof("tags indexed: %d", tags)
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "===========")

	log.SetLevel(currentLevel)
}
