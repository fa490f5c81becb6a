// Command projectdb is an interactive client for the projects database.
//
// Configuration is read from a YAML file (see -config) and may be overridden
// with PROJECTDB_DSN, PROJECTDB_DIALECT and PROJECTDB_LOG_LEVEL.
//
// Usage:
//
//	projectdb -config projectdb.yaml
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"

	"github.com/shrek82/projectdb"
	"github.com/shrek82/projectdb/config"
	"github.com/shrek82/projectdb/middleware"
)

const prompt = "projectdb> "

func main() {
	configPath := flag.String("config", "projectdb.yaml", "configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyPath(),
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	client, err := projectdb.Open(cfg, projectdb.WithPrompter(&linePrompter{rl: rl, out: os.Stdout, prompt: prompt}))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	sess := NewSession(client.Bindings, client.Manager)
	if client.Cached {
		sess.cacheTTL = middleware.UseDefault
	}

	fmt.Printf("projectdb (%s) - type 'help' for commands, 'exit' to quit\n", cfg.Database.Dialect)
	for {
		line, err := rl.ReadLine()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if lower == "exit" || lower == "quit" {
			break
		}
		if err := sess.Execute(line); err != nil {
			fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
		}
	}
	fmt.Println()
}

func historyPath() string {
	u, err := user.Current()
	if err != nil {
		return ""
	}
	return filepath.Join(u.HomeDir, ".projectdb_history")
}
