// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/decouple-mfe/mfeshell/internal/logging"
	"github.com/decouple-mfe/mfeshell/internal/shell"
)

const prompt = "mfeshell> "

const replHelp = `Commands:
  go <path>       navigate the shell to path
  click <link>    follow a link inside the mounted plugin
  back            go back one history entry
  forward         go forward one history entry
  retry           reload the current plugin
  status          show the loader session
  history         show the address bar history
  plugins         list registered plugins
  auth on|off     sign in or out
  help            show this help
  quit            exit
`

// errQuit ends the REPL.
var errQuit = errors.New("quit")

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the shell and read navigation commands from stdin",
		Long: `Start the shell, mount the plugin routed at the initial path and
read navigation commands from stdin until quit or end of input.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

func runShell(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.SetDefault("mfeshell", version, cfg.Log.Format, level, cmd.ErrOrStderr())

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := newShellApp(ctx, cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to build shell: %w", err)
	}
	defer func() {
		if closeErr := app.close(); closeErr != nil {
			logger.Warn("error shutting down shell", "error", closeErr)
		}
	}()

	if err := app.start(ctx, cancel); err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}

	logger.Info("shell started",
		"plugins_dir", cfg.Plugins.Dir,
		"builtin", app.builtins,
		"lua", app.lua,
		"initial_path", cfg.InitialPath)

	app.printView()
	return app.repl(ctx, cmd.InOrStdin())
}

// repl reads commands from in until quit, end of input or ctx ends.
func (a *shellApp) repl(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		_, _ = io.WriteString(a.out, prompt)

		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("failed to read input: %w", err)
					}
				default:
				}
				return nil
			}
			err := a.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(a.out, "error: %v\n", err)
			}
		}
	}
}

// exec runs one REPL command.
func (a *shellApp) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "go":
		if len(args) != 1 {
			return errors.New("usage: go <path>")
		}
		attempt, err := a.router.Navigate(ctx, args[0])
		if err != nil {
			return err
		}
		a.wait(ctx, attempt)
		a.printView()

	case "click":
		if len(args) != 1 {
			return errors.New("usage: click <link>")
		}
		before := a.router.Attempt()
		if !a.surface.Click(args[0]) {
			return errors.New("no plugin is mounted")
		}
		if after := a.router.Attempt(); after != before {
			a.wait(ctx, after)
		}
		a.printView()

	case "back":
		attempt, ok, err := a.router.Back(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("already at the first entry")
		}
		a.wait(ctx, attempt)
		a.printView()

	case "forward":
		attempt, ok, err := a.router.Forward(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("already at the last entry")
		}
		a.wait(ctx, attempt)
		a.printView()

	case "retry":
		attempt, err := a.router.Retry(ctx)
		if err != nil {
			return err
		}
		a.wait(ctx, attempt)
		a.printView()

	case "status":
		s := a.router.Session()
		fmt.Fprintf(a.out, "location:   %s\n", a.router.Location())
		fmt.Fprintf(a.out, "slot:       %s\n", slotLabel(s.Slot.IsZero(), s.Slot.String()))
		fmt.Fprintf(a.out, "status:     %s\n", s.Status)
		fmt.Fprintf(a.out, "generation: %d\n", s.Generation)
		if msg := shell.UserMessage(s); msg != "" {
			fmt.Fprintf(a.out, "message:    %s\n", msg)
		}

	case "history":
		for i, entry := range a.router.History() {
			fmt.Fprintf(a.out, "%2d  %s\n", i, entry)
		}

	case "plugins":
		return writePluginTable(a.out, a.plugins())

	case "auth":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return errors.New("usage: auth on|off")
		}
		a.auth.SetAuthenticated(args[0] == "on")
		fmt.Fprintf(a.out, "authenticated: %t\n", a.auth.IsAuthenticated())

	case "help", "?":
		_, _ = io.WriteString(a.out, replHelp)

	case "quit", "exit":
		return errQuit

	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return nil
}

func slotLabel(zero bool, label string) string {
	if zero {
		return "(none)"
	}
	return label
}
