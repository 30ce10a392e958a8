package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/target/tokenlab/internal/service"
	"golang.org/x/sync/errgroup"
)

const shellPrompt = "tokenlab> "

var errShellExit = errors.New("shell exit")

// reportedError marks an error whose message already reached the operator.
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

// syncWriter serializes command output with countdown ticks.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type shell struct {
	cmdCtx   *commandContext
	views    chan service.View
	watching atomic.Bool
}

func runShell(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	cmdCtx.Stdout = &syncWriter{w: cmdCtx.Stdout}
	sh := &shell{cmdCtx: cmdCtx, views: make(chan service.View, 1)}

	g, gctx := errgroup.WithContext(cmdCtx.Ctx)
	s.Inspector.Start(gctx, sh.offer)
	defer s.Inspector.Close()

	lines := make(chan string)
	go readLines(gctx, cmdCtx.Stdin, lines)

	if err := writeln(cmdCtx.Stdout, "Type help for commands, exit to quit."); err != nil {
		return err
	}
	g.Go(func() error { return sh.renderTicks(gctx) })
	g.Go(func() error { return sh.loop(gctx, lines) })

	if err := g.Wait(); err != nil && !errors.Is(err, errShellExit) {
		return err
	}
	return nil
}

// readLines feeds lines from r until EOF. It is not part of the errgroup: a
// blocked terminal read cannot be interrupted.
func readLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (sh *shell) loop(ctx context.Context, lines <-chan string) error {
	for {
		if err := writef(sh.cmdCtx.Stdout, shellPrompt); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return errShellExit
		case line, ok := <-lines:
			if !ok {
				return errShellExit
			}
			if err := sh.exec(line); err != nil {
				if errors.Is(err, errShellExit) {
					return err
				}
				if werr := sh.report(err); werr != nil {
					return werr
				}
			}
		}
	}
}

func (sh *shell) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	out := sh.cmdCtx.Stdout

	switch name {
	case "exit", "quit":
		return errShellExit
	case "help":
		return printShellHelp(out)
	case "watch":
		on := !sh.watching.Load()
		sh.watching.Store(on)
		if on {
			return writeln(out, "Live countdown on.")
		}
		return writeln(out, "Live countdown off.")
	case "query":
		expr := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), name))
		return printQuery(sh.cmdCtx, sh.cmdCtx.session.Inspector.Query, expr)
	case "shell":
		return writeln(out, "Already in the shell.")
	}

	cmd, ok := commands()[name]
	if !ok {
		return writef(out, "unknown command %q, type help for commands\n", name)
	}
	return cmd.run(sh.cmdCtx, args)
}

func (sh *shell) report(err error) error {
	var reported reportedError
	if errors.As(err, &reported) {
		return nil
	}
	return writef(sh.cmdCtx.Stdout, "Error: %s\n", operatorMessage(err))
}

// offer keeps only the latest view so a slow terminal never stalls the countdown.
func (sh *shell) offer(v service.View) {
	select {
	case <-sh.views:
	default:
	}
	select {
	case sh.views <- v:
	default:
	}
}

func (sh *shell) renderTicks(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-sh.views:
			if !sh.watching.Load() {
				continue
			}
			if err := writeln(sh.cmdCtx.Stdout, renderTick(v)); err != nil {
				return err
			}
		}
	}
}

func printShellHelp(w io.Writer) error {
	if err := printUsage(w); err != nil {
		return err
	}
	return writef(w, "\nShell only:\n  %-12s %s\n  %-12s %s\n  %-12s %s\n",
		"query", "Evaluate a JMESPath expression against the claims",
		"watch", "Toggle the live countdown",
		"exit", "Leave the shell",
	)
}
