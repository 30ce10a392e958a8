package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/target/tokenlab/config"
	"github.com/target/tokenlab/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Stdin  io.Reader
	Stdout io.Writer

	session *bootstrap.Session
}

const closeTimeout = 5 * time.Second

var errUsage = errors.New("usage error")

func main() {
	logger := bootstrap.InitLogger(bootstrap.LoggerOptions{Level: slog.LevelInfo})

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.InitLogger(bootstrap.LoggerOptionsFor(&cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}
	runErr := cmd.run(cmdCtx, os.Args[2:])
	if closeErr := cmdCtx.closeSession(); closeErr != nil {
		logger.Warn("session close failed", "error", closeErr)
	}
	stop()

	if runErr != nil {
		if errors.Is(runErr, errUsage) {
			os.Exit(2) //nolint:forbidigo // CLI must exit with usage status on bad arguments
		}
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"register": {
			name:        "register",
			description: "Create an account on the auth service and start a session",
			run:         runRegister,
		},
		"login": {
			name:        "login",
			description: "Log in and store the issued token",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "Drop the session token",
			run:         runLogout,
		},
		"show": {
			name:        "show",
			description: "Inspect the session token (--query <jmespath>, --raw)",
			run:         runShow,
		},
		"corrupt": {
			name:        "corrupt",
			description: "Replace the last 10 characters of the token signature",
			run:         runCorrupt,
		},
		"swap-role": {
			name:        "swap-role",
			description: "Toggle the role claim between ROLE_USER and ROLE_ADMIN",
			run:         runSwapRole,
		},
		"clear": {
			name:        "clear",
			description: "Remove the session token",
			run:         runClear,
		},
		"edit": {
			name:        "edit",
			description: "Replace the session token with a raw value",
			run:         runEdit,
		},
		"restore": {
			name:        "restore",
			description: "Restore the token issued at the last login",
			run:         runRestore,
		},
		"profile": {
			name:        "profile",
			description: "Call the profile endpoint with the session token",
			run:         runProfile,
		},
		"admin": {
			name:        "admin",
			description: "Call the admin dashboard endpoint with the session token",
			run:         runAdmin,
		},
		"shell": {
			name:        "shell",
			description: "Interactive session with a live expiry countdown",
			run:         runShell,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: tokenlab <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-12s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// sessionFor lazily wires the session so usage errors never touch the backing store.
func (c *commandContext) sessionFor() (*bootstrap.Session, error) {
	if c.session != nil {
		return c.session, nil
	}
	s, err := bootstrap.NewSession(c.Ctx, bootstrap.SessionOptions{Config: &c.Config, Logger: c.Logger})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	c.session = s
	return s, nil
}

func (c *commandContext) closeSession() error {
	if c.session == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Ctx), closeTimeout)
	defer cancel()
	return c.session.Close(ctx)
}
