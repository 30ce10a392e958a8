package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/target/tokenlab/internal/adapters/authapi"
	domainauth "github.com/target/tokenlab/internal/domain/auth"
	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/service"
)

type registerOptions struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type loginOptions struct {
	Email    string
	Password string
}

type showOptions struct {
	Query string
	Raw   bool
}

func parseRegisterFlags(args []string) (registerOptions, error) {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts registerOptions
	fs.StringVar(&opts.Name, "name", "", "Display name (required)")
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Password, at least 8 characters (required)")
	fs.StringVar(&opts.Role, "role", string(domainauth.RoleUser), "Role (ROLE_USER|ROLE_ADMIN)")

	if err := fs.Parse(args); err != nil {
		return registerOptions{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	return opts, nil
}

func parseLoginFlags(args []string) (loginOptions, error) {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts loginOptions
	fs.StringVar(&opts.Email, "email", "", "Account email (required)")
	fs.StringVar(&opts.Password, "password", "", "Password (required)")

	if err := fs.Parse(args); err != nil {
		return loginOptions{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	return opts, nil
}

func parseShowFlags(args []string) (showOptions, error) {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts showOptions
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression evaluated against the decoded claims")
	fs.BoolVar(&opts.Raw, "raw", false, "Print the raw token only")

	if err := fs.Parse(args); err != nil {
		return showOptions{}, fmt.Errorf("%w: %w", errUsage, err)
	}
	if opts.Raw && opts.Query != "" {
		return showOptions{}, fmt.Errorf("%w: --raw and --query are mutually exclusive", errUsage)
	}
	return opts, nil
}

func runRegister(cmdCtx *commandContext, args []string) error {
	opts, err := parseRegisterFlags(args)
	if err != nil {
		return err
	}
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}

	resp, err := s.Auth.Register(cmdCtx.Ctx, domainauth.Registration{
		Name:     opts.Name,
		Email:    opts.Email,
		Password: opts.Password,
		Role:     domainauth.Role(strings.ToUpper(strings.TrimSpace(opts.Role))),
	})
	return renderAuthResult(cmdCtx, resp, err)
}

func runLogin(cmdCtx *commandContext, args []string) error {
	opts, err := parseLoginFlags(args)
	if err != nil {
		return err
	}
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}

	resp, err := s.Auth.Login(cmdCtx.Ctx, domainauth.Credentials{Email: strings.TrimSpace(opts.Email), Password: opts.Password})
	return renderAuthResult(cmdCtx, resp, err)
}

// renderAuthResult prints the reply and, when it established a token, the inspector.
func renderAuthResult(cmdCtx *commandContext, resp domainauth.Response, err error) error {
	if renderErr := renderResponse(cmdCtx.Stdout, resp, err); renderErr != nil {
		return renderErr
	}
	if err != nil {
		return reportedError{err: err}
	}
	if resp.Token() == "" {
		return nil
	}
	if werr := writeln(cmdCtx.Stdout); werr != nil {
		return werr
	}
	return renderView(cmdCtx.Stdout, cmdCtx.session.Inspector.View())
}

func runLogout(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	s.Auth.Logout(cmdCtx.Ctx)
	return writeln(cmdCtx.Stdout, msgLoggedOut)
}

func runShow(cmdCtx *commandContext, args []string) error {
	opts, err := parseShowFlags(args)
	if err != nil {
		return err
	}
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}

	switch {
	case opts.Raw:
		return writeln(cmdCtx.Stdout, s.Store.Snapshot().Token)
	case opts.Query != "":
		return printQuery(cmdCtx, s.Inspector.Query, opts.Query)
	default:
		return renderView(cmdCtx.Stdout, s.Inspector.View())
	}
}

func printQuery(cmdCtx *commandContext, query func(string) (any, error), expr string) error {
	out, err := query(expr)
	if err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("format query result: %w", err)
	}
	return writeln(cmdCtx.Stdout, string(pretty))
}

func runCorrupt(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	_, err = s.Inspector.CorruptSignature()
	return reportTamper(cmdCtx, err, msgCorrupted)
}

func runSwapRole(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	snap, err := s.Inspector.SwapRole()
	var msg string
	if err == nil {
		role, _ := snap.Claims.Role()
		msg = fmt.Sprintf(msgRoleSwapped, role)
	}
	return reportTamper(cmdCtx, err, msg)
}

func runClear(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	s.Inspector.Clear()
	return writeln(cmdCtx.Stdout, msgCleared)
}

func runEdit(cmdCtx *commandContext, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%w: edit takes exactly one non-empty token argument", errUsage)
	}
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	s.Inspector.Replace(strings.TrimSpace(args[0]))
	return reportTamper(cmdCtx, nil, msgReplaced)
}

func runRestore(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	_, err = s.Inspector.Restore()
	return reportTamper(cmdCtx, err, msgRestored)
}

// reportTamper prints msg and the updated inspector, or the no-op notice.
func reportTamper(cmdCtx *commandContext, err error, msg string) error {
	if errors.Is(err, token.ErrNoOpTamper) {
		return writef(cmdCtx.Stdout, msgTamperNoOp+"\n", noOpReason(err))
	}
	if err != nil {
		return err
	}
	if werr := writeln(cmdCtx.Stdout, msg); werr != nil {
		return werr
	}
	return renderView(cmdCtx.Stdout, cmdCtx.session.Inspector.View())
}

// noOpReason keeps the context of a no-op tamper without the sentinel suffix.
func noOpReason(err error) string {
	reason := strings.TrimSuffix(err.Error(), ": "+token.ErrNoOpTamper.Error())
	return strings.TrimSpace(reason)
}

func runProfile(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	resp, err := s.Auth.Profile(cmdCtx.Ctx)
	return renderCallResult(cmdCtx, resp, err)
}

func runAdmin(cmdCtx *commandContext, _ []string) error {
	s, err := cmdCtx.sessionFor()
	if err != nil {
		return err
	}
	resp, err := s.Auth.AdminDashboard(cmdCtx.Ctx)
	return renderCallResult(cmdCtx, resp, err)
}

// renderCallResult prints protected endpoint replies. Rejections are the expected
// outcome of a tampered token, so they are shown but do not fail the command.
func renderCallResult(cmdCtx *commandContext, resp domainauth.Response, err error) error {
	if renderErr := renderResponse(cmdCtx.Stdout, resp, err); renderErr != nil {
		return renderErr
	}
	if err == nil || errors.Is(err, service.ErrNoSessionToken) || authapi.StatusOf(err) != 0 {
		return nil
	}
	return reportedError{err: err}
}
