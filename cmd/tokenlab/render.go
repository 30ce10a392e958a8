package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/tokenlab/internal/adapters/authapi"
	domainauth "github.com/target/tokenlab/internal/domain/auth"
	apperrors "github.com/target/tokenlab/internal/errors"
	"github.com/target/tokenlab/internal/service"
)

const progressWidth = 20

const (
	msgCorrupted = "Signature corrupted: last 10 characters replaced with garbage. " +
		"The server will reject this token because the signature no longer matches."
	msgRoleSwapped = "Role swapped: payload changed to %s. " +
		"The signature is now invalid, the server will reject this."
	msgCleared     = "Token cleared. Protected endpoints will return 403."
	msgRestored    = "Token restored. API calls should work again."
	msgReplaced    = "Token replaced."
	msgLoggedOut   = "Logged out."
	msgNoToken     = "No token. Log in to start a session."
	msgTamperNoOp  = "Nothing to do: %s."
	tamperedBanner = "TOKEN MODIFIED: the server will reject it because the signature no longer matches the payload. " +
		"The countdown is meaningless."
)

// renderView prints the inspector panel for v.
func renderView(w io.Writer, v service.View) error {
	if !v.Session.HasToken() {
		return writeln(w, msgNoToken)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Status:", string(v.Status)},
		{"Time remaining:", v.Timer},
		{"Progress:", progressBar(v)},
	}
	if !v.ExpiresAt.IsZero() {
		rows = append(rows, [2]string{"Expires:", v.ExpiresAt.Local().Format(time.RFC1123)})
	}
	if v.Session.Original != "" {
		rows = append(rows, [2]string{"Reference:", "kept (restore available)"})
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if v.Status == service.StatusTampered {
		if err := writeln(w, tamperedBanner); err != nil {
			return err
		}
	}
	if err := writeln(w, "Decoded payload:"); err != nil {
		return err
	}
	return writeln(w, v.Payload)
}

// progressBar draws the remaining-lifetime fraction; a tampered token shows a full bar.
func progressBar(v service.View) string {
	fraction := v.Countdown.Fraction
	label := string(v.Severity)
	if v.Status == service.StatusTampered {
		fraction = 1
		label = string(service.StatusTampered)
	}
	filled := int(fraction*progressWidth + 0.5)
	filled = min(max(filled, 0), progressWidth)
	return fmt.Sprintf("[%s%s] %3.0f%% %s",
		strings.Repeat("#", filled),
		strings.Repeat("-", progressWidth-filled),
		fraction*100,
		label,
	)
}

// renderTick is the one-line countdown the shell's watch mode redraws in place.
func renderTick(v service.View) string {
	if !v.Session.HasToken() {
		return msgNoToken
	}
	return fmt.Sprintf("%-9s %-14s %s", v.Status, v.Timer, progressBar(v))
}

// renderResponse prints an auth service reply or its error.
func renderResponse(w io.Writer, resp domainauth.Response, err error) error {
	if err != nil {
		if werr := writef(w, "Error: %s\n", operatorMessage(err)); werr != nil {
			return werr
		}
		if status := authapi.StatusOf(err); status != 0 {
			return writef(w, "Status: %d\n", status)
		}
		return nil
	}

	out := map[string]any{"status": resp.Status}
	for k, v := range resp.Body {
		out[k] = v
	}
	if resp.Body == nil && resp.Raw != "" {
		out["rawResponse"] = resp.Raw
	}
	pretty, merr := json.MarshalIndent(out, "", "  ")
	if merr != nil {
		return fmt.Errorf("format response: %w", merr)
	}
	if werr := writeln(w, "Response:"); werr != nil {
		return werr
	}
	return writeln(w, string(pretty))
}

// operatorMessage strips wrapping from errors meant for the operator.
func operatorMessage(err error) string {
	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if errors.Is(err, service.ErrNoSessionToken) {
		return service.ErrNoSessionToken.Error()
	}
	return err.Error()
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
