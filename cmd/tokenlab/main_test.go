package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/tokenlab/config"
	"github.com/target/tokenlab/internal/bootstrap"
	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/service"
	"github.com/target/tokenlab/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestContext points a command context at an in-process auth stub with an in-memory token store.
func newTestContext(t *testing.T, stdin string) (*commandContext, *bytes.Buffer) {
	t.Helper()

	cfg := config.AppConfig{
		Store: config.StoreConfig{Backend: config.StoreBackendMemory},
		Stub:  config.StubConfig{JWTSecret: string(testutil.TestSigningKey)},
	}
	cfg.Sanitize()

	stub, err := bootstrap.NewStubServer(context.Background(), bootstrap.StubOptions{Config: &cfg, Logger: discardLogger()})
	require.NoError(t, err)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)
	cfg.AuthAPI.BaseURL = srv.URL

	out := &bytes.Buffer{}
	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: discardLogger(),
		Config: cfg,
		Stdin:  strings.NewReader(stdin),
		Stdout: out,
	}
	t.Cleanup(func() { require.NoError(t, cmdCtx.closeSession()) })
	return cmdCtx, out
}

func register(t *testing.T, cmdCtx *commandContext, role string) {
	t.Helper()
	require.NoError(t, runRegister(cmdCtx, []string{
		"--name", "Ada", "--email", "ada@example.com", "--password", "secret123", "--role", role,
	}))
}

func TestPrintUsageListsCommandsSorted(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))

	out := buf.String()
	for name := range commands() {
		assert.Contains(t, out, "  "+name)
	}
	assert.Less(t, strings.Index(out, "admin"), strings.Index(out, "swap-role"))
}

func TestParseShowFlags(t *testing.T) {
	opts, err := parseShowFlags([]string{"--query", "role"})
	require.NoError(t, err)
	assert.Equal(t, "role", opts.Query)

	_, err = parseShowFlags([]string{"--raw", "--query", "role"})
	require.ErrorIs(t, err, errUsage)

	_, err = parseShowFlags([]string{"--nope"})
	require.ErrorIs(t, err, errUsage)
}

func TestRunEditRequiresToken(t *testing.T) {
	cmdCtx, _ := newTestContext(t, "")

	err := runEdit(cmdCtx, []string{"  "})
	require.ErrorIs(t, err, errUsage)
	assert.Nil(t, cmdCtx.session)
}

func TestTamperFlowAgainstStub(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")

	register(t, cmdCtx, "role_admin")
	assert.Contains(t, out.String(), "Registration successful")
	assert.Contains(t, out.String(), "VALID")

	out.Reset()
	require.NoError(t, runAdmin(cmdCtx, nil))
	assert.Contains(t, out.String(), "Welcome to the admin dashboard")

	out.Reset()
	require.NoError(t, runSwapRole(cmdCtx, nil))
	assert.Contains(t, out.String(), "Role swapped: payload changed to ROLE_USER")
	assert.Contains(t, out.String(), "TOKEN MODIFIED")
	assert.Contains(t, out.String(), service.InvalidTimerLabel)

	out.Reset()
	require.NoError(t, runProfile(cmdCtx, nil))
	assert.Contains(t, out.String(), "Status: 403")

	out.Reset()
	require.NoError(t, runRestore(cmdCtx, nil))
	assert.Contains(t, out.String(), msgRestored)

	out.Reset()
	require.NoError(t, runCorrupt(cmdCtx, nil))
	assert.Contains(t, out.String(), "Signature corrupted")
	assert.True(t, strings.HasSuffix(cmdCtx.session.Store.Snapshot().Token, token.SignatureSentinel))

	out.Reset()
	require.NoError(t, runAdmin(cmdCtx, nil))
	assert.Contains(t, out.String(), "Status: 403")

	out.Reset()
	require.NoError(t, runLogout(cmdCtx, nil))
	assert.Contains(t, out.String(), msgLoggedOut)
	assert.False(t, cmdCtx.session.Store.Snapshot().HasToken())

	out.Reset()
	require.NoError(t, runProfile(cmdCtx, nil))
	assert.Contains(t, out.String(), service.ErrNoSessionToken.Error())
}

func TestTamperWithoutTokenIsNoOp(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")

	require.NoError(t, runCorrupt(cmdCtx, nil))
	assert.Contains(t, out.String(), "Nothing to do: corrupt signature without a token.")

	out.Reset()
	require.NoError(t, runRestore(cmdCtx, nil))
	assert.Contains(t, out.String(), "Nothing to do: restore without a reference token.")
}

func TestShowVariants(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")

	require.NoError(t, runShow(cmdCtx, nil))
	assert.Contains(t, out.String(), msgNoToken)

	register(t, cmdCtx, "ROLE_USER")

	out.Reset()
	require.NoError(t, runShow(cmdCtx, []string{"--query", "role"}))
	assert.Equal(t, "\"ROLE_USER\"\n", out.String())

	out.Reset()
	require.NoError(t, runShow(cmdCtx, []string{"--raw"}))
	assert.Equal(t, cmdCtx.session.Store.Snapshot().Token+"\n", out.String())
}

func TestEditMalformedToken(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")

	require.NoError(t, runEdit(cmdCtx, []string{" not-a-jwt "}))
	assert.Contains(t, out.String(), msgReplaced)
	assert.Contains(t, out.String(), service.MalformedPayloadText)
	assert.Equal(t, "not-a-jwt", cmdCtx.session.Store.Snapshot().Token)

	out.Reset()
	require.NoError(t, runSwapRole(cmdCtx, nil))
	assert.Contains(t, out.String(), "Nothing to do:")

	err := runShow(cmdCtx, []string{"--query", "role"})
	require.ErrorIs(t, err, service.ErrNoClaims)
}

func TestLoginRejected(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")
	register(t, cmdCtx, "ROLE_USER")
	require.NoError(t, runLogout(cmdCtx, nil))

	out.Reset()
	err := runLogin(cmdCtx, []string{"--email", "ada@example.com", "--password", "wrong-password"})
	require.Error(t, err)
	var reported reportedError
	require.True(t, errors.As(err, &reported))
	assert.Contains(t, out.String(), "Status: 401")
	assert.False(t, cmdCtx.session.Store.Snapshot().HasToken())
}

func TestLoginValidation(t *testing.T) {
	cmdCtx, out := newTestContext(t, "")

	err := runLogin(cmdCtx, []string{"--email", "not-an-email", "--password", "x"})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Error: Enter a valid email address")
}

func TestProgressBar(t *testing.T) {
	half := service.View{
		Status:    service.StatusValid,
		Countdown: token.Countdown{Fraction: 0.5},
		Severity:  token.SeverityWarning,
	}
	assert.Equal(t, "[##########----------]  50% WARNING", progressBar(half))

	tampered := service.View{Status: service.StatusTampered, Countdown: token.Countdown{Fraction: 0.1}}
	assert.Equal(t, "[####################] 100% TAMPERED", progressBar(tampered))
}

func TestRenderViewLiveToken(t *testing.T) {
	now := testutil.TestTime()
	tok := testutil.NewToken().WithLifetime(now, 3661*time.Second).Build()
	claims, err := token.Decode(tok)
	require.NoError(t, err)

	v := service.BuildView(service.Snapshot{State: service.StateActive, Token: tok, Claims: claims}, now)

	var buf bytes.Buffer
	require.NoError(t, renderView(&buf, v))
	out := buf.String()
	assert.Contains(t, out, "Status:")
	assert.Contains(t, out, "1h 1m 1s")
	assert.Contains(t, out, "Expires:")
	assert.Contains(t, out, "\"role\": \"ROLE_USER\"")
	assert.NotContains(t, out, "TOKEN MODIFIED")
}

func TestShellSession(t *testing.T) {
	input := strings.Join([]string{
		"register --name Ada --email ada@example.com --password secret123 --role ROLE_ADMIN",
		"swap-role",
		"query role",
		"bogus",
		"watch",
		"",
		"exit",
		"show",
	}, "\n") + "\n"
	cmdCtx, out := newTestContext(t, input)

	require.NoError(t, runShell(cmdCtx, nil))

	got := out.String()
	assert.Contains(t, got, "Registration successful")
	assert.Contains(t, got, "Role swapped: payload changed to ROLE_USER")
	assert.Contains(t, got, "\"ROLE_USER\"")
	assert.Contains(t, got, "unknown command \"bogus\"")
	assert.Contains(t, got, "Live countdown on.")
	assert.Equal(t, service.StatusTampered, cmdCtx.session.Inspector.View().Status)
}

func TestShellEndsOnEOF(t *testing.T) {
	cmdCtx, out := newTestContext(t, "clear\n")

	require.NoError(t, runShell(cmdCtx, nil))
	assert.Contains(t, out.String(), msgCleared)
}
