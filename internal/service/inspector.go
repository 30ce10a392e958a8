package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/target/tokenlab/internal/clock"
	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/ports"
)

// TokenStatus is the headline badge of the inspector.
type TokenStatus string

const (
	StatusNoToken  TokenStatus = "NO TOKEN"
	StatusValid    TokenStatus = "VALID"
	StatusExpired  TokenStatus = "EXPIRED"
	StatusTampered TokenStatus = "TAMPERED"
)

// InvalidTimerLabel replaces the countdown of a tampered token; its expiry no longer matters.
const InvalidTimerLabel = "INVALID"

// MalformedPayloadText is shown when the active token does not decode.
const MalformedPayloadText = "Could not decode token (malformed)"

// View is everything the presenter needs to render the token inspector.
type View struct {
	Session   Snapshot
	Status    TokenStatus
	Countdown token.Countdown
	Severity  token.Severity
	Timer     string
	ExpiresAt time.Time // zero when the token is tampered or carries no exp
	Payload   string
}

// BuildView derives the inspector view for snap at instant now.
func BuildView(snap Snapshot, now time.Time) View {
	return buildView(snap, token.Compute(snap.Claims, now))
}

func buildView(snap Snapshot, cd token.Countdown) View {
	v := View{
		Session:   snap,
		Countdown: cd,
		Severity:  token.SeverityOf(cd.Fraction),
	}

	switch {
	case !snap.HasToken():
		v.Status = StatusNoToken
	case snap.Tampered:
		v.Status = StatusTampered
	case cd.Expired():
		v.Status = StatusExpired
	default:
		v.Status = StatusValid
	}

	if snap.Tampered {
		v.Timer = InvalidTimerLabel
	} else {
		v.Timer = token.Format(cd.Remaining)
		if exp, ok := snap.Claims.ExpiresAt(); ok {
			v.ExpiresAt = time.Unix(exp, 0)
		}
	}

	switch {
	case !snap.HasToken():
	case snap.Claims == nil:
		v.Payload = MalformedPayloadText
	default:
		v.Payload = MalformedPayloadText
		if pretty, err := json.MarshalIndent(snap.Claims, "", "  "); err == nil {
			v.Payload = string(pretty)
		}
	}
	return v
}

// ClaimsEvaluator runs claim queries; it abstracts JMESPath for testability.
type ClaimsEvaluator interface {
	Evaluate(expr string, data any) (any, error)
}

// jmespathEvaluator implements ClaimsEvaluator using go-jmespath.
type jmespathEvaluator struct{}

func (jmespathEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// InspectorOptions groups dependencies for Inspector.
type InspectorOptions struct {
	Session   *SessionStore
	Clock     ports.Clock
	Interval  time.Duration
	Evaluator ClaimsEvaluator
}

// Inspector keeps a live countdown for the session's current token and routes
// tamper actions into the session. Start arms it; Close releases the timer.
type Inspector struct {
	session *SessionStore
	clock   ports.Clock
	watcher *CountdownWatcher
	eval    ClaimsEvaluator

	mu          sync.Mutex
	ctx         context.Context
	onView      func(View)
	lastToken   string
	unsubscribe func()
}

// NewInspector constructs an Inspector over a session.
func NewInspector(opts InspectorOptions) *Inspector {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	eval := opts.Evaluator
	if eval == nil {
		eval = jmespathEvaluator{}
	}
	return &Inspector{
		session: opts.Session,
		clock:   clk,
		watcher: NewCountdownWatcher(CountdownWatcherOptions{Clock: clk, Interval: opts.Interval}),
		eval:    eval,
	}
}

// Start begins delivering views to onView: on every session transition and on
// every countdown tick. The timer is re-armed whenever the token changes and
// stopped when the token no longer has decodable claims. Start is not reentrant;
// Close before starting again.
func (i *Inspector) Start(ctx context.Context, onView func(View)) {
	i.mu.Lock()
	i.ctx = ctx
	i.onView = onView
	i.lastToken = ""
	i.mu.Unlock()

	// Subscribe before the forced refresh so no transition falls between them.
	unsubscribe := i.session.Subscribe(func(snap Snapshot) {
		i.refresh(snap, false)
	})

	i.mu.Lock()
	i.unsubscribe = unsubscribe
	i.mu.Unlock()

	i.refresh(i.session.Snapshot(), true)
}

// Close stops the countdown and detaches from the session.
func (i *Inspector) Close() {
	i.mu.Lock()
	unsubscribe := i.unsubscribe
	i.unsubscribe = nil
	i.onView = nil
	i.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	i.watcher.Stop()
}

// Ticking reports whether the countdown timer is running.
func (i *Inspector) Ticking() bool { return i.watcher.Running() }

// View returns the current view without waiting for a tick.
func (i *Inspector) View() View {
	return BuildView(i.session.Snapshot(), i.clock.Now())
}

func (i *Inspector) refresh(snap Snapshot, force bool) {
	i.mu.Lock()
	onView := i.onView
	ctx := i.ctx
	changed := force || snap.Token != i.lastToken
	i.lastToken = snap.Token
	i.mu.Unlock()

	if onView == nil {
		return
	}

	if !changed {
		onView(BuildView(snap, i.clock.Now()))
		return
	}

	// The tick closure captures snap so decode, compute and render agree on one token.
	armed := i.watcher.Watch(ctx, snap.Claims, func(cd token.Countdown) {
		onView(buildView(snap, cd))
	})
	if !armed {
		onView(BuildView(snap, i.clock.Now()))
	}
}

// ErrNoClaims is returned by Query when the active token has no decodable claims.
var ErrNoClaims = errors.New("no decodable claims")

// Query evaluates a JMESPath expression against the decoded claims of the active token.
func (i *Inspector) Query(expr string) (any, error) {
	return QueryClaims(i.eval, i.session.Snapshot().Claims, expr)
}

// QueryClaims evaluates expr against claims with eval.
func QueryClaims(eval ClaimsEvaluator, claims token.Claims, expr string) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, errors.New("query expression is required")
	}
	if claims == nil {
		return nil, ErrNoClaims
	}
	if eval == nil {
		eval = jmespathEvaluator{}
	}

	// JMESPath compares numbers as float64, so drop the json.Number representation first.
	raw, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("marshal claims: %w", err)
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	out, err := eval.Evaluate(expr, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	return out, nil
}

// CorruptSignature, SwapRole, Clear, Replace and Restore route operator actions to the session.

func (i *Inspector) CorruptSignature() (Snapshot, error) { return i.session.CorruptSignature() }

func (i *Inspector) SwapRole() (Snapshot, error) { return i.session.SwapRole() }

func (i *Inspector) Clear() Snapshot { return i.session.Clear() }

func (i *Inspector) Replace(value string) Snapshot { return i.session.Replace(value) }

func (i *Inspector) Restore() (Snapshot, error) { return i.session.Restore() }
