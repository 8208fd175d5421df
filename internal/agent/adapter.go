// internal/agent/adapter.go
package agent

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/assistant-operate/api/schemas"
	"github.com/xkilldash9x/assistant-operate/internal/assistclient"
	"github.com/xkilldash9x/assistant-operate/internal/config"
	"github.com/xkilldash9x/assistant-operate/internal/observability"
	"github.com/xkilldash9x/assistant-operate/internal/operations"
	"github.com/xkilldash9x/assistant-operate/internal/prompt"
	"github.com/xkilldash9x/assistant-operate/internal/session"
)

// ErrImageRead wraps failures to read the screenshot artifact handed to RunTurn.
var ErrImageRead = errors.New("agent: failed to read image artifact")

// Transport performs one request/response cycle with the reasoning endpoint.
// *assistclient.Client is the production implementation.
type Transport interface {
	Analyze(ctx context.Context, imageBase64, prompt, objective string) (assistclient.RawResponse, error)
}

var _ Transport = (*assistclient.Client)(nil)

// Adapter runs turns for a single task: it turns a screenshot and an objective into a
// validated list of operations and records each successful turn in its session.
//
// An Adapter must not run two turns at once. RunTurn mutates the session without locking.
type Adapter struct {
	transport  Transport
	history    *session.History
	fs         afero.Fs
	registerer prometheus.Registerer
	metrics    *observability.Metrics
	logger     *zap.Logger
	turnSeq    int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithTransport replaces the endpoint client built from the configuration.
func WithTransport(t Transport) Option {
	return func(a *Adapter) { a.transport = t }
}

// WithFs sets the filesystem image artifacts are read from. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(a *Adapter) { a.fs = fs }
}

// WithRegisterer registers the adapter's metrics with reg. Without it the metrics are kept
// but not exported.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *Adapter) { a.registerer = reg }
}

// NewAdapter builds an Adapter with a fresh, empty session.
func NewAdapter(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("agent: configuration is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Adapter{
		history: session.New(),
		fs:      afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.Named("agent").With(zap.String("session_id", a.history.ID()))

	if a.transport == nil {
		client, err := assistclient.New(cfg.Assistant, logger)
		if err != nil {
			return nil, err
		}
		a.transport = client
	}

	metrics, err := observability.NewMetrics(cfg.Metrics.Namespace, a.registerer)
	if err != nil {
		return nil, fmt.Errorf("agent: failed to register metrics: %w", err)
	}
	a.metrics = metrics
	return a, nil
}

// Session returns the adapter's message log. Callers append the opening user message
// through it before the first turn.
func (a *Adapter) Session() *session.History { return a.history }

// RunTurn performs one full turn: read and encode the image, pick the prompt from the
// session's turn state, call the endpoint, normalize and validate the response, then record
// the returned operations as an assistant message.
//
// Errors from the transport (assistclient.ErrAPIUnreachable, ErrAPITimeout, ErrAPIRequest)
// and from normalization (operations.ErrResponseUnparseable) are returned unmodified. The
// session is only touched after validation succeeds, so a failed turn leaves it unchanged.
// Candidates that fail validation are dropped; a turn may succeed with zero operations.
func (a *Adapter) RunTurn(ctx context.Context, imagePath, objective string) ([]schemas.Operation, error) {
	start := time.Now()
	a.turnSeq++
	log := a.logger.With(zap.Int("turn", a.turnSeq))

	image, err := a.encodeImage(imagePath)
	if err != nil {
		a.fail(log, observability.OutcomeImageError, start, err)
		return nil, err
	}

	if a.history.Len() == 0 {
		log.Warn("Session has no messages; the objective should be recorded before the first turn")
	}
	state := a.history.TurnState()
	text := prompt.Build(objective, state == schemas.FirstTurn)
	log.Debug("Prompt prepared", zap.Stringer("turn_state", state), zap.Int("prompt_len", len(text)))

	raw, err := a.transport.Analyze(ctx, image, text, objective)
	if err != nil {
		a.fail(log, observability.OutcomeTransportError, start, err)
		return nil, err
	}

	candidates, err := operations.Normalize(raw)
	if err != nil {
		a.fail(log, observability.OutcomeUnparseable, start, err)
		return nil, err
	}

	ops, drops := operations.ValidateAll(candidates)
	for _, d := range drops {
		log.Debug("Dropped invalid candidate",
			zap.Int("index", d.Index),
			zap.String("reason", string(d.Reason)),
			zap.String("detail", d.Detail))
		a.metrics.AddDropped(string(d.Reason))
	}

	content, err := schemas.MarshalOperations(ops)
	if err != nil {
		a.fail(log, observability.OutcomeInternalError, start, err)
		return nil, err
	}
	if err := a.history.Append(schemas.RoleAssistant, content); err != nil {
		a.fail(log, observability.OutcomeInternalError, start, err)
		return nil, err
	}

	for _, op := range ops {
		a.metrics.AddOperation(string(op.Kind()))
	}
	a.metrics.ObserveTurn(observability.OutcomeOK, time.Since(start))
	log.Info("Turn complete",
		zap.Stringer("turn_state", state),
		zap.Int("candidates", len(candidates)),
		zap.Int("operations", len(ops)),
		zap.Int("dropped", len(drops)),
		zap.Duration("duration", time.Since(start)))
	return ops, nil
}

func (a *Adapter) encodeImage(path string) (string, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageRead, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func (a *Adapter) fail(log *zap.Logger, outcome string, start time.Time, err error) {
	a.metrics.ObserveTurn(outcome, time.Since(start))
	log.Warn("Turn failed", zap.String("outcome", outcome), zap.Error(err))
}
