package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"portfolio-backend/internal/extract"
	"portfolio-backend/internal/insights"
	"portfolio-backend/internal/llm"
	"portfolio-backend/internal/sessions"
	"portfolio-backend/internal/shared/metrics"
	"portfolio-backend/internal/shared/storage/object"
	"portfolio-backend/internal/shared/telemetry"
)

// DefaultMaxDocumentBytes caps how much of a stored document is read.
const DefaultMaxDocumentBytes = 10 << 20

// Progress checkpoints written as a session moves through the stages.
const (
	progressStarted    = 10
	progressExtracted  = 30
	progressAnalyzing  = 50
	progressAnalyzed   = 80
	progressGenerating = 90
	progressDone       = 100
)

// Extractor turns document bytes into text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType, fileName string) (string, error)
}

// Orchestrator drives review sessions from pending to a terminal state.
type Orchestrator struct {
	Sessions    sessions.Store
	Storage     object.ObjectStore
	Extractor   Extractor
	Interpreter llm.Client
	Dispatcher  Dispatcher

	// RequirePhoneVerification rejects Start for sessions whose phone number
	// was not verified. When false the flag is set during Start.
	RequirePhoneVerification bool
	MaxDocumentBytes         int64
	Now                      func() time.Time
}

// errAborted stops a run whose session left the processing state underneath it.
var errAborted = errors.New("session no longer processing")

// Start validates the trigger, moves the session to processing/parsing and
// dispatches the background task. Failed sessions may be started again.
func (o *Orchestrator) Start(ctx context.Context, sessionID string) (sessions.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return sessions.Session{}, fmt.Errorf("%w: session id is required", sessions.ErrValidation)
	}
	if o.Dispatcher == nil {
		return sessions.Session{}, errors.New("dispatcher not configured")
	}

	current, err := o.Sessions.Get(ctx, sessionID)
	if err != nil {
		return sessions.Session{}, err
	}
	if current.Status == sessions.StatusProcessing || current.Status == sessions.StatusCompleted {
		return sessions.Session{}, fmt.Errorf("%w: session is %s", sessions.ErrConflict, current.Status)
	}
	if !current.PhoneVerified && o.RequirePhoneVerification {
		return sessions.Session{}, sessions.ErrNotVerified
	}

	startedAt := o.now()
	patch := sessions.Patch{
		IfStatus:       []sessions.Status{sessions.StatusPending, sessions.StatusFailed},
		Status:         sessions.Ptr(sessions.StatusProcessing),
		Stage:          sessions.Ptr(sessions.StageParsing),
		Progress:       sessions.Ptr(progressStarted),
		Error:          sessions.Ptr(""),
		ErrorCode:      sessions.Ptr(""),
		ClearResult:    true,
		StartedAt:      &startedAt,
		ClearCompleted: true,
	}
	if !current.PhoneVerified {
		patch.PhoneVerified = sessions.Ptr(true)
	}
	updated, err := o.Sessions.Update(ctx, sessionID, patch)
	if err != nil {
		return sessions.Session{}, err
	}

	requestID := RequestIDFromContext(ctx)
	metrics.IncSessionStarted()
	telemetry.Info("session.status", map[string]any{
		"request_id":        requestID,
		"session_id":        sessionID,
		"status":            sessions.StatusProcessing,
		"status_transition": string(current.Status) + "->processing",
	})

	if err := o.Dispatcher.Dispatch(ctx, Task{SessionID: sessionID, RequestID: requestID}); err != nil {
		_ = o.fail(backgroundWithRequestID(ctx), sessionID, startedAt, failure(sessions.CodeInternalError, "failed to schedule analysis", err))
		return sessions.Session{}, fmt.Errorf("dispatch session %s: %w", sessionID, err)
	}
	return updated, nil
}

// Run executes the stages for one session and writes exactly one terminal
// state. Stage failures are recorded on the session and do not produce an
// error; a non-nil error means the session could not be loaded or written.
func (o *Orchestrator) Run(ctx context.Context, sessionID string) (err error) {
	startedAt := o.now()
	defer func() {
		if r := recover(); r != nil {
			err = o.fail(backgroundWithRequestID(ctx), sessionID, startedAt, fmt.Errorf("panic: %v", r))
		}
	}()

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.run", trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	session, err := o.Sessions.Get(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if session.Status != sessions.StatusProcessing {
		telemetry.Info("pipeline.skip", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"session_id": sessionID,
			"status":     session.Status,
		})
		return nil
	}
	if session.StartedAt != nil {
		startedAt = *session.StartedAt
	}

	result, err := o.execute(ctx, session)
	if err != nil {
		if errors.Is(err, errAborted) {
			telemetry.Warn("pipeline.aborted", map[string]any{
				"request_id": RequestIDFromContext(ctx),
				"session_id": sessionID,
			})
			return nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage failed")
		return o.fail(backgroundWithRequestID(ctx), sessionID, startedAt, err)
	}
	return o.commit(backgroundWithRequestID(ctx), sessionID, startedAt, result)
}

func (o *Orchestrator) execute(ctx context.Context, session sessions.Session) (insights.Insight, error) {
	text, err := o.parse(ctx, session)
	if err != nil {
		return insights.Insight{}, err
	}
	insight, err := o.analyze(ctx, session, text)
	if err != nil {
		return insights.Insight{}, err
	}
	return o.generate(ctx, session, insight)
}

func (o *Orchestrator) parse(ctx context.Context, session sessions.Session) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.parsing")
	defer span.End()

	if o.Storage == nil || o.Extractor == nil {
		return "", errors.New("missing document storage or extractor")
	}
	data, err := object.ReadAll(ctx, o.Storage, session.SourceRef, o.maxDocumentBytes())
	if err != nil {
		return "", failure(sessions.CodeStorageError, "failed to download document", err)
	}
	text, err := o.Extractor.Extract(ctx, data, session.MimeType, session.FileName)
	if err != nil {
		return "", failure(sessions.CodeExtractionFailed, "failed to extract document text", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", failure(sessions.CodeExtractionFailed, "failed to extract document text", extract.ErrNoText)
	}
	span.SetAttributes(attribute.Int("document.text_chars", len(text)))

	if err := o.advance(ctx, session.ID, sessions.StageParsing, progressExtracted); err != nil {
		return "", err
	}
	return text, nil
}

func (o *Orchestrator) analyze(ctx context.Context, session sessions.Session, text string) (insights.Insight, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.analyzing")
	defer span.End()

	if err := o.advance(ctx, session.ID, sessions.StageAnalyzing, progressAnalyzing); err != nil {
		return insights.Insight{}, err
	}
	if o.Interpreter == nil {
		return insights.Insight{}, errors.New("missing llm client")
	}

	resp, err := o.Interpreter.Interpret(ctx, text)
	if err != nil {
		return insights.Insight{}, failure(sessions.CodeInterpretationFailed, "failed to analyze portfolio", err)
	}
	span.SetAttributes(
		attribute.String("llm.provider", resp.Provider),
		attribute.String("llm.model", resp.Model),
		attribute.Bool("llm.structured", resp.IsStructured()),
	)

	insight, missing, err := InsightFromInterpretation(resp)
	if err != nil {
		return insights.Insight{}, failure(sessions.CodeInterpretationFailed, "failed to interpret analysis output", err)
	}
	if len(missing) > 0 {
		telemetry.Debug("insights.parse_degraded", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"session_id": session.ID,
			"defaulted":  missing,
		})
	}

	if err := o.advance(ctx, session.ID, sessions.StageAnalyzing, progressAnalyzed); err != nil {
		return insights.Insight{}, err
	}
	return insight, nil
}

func (o *Orchestrator) generate(ctx context.Context, session sessions.Session, insight insights.Insight) (insights.Insight, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.generating")
	defer span.End()

	if err := o.advance(ctx, session.ID, sessions.StageGenerating, progressGenerating); err != nil {
		return insights.Insight{}, err
	}
	return insights.Finalize(insight), nil
}

// advance records stage and progress while the session is still processing.
func (o *Orchestrator) advance(ctx context.Context, sessionID string, stage sessions.Stage, progress int) error {
	_, err := o.Sessions.Update(ctx, sessionID, sessions.Patch{
		IfStatus: []sessions.Status{sessions.StatusProcessing},
		Stage:    sessions.Ptr(stage),
		Progress: sessions.Ptr(progress),
	})
	if errors.Is(err, sessions.ErrConflict) {
		return errAborted
	}
	if err != nil {
		return failure(sessions.CodeStorageError, "failed to record progress", err)
	}
	telemetry.Info("pipeline.stage", map[string]any{
		"request_id": RequestIDFromContext(ctx),
		"session_id": sessionID,
		"stage":      stage,
		"progress":   progress,
	})
	return nil
}

func (o *Orchestrator) commit(ctx context.Context, sessionID string, startedAt time.Time, result insights.Insight) error {
	completedAt := o.now()
	_, err := o.Sessions.Update(ctx, sessionID, sessions.Patch{
		IfStatus:    []sessions.Status{sessions.StatusProcessing},
		Status:      sessions.Ptr(sessions.StatusCompleted),
		Stage:       sessions.Ptr(sessions.StageNone),
		Progress:    sessions.Ptr(progressDone),
		Result:      &result,
		Error:       sessions.Ptr(""),
		ErrorCode:   sessions.Ptr(""),
		CompletedAt: &completedAt,
	})
	if errors.Is(err, sessions.ErrConflict) {
		telemetry.Warn("pipeline.aborted", map[string]any{
			"request_id": RequestIDFromContext(ctx),
			"session_id": sessionID,
		})
		return nil
	}
	if err != nil {
		return o.fail(ctx, sessionID, startedAt, failure(sessions.CodeStorageError, "failed to save analysis result", err))
	}

	metrics.IncSessionCompleted()
	metrics.ObserveSessionDurationMs(durationMs(startedAt, completedAt))
	telemetry.Info("session.status", map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"session_id":        sessionID,
		"status":            sessions.StatusCompleted,
		"status_transition": "processing->completed",
		"duration_ms":       durationMs(startedAt, completedAt),
	})
	return nil
}

// fail writes the failed terminal state. A session that already left
// processing is left untouched.
func (o *Orchestrator) fail(ctx context.Context, sessionID string, startedAt time.Time, cause error) error {
	code, msg := classifyFailure(cause)
	completedAt := o.now()
	_, err := o.Sessions.Update(ctx, sessionID, sessions.Patch{
		IfStatus:    []sessions.Status{sessions.StatusProcessing},
		Status:      sessions.Ptr(sessions.StatusFailed),
		Stage:       sessions.Ptr(sessions.StageNone),
		ClearResult: true,
		Error:       sessions.Ptr(msg),
		ErrorCode:   sessions.Ptr(code),
		CompletedAt: &completedAt,
	})
	fields := map[string]any{
		"request_id":        RequestIDFromContext(ctx),
		"session_id":        sessionID,
		"status":            sessions.StatusFailed,
		"status_transition": "processing->failed",
		"error_code":        code,
		"error":             sanitizeError(cause),
		"duration_ms":       durationMs(startedAt, completedAt),
	}
	if errors.Is(err, sessions.ErrConflict) {
		telemetry.Warn("pipeline.aborted", fields)
		return nil
	}
	if err != nil {
		fields["update_error"] = err.Error()
		telemetry.Error("session.fail_update", fields)
		return fmt.Errorf("record failure for session %s: %w", sessionID, err)
	}
	metrics.IncSessionFailed(code)
	metrics.ObserveSessionDurationMs(durationMs(startedAt, completedAt))
	telemetry.Info("session.status", fields)
	return nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) maxDocumentBytes() int64 {
	if o.MaxDocumentBytes > 0 {
		return o.MaxDocumentBytes
	}
	return DefaultMaxDocumentBytes
}

func durationMs(startedAt, completedAt time.Time) float64 {
	if startedAt.IsZero() || completedAt.IsZero() {
		return 0
	}
	return float64(completedAt.Sub(startedAt).Microseconds()) / 1000.0
}
