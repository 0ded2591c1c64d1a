package assessment

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/fluentia/internal/assessment/aiassess"
	"github.com/MrWong99/fluentia/internal/observe"
	"github.com/MrWong99/fluentia/internal/resilience"
	"github.com/MrWong99/fluentia/internal/transcript/normalize"
	"github.com/MrWong99/fluentia/pkg/provider/llm"
	"github.com/MrWong99/fluentia/pkg/types"
)

const (
	defaultAITimeout      = 20 * time.Second
	defaultLanguage       = "en-US"
	defaultPlaceholderMin = 60
	defaultPlaceholderMax = 85
)

var (
	placeholderFeedback    = []string{"Your recording was received, but a detailed assessment is not available right now."}
	placeholderSuggestions = []string{"Try again later for word-by-word feedback."}

	aiDefaultFeedback    = []string{"Your recording was assessed."}
	aiDefaultSuggestions = []string{"Read the sentence again and compare the word-by-word results."}

	unavailableFeedback    = []string{"We could not assess your recording right now."}
	unavailableSuggestions = []string{"Please try again in a few moments."}
)

// Submission is one final assessment request.
type Submission struct {
	OriginalText string
	Transcript   string

	// Language is a BCP 47 tag. Empty selects the assessor default.
	Language string

	// Timing is nil when no word timing was captured.
	Timing *types.TimingStats
}

// AssessorConfig tunes the fallback chain. The zero value is usable.
type AssessorConfig struct {
	// AITimeout bounds each AI provider call. Default: 20s.
	AITimeout time.Duration

	// Language is used when a submission carries none. Default: "en-US".
	Language string

	// DisableLocal skips deterministic local scoring so that AI failures fall
	// straight through to the placeholder tier.
	DisableLocal bool

	// PlaceholderMin and PlaceholderMax bound the placeholder scores.
	// Defaults: 60 and 85.
	PlaceholderMin float64
	PlaceholderMax float64

	// DisablePlaceholder makes the chain end with a zero-score result
	// instead of placeholder scores.
	DisablePlaceholder bool
}

// AssessorOption configures an [Assessor].
type AssessorOption func(*Assessor)

// WithAI installs the AI tiers. Entries of the group are tried in order.
func WithAI(group *resilience.FallbackGroup[*aiassess.Client]) AssessorOption {
	return func(a *Assessor) { a.ai = group }
}

// WithMetrics overrides the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) AssessorOption {
	return func(a *Assessor) { a.metrics = m }
}

// WithRand overrides the random source used for placeholder scores. fn must
// return values in [0,1).
func WithRand(fn func() float64) AssessorOption {
	return func(a *Assessor) { a.rand = fn }
}

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) AssessorOption {
	return func(a *Assessor) { a.now = now }
}

// Assessor produces final assessments through a chain of tiers: AI providers
// (primary, then secondaries, each behind a circuit breaker), the local
// [Composer], bounded placeholder scores, and finally a zero-score result.
// Failures in any tier are logged and never returned to the caller.
//
// An Assessor is safe for concurrent use.
type Assessor struct {
	cfg      AssessorConfig
	composer *Composer
	ai       *resilience.FallbackGroup[*aiassess.Client]
	metrics  *observe.Metrics
	rand     func() float64
	now      func() time.Time
}

// NewAssessor creates an Assessor scoring locally with composer.
func NewAssessor(composer *Composer, cfg AssessorConfig, opts ...AssessorOption) *Assessor {
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = defaultAITimeout
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}
	if cfg.PlaceholderMin == 0 && cfg.PlaceholderMax == 0 {
		cfg.PlaceholderMin, cfg.PlaceholderMax = defaultPlaceholderMin, defaultPlaceholderMax
	}
	a := &Assessor{
		cfg:      cfg,
		composer: composer,
		metrics:  observe.DefaultMetrics(),
		rand:     rand.Float64,
		now:      time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NewAIGroup builds the fallback group for AI clients in priority order.
// Circuit transitions are logged and counted on m. It returns nil when
// clients is empty.
func NewAIGroup(clients []*aiassess.Client, cfg resilience.CircuitBreakerConfig, m *observe.Metrics) *resilience.FallbackGroup[*aiassess.Client] {
	if len(clients) == 0 {
		return nil
	}
	cfg.OnStateChange = func(name string, from, to resilience.State) {
		slog.Warn("assessment provider circuit changed",
			"provider", name, "from", from.String(), "to", to.String())
		m.RecordCircuitTransition(context.Background(), name, to.String())
	}
	fg := resilience.NewFallbackGroup(clients[0], clients[0].Name(), resilience.FallbackConfig{CircuitBreaker: cfg})
	for _, c := range clients[1:] {
		fg.AddFallback(c.Name(), c)
	}
	return fg
}

// Status reports the circuit state of every AI tier. It returns nil when no
// AI tier is configured.
func (a *Assessor) Status() []resilience.EntryStatus {
	if a.ai == nil {
		return nil
	}
	return a.ai.Status()
}

// Composer returns the local composer.
func (a *Assessor) Composer() *Composer { return a.composer }

// Assess runs the fallback chain and always returns a result.
func (a *Assessor) Assess(ctx context.Context, sub Submission) *types.AssessmentResult {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "assessment.assess")
	defer span.End()

	lang := sub.Language
	if lang == "" {
		lang = a.cfg.Language
	}

	if len(normalize.Tokens(sub.Transcript)) == 0 {
		return a.finish(ctx, span, EmptyResult(sub.Transcript, sub.OriginalText), lang, start)
	}

	var (
		local *types.AssessmentResult
		g     errgroup.Group
	)
	if !a.cfg.DisableLocal {
		g.Go(func() error {
			local = a.composer.Assess(sub.Transcript, sub.OriginalText, sub.Timing)
			return nil
		})
	}

	aiRes := a.assessAI(ctx, sub, lang)
	_ = g.Wait()

	switch {
	case aiRes != nil:
		fillFromLocal(aiRes, local)
		return a.finish(ctx, span, aiRes, lang, start)
	case local != nil:
		return a.finish(ctx, span, local, lang, start)
	case !a.cfg.DisablePlaceholder:
		return a.finish(ctx, span, a.placeholder(sub), lang, start)
	default:
		return a.finish(ctx, span, &types.AssessmentResult{
			Transcription: sub.Transcript,
			OriginalText:  sub.OriginalText,
			Feedback:      append([]string(nil), unavailableFeedback...),
			Suggestions:   append([]string(nil), unavailableSuggestions...),
			Source:        SourceNone,
		}, lang, start)
	}
}

// fillFromLocal completes an AI result with the local word assessments and
// with local guidance where the model returned none.
func fillFromLocal(ai, local *types.AssessmentResult) {
	defFeedback, defSuggestions := aiDefaultFeedback, aiDefaultSuggestions
	if local != nil {
		ai.WordAssessments = local.WordAssessments
		if len(local.Feedback) > 0 {
			defFeedback = local.Feedback
		}
		if len(local.Suggestions) > 0 {
			defSuggestions = local.Suggestions
		}
	}
	if len(ai.Feedback) == 0 {
		ai.Feedback = append([]string(nil), defFeedback...)
	}
	if len(ai.Suggestions) == 0 {
		ai.Suggestions = append([]string(nil), defSuggestions...)
	}
}

// assessAI walks the AI tiers. It returns nil when none is configured or all
// of them failed.
func (a *Assessor) assessAI(ctx context.Context, sub Submission, lang string) *types.AssessmentResult {
	if a.ai == nil {
		return nil
	}
	req := aiassess.Request{
		OriginalText: sub.OriginalText,
		Transcript:   sub.Transcript,
		Language:     lang,
	}
	res, name, err := resilience.ExecuteWithResult(ctx, a.ai,
		func(ctx context.Context, c *aiassess.Client) (*types.AssessmentResult, error) {
			callCtx, cancel := context.WithTimeout(ctx, a.cfg.AITimeout)
			defer cancel()

			t0 := time.Now()
			r, err := c.Assess(callCtx, req)
			status := "ok"
			if err != nil {
				status = "error"
				a.metrics.RecordProviderError(ctx, c.Name(), errorKind(err))
			}
			a.metrics.RecordProviderRequest(ctx, c.Name(), status, time.Since(t0))
			return r, err
		})
	if err != nil {
		observe.Logger(ctx).Warn("AI assessment unavailable, using fallback", "error", err)
		return nil
	}
	observe.Logger(ctx).Debug("AI assessment succeeded", "provider", name)
	return res
}

// placeholder draws bounded scores so the learner still gets a plausible
// result while every scoring tier is down.
func (a *Assessor) placeholder(sub Submission) *types.AssessmentResult {
	lo, hi := a.cfg.PlaceholderMin, a.cfg.PlaceholderMax
	draw := func() float64 {
		return clamp(math.Round(lo + a.rand()*(hi-lo)))
	}
	r := &types.AssessmentResult{
		Transcription: sub.Transcript,
		OriginalText:  sub.OriginalText,
		Accuracy:      draw(),
		Fluency:       draw(),
		Completeness:  draw(),
		Prosody:       draw(),
		Feedback:      append([]string(nil), placeholderFeedback...),
		Suggestions:   append([]string(nil), placeholderSuggestions...),
		Source:        SourcePlaceholder,
	}
	r.OverallScore = clamp(math.Round((r.Accuracy + r.Fluency + r.Completeness + r.Prosody) / 4))
	return r
}

func (a *Assessor) finish(ctx context.Context, span trace.Span, r *types.AssessmentResult, lang string, start time.Time) *types.AssessmentResult {
	r.ID = uuid.NewString()
	r.CreatedAt = a.now().UTC()
	r.Language = lang

	tier := r.Source
	if strings.HasPrefix(tier, "ai:") {
		tier = "ai"
	}
	elapsed := time.Since(start)
	a.metrics.RecordAssessment(ctx, tier, elapsed)
	if tier != SourceNone {
		a.metrics.RecordScore(ctx, tier, r.OverallScore)
	}
	span.SetAttributes(
		attribute.String("assessment.source", r.Source),
		attribute.Float64("assessment.overall", r.OverallScore),
	)
	observe.Logger(ctx).Info("assessment finished",
		"id", r.ID, "source", r.Source, "overall", r.OverallScore, "duration", elapsed)
	return r
}

// errorKind maps a provider error to a low-cardinality metric label.
func errorKind(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, aiassess.ErrNoJSON):
		return "malformed"
	case errors.Is(err, aiassess.ErrImplausible):
		return "implausible"
	case errors.Is(err, aiassess.ErrEmptyResponse):
		return "empty"
	case errors.Is(err, llm.ErrTruncated):
		return "truncated"
	default:
		return "provider"
	}
}
