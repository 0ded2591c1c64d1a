// Package aiassess asks a language model for a subjective pronunciation and
// fluency assessment of a spoken transcript.
//
// The [Client] sends the target text, the recognised transcript, and the
// language to an [llm.Provider] and expects a single JSON object back. Models
// often wrap JSON in prose, so the reply is parsed leniently: markdown
// fences are stripped, and when the text is not pure JSON the first balanced
// JSON object inside it is used. Replies that cannot be parsed, or whose
// overall score is implausibly low, are reported as errors so the caller can
// fall through to the next assessment tier.
package aiassess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MrWong99/fluentia/pkg/provider/llm"
	"github.com/MrWong99/fluentia/pkg/types"
)

const (
	defaultTemperature       = 0.2
	defaultMaxTokens         = 800
	defaultMinPlausibleScore = 10
)

var (
	// ErrNoJSON is returned when the model reply contains no parsable JSON object.
	ErrNoJSON = errors.New("aiassess: no JSON object in model reply")

	// ErrImplausible is returned when the parsed overall score is below the
	// client's plausibility threshold or missing entirely.
	ErrImplausible = errors.New("aiassess: implausible assessment")

	// ErrEmptyResponse is returned when the provider answers without content.
	ErrEmptyResponse = errors.New("aiassess: empty model reply")
)

const systemPrompt = `You are a pronunciation and speaking coach for language learners.

You receive the sentence the learner was asked to read aloud and the transcript a speech recogniser produced from their recording. Judge how well the learner spoke the sentence.

Rules:
- Score every dimension from 0 to 100.
- accuracy: how closely the spoken words match the target words.
- fluency: smoothness and absence of hesitations implied by the transcript.
- completeness: share of the target sentence that was spoken.
- prosody: naturalness of rhythm and phrasing you can infer.
- overall_score: your overall judgement, not necessarily the mean.
- feedback: 1 to 3 short encouraging observations.
- suggestions: 1 to 3 concrete practice tips.
- word_assessments: one entry per target word, in order.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "overall_score": <0-100>,
  "accuracy": <0-100>,
  "fluency": <0-100>,
  "completeness": <0-100>,
  "prosody": <0-100>,
  "feedback": ["..."],
  "suggestions": ["..."],
  "word_assessments": [
    {"word": "<spoken word or ___>", "original_word": "<target word>", "is_correct": <true|false>, "similarity": <0.0-1.0>}
  ]
}`

// Request is one assessment question.
type Request struct {
	OriginalText string
	Transcript   string

	// Language is a BCP 47 tag such as "en-US". Empty means English.
	Language string
}

// aiResponse is the expected JSON structure returned by the model. Scores are
// pointers so a missing overall score can be told apart from a real zero.
type aiResponse struct {
	OverallScore *float64 `json:"overall_score"`
	Accuracy     *float64 `json:"accuracy"`
	Fluency      *float64 `json:"fluency"`
	Completeness *float64 `json:"completeness"`
	Prosody      *float64 `json:"prosody"`

	Feedback    []string `json:"feedback"`
	Suggestions []string `json:"suggestions"`

	WordAssessments []struct {
		Word         string  `json:"word"`
		OriginalWord string  `json:"original_word"`
		IsCorrect    bool    `json:"is_correct"`
		Similarity   float64 `json:"similarity"`
	} `json:"word_assessments"`
}

// Option is a functional option for configuring a [Client].
type Option func(*Client)

// WithTemperature sets the sampling temperature. Default: 0.2.
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.temperature = temp
	}
}

// WithMaxTokens caps the reply length. Default: 800.
func WithMaxTokens(n int) Option {
	return func(c *Client) {
		c.maxTokens = n
	}
}

// WithMinPlausibleScore sets the overall score below which a reply is
// rejected with [ErrImplausible]. Default: 10.
func WithMinPlausibleScore(score float64) Option {
	return func(c *Client) {
		c.minPlausible = score
	}
}

// WithSeed asks the provider for reproducible sampling so that grading the
// same recording twice gives the same scores where the backend supports it.
func WithSeed(seed int64) Option {
	return func(c *Client) {
		c.seed = seed
	}
}

// Client requests assessments from one [llm.Provider]. It is safe for
// concurrent use.
//
// Model selection follows the one-provider-per-model pattern: to use a
// specific model, construct the [llm.Provider] with that model configured.
type Client struct {
	llm          llm.Provider
	name         string
	temperature  float64
	maxTokens    int
	minPlausible float64
	seed         int64
}

// New returns a [Client] named name backed by provider. The name ends up in
// [types.AssessmentResult.Source] as "ai:<name>".
func New(name string, provider llm.Provider, opts ...Option) *Client {
	c := &Client{
		llm:          provider,
		name:         name,
		temperature:  defaultTemperature,
		maxTokens:    defaultMaxTokens,
		minPlausible: defaultMinPlausibleScore,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Name returns the client's name.
func (c *Client) Name() string { return c.name }

// Assess asks the model to grade req. The returned result carries the model's
// scores clamped to [0,100]; Transcription, OriginalText, Language and Source
// are filled in. ID and CreatedAt are left for the caller.
func (c *Client) Assess(ctx context.Context, req Request) (*types.AssessmentResult, error) {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	userMsg := fmt.Sprintf("Language: %s\nTarget sentence: %s\nRecognised transcript: %s",
		lang, req.OriginalText, req.Transcript)

	resp, err := c.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
		JSON:         true,
		Seed:         c.seed,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMsg},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("aiassess: %s: complete: %w", c.name, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w from %s", ErrEmptyResponse, c.name)
	}

	r, err := parseResponse(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("aiassess: %s: %w", c.name, err)
	}
	if r.OverallScore == nil {
		return nil, fmt.Errorf("%w: %s omitted overall_score", ErrImplausible, c.name)
	}
	overall := clampScore(*r.OverallScore)
	if overall < c.minPlausible {
		return nil, fmt.Errorf("%w: %s scored %.1f (minimum %.1f)", ErrImplausible, c.name, overall, c.minPlausible)
	}

	result := &types.AssessmentResult{
		Transcription: req.Transcript,
		OriginalText:  req.OriginalText,
		Language:      req.Language,
		OverallScore:  overall,
		Accuracy:      scoreOr(r.Accuracy, overall),
		Fluency:       scoreOr(r.Fluency, overall),
		Completeness:  scoreOr(r.Completeness, overall),
		Prosody:       scoreOr(r.Prosody, overall),
		Feedback:      nonBlank(r.Feedback),
		Suggestions:   nonBlank(r.Suggestions),
		Source:        "ai:" + c.name,
	}
	for i, w := range r.WordAssessments {
		result.WordAssessments = append(result.WordAssessments, types.WordComparisonResult{
			Word:         w.Word,
			OriginalWord: w.OriginalWord,
			IsCorrect:    w.IsCorrect,
			Similarity:   min(max(w.Similarity, 0), 1),
			Op:           types.OpSubstitute,
			TargetIndex:  i,
			SpokenIndex:  -1,
		})
	}
	return result, nil
}

// parseResponse unmarshals the model output, falling back to the first
// balanced JSON object embedded in it.
func parseResponse(content string) (*aiResponse, error) {
	cleaned := stripMarkdown(content)

	var r aiResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err == nil {
		return &r, nil
	}

	for rest := cleaned; ; {
		obj, tail, ok := extractObject(rest)
		if !ok {
			return nil, ErrNoJSON
		}
		r = aiResponse{}
		if err := json.Unmarshal([]byte(obj), &r); err == nil {
			return &r, nil
		}
		rest = tail
	}
}

// extractObject returns the first balanced {...} substring of s, skipping
// braces inside JSON strings, and the text following its opening brace so
// the caller can keep searching.
func extractObject(s string) (obj, rest string, ok bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], s[start+1:], true
			}
		}
	}
	// Unbalanced from this brace; a later one may still close.
	return extractObject(s[start+1:])
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models wrap around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

func clampScore(v float64) float64 { return min(max(v, 0), 100) }

func scoreOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return clampScore(*v)
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
