package assessment

import (
	"context"

	"github.com/google/uuid"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

// SkipResponseKey is the reserved sentinel submitted in place of an answer
// when the subject skips an item: the all-zero GUID.
var SkipResponseKey = uuid.Nil.String()

// Option is one selectable answer, normalized from the provider's option maps.
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	ResponseKey string `json:"response_key"`
}

// Item is one question with its options in presentation order.
type Item struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// HistoryEntry is the human-readable record of one response, kept in lockstep
// with the wire-shape response list (len(responses) == len(history), always).
type HistoryEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Skipped  bool   `json:"skipped"`
}

// Provider is the narrow view of the assessment provider the engine needs.
// Implemented by promis.Client; faked in tests.
type Provider interface {
	FormDetails(ctx context.Context, formOID string) (promis.FormDetail, error)
	StatelessNext(ctx context.Context, formOID string, responses []promis.Response) (promis.NextResponse, error)
	ScoreResponses(ctx context.Context, formOID string, responses []promis.Response) (map[string]any, error)
	ListForms(ctx context.Context) ([]promis.Form, error)
}

// ResultSink receives completed assessments, e.g. for the result log. Failures
// are logged and swallowed; recording a score must never fail the assessment.
type ResultSink interface {
	RecordResult(ctx context.Context, r Result) error
}

// Result is the terminal outcome of one assessment.
type Result struct {
	FormOID       string
	FormName      string
	Subject       string
	Mode          Mode
	TScore        *float64
	Theta         *float64
	StdError      *float64
	ResponseCount int
	RawPayload    map[string]any
}
