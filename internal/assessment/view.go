package assessment

import "fmt"

// View is what the UI layer renders: either an answerable question or a
// terminal results page.
type View interface {
	isView()
}

type QuestionView struct {
	FormOID  string `json:"form_oid"`
	FormName string `json:"form_name,omitempty"`
	Mode     Mode   `json:"mode"`
	Question Item   `json:"question"`
	Answered int    `json:"answered"`
	// Total is only known in fixed mode; 0 means open-ended (adaptive).
	Total     int  `json:"total,omitempty"`
	AllowSkip bool `json:"allow_skip"`
	// ScoringPending marks a fixed-mode session whose every item is answered
	// but whose scoring call failed; re-submitting retries the scoring.
	ScoringPending bool `json:"scoring_pending,omitempty"`
}

func (*QuestionView) isView() {}

type ResultsView struct {
	FormOID  string   `json:"form_oid"`
	FormName string   `json:"form_name,omitempty"`
	TScore   *float64 `json:"t_score,omitempty"`
	// ScoreDisplay is the T-score formatted to one decimal, or a fallback
	// message when the payload carried no score.
	ScoreDisplay string         `json:"score_display"`
	StdError     *float64       `json:"std_error,omitempty"`
	History      []HistoryEntry `json:"history"`
	// Raw is the terminal provider payload, kept for diagnostics. When the
	// T-score was derived rather than supplied, a computed tScore field is
	// attached to this copy for downstream display.
	Raw map[string]any `json:"raw,omitempty"`
}

func (*ResultsView) isView() {}

const scoreUnavailable = "Score unavailable"

// buildResultsView renders the terminal state of a session from the score
// payload and the accumulated history.
func buildResultsView(s *Session, payload map[string]any) *ResultsView {
	rv := &ResultsView{
		FormOID:      s.formOID,
		FormName:     s.formName,
		ScoreDisplay: scoreUnavailable,
		History:      append([]HistoryEntry(nil), s.history...),
	}
	raw := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		raw[k] = v
	}
	if t, ok := DeriveTScore(payload); ok {
		rv.TScore = &t
		rv.ScoreDisplay = fmt.Sprintf("%.1f", t)
		if _, supplied := raw["tScore"]; !supplied {
			raw["tScore"] = t
		}
	}
	if se, ok := StdError(payload); ok {
		rv.StdError = &se
	}
	rv.Raw = raw
	return rv
}

// questionView renders the awaiting-answer state of a session.
func questionView(s *Session) *QuestionView {
	qv := &QuestionView{
		FormOID:  s.formOID,
		FormName: s.formName,
		Mode:     s.state.mode(),
		Answered: len(s.responses),
	}
	switch st := s.state.(type) {
	case adaptiveState:
		qv.Question = st.current
		qv.AllowSkip = true
	case fixedState:
		qv.Total = len(st.items)
		if st.cursor < len(st.items) {
			qv.Question = st.items[st.cursor]
		} else {
			// All items answered, scoring still owed.
			qv.Question = st.items[len(st.items)-1]
			qv.ScoringPending = true
		}
	}
	return qv
}
