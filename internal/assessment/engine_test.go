package assessment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

/* ---------------- In-memory fake that satisfies assessment.Provider ---------------- */

type fakeProvider struct {
	details map[string]promis.FormDetail
	forms   []promis.Form

	nextFn  func(formOID string, responses []promis.Response) (promis.NextResponse, error)
	scoreFn func(formOID string, responses []promis.Response) (map[string]any, error)

	detailCalls int
	nextCalls   int
	scoreCalls  int
}

func (f *fakeProvider) FormDetails(_ context.Context, oid string) (promis.FormDetail, error) {
	f.detailCalls++
	d, ok := f.details[oid]
	if !ok {
		return promis.FormDetail{}, promis.ErrNotFound
	}
	return d, nil
}

func (f *fakeProvider) StatelessNext(_ context.Context, oid string, responses []promis.Response) (promis.NextResponse, error) {
	f.nextCalls++
	return f.nextFn(oid, responses)
}

func (f *fakeProvider) ScoreResponses(_ context.Context, oid string, responses []promis.Response) (map[string]any, error) {
	f.scoreCalls++
	if len(responses) == 0 {
		return nil, &promis.InvalidArgumentError{Msg: "responses must not be empty"}
	}
	return f.scoreFn(oid, responses)
}

func (f *fakeProvider) ListForms(_ context.Context) ([]promis.Form, error) {
	return f.forms, nil
}

type fakeSink struct {
	results []Result
	err     error
}

func (f *fakeSink) RecordResult(_ context.Context, r Result) error {
	f.results = append(f.results, r)
	return f.err
}

/* ---------------- Fixtures ---------------- */

func rawItem(id, text string, optionValues ...string) promis.Item {
	el := promis.Element{Description: text}
	for _, v := range optionValues {
		el.Map = append(el.Map, promis.OptionMap{
			Value:           promis.Flex(v),
			Description:     "label-" + v,
			ItemResponseOID: "key-" + v,
		})
	}
	return promis.Item{ID: id, Elements: []promis.Element{el}}
}

func nextWith(item promis.Item) promis.NextResponse {
	return promis.NextResponse{
		Items: []promis.Item{item},
		Raw:   map[string]any{"Items": []any{map[string]any{"ID": item.ID}}},
	}
}

func terminal(fields map[string]any) promis.NextResponse {
	raw := map[string]any{"Items": []any{}}
	for k, v := range fields {
		raw[k] = v
	}
	return promis.NextResponse{Raw: raw}
}

const adaptiveOID = "D2FA612D-C290-4B88-957D-1C27F48EE58C"
const fixedOID = "154D0273-C3F6-4BCE-8885-3194D4CC4596"

func adaptiveEngine(t *testing.T, sink ResultSink) (*Engine, *fakeProvider) {
	t.Helper()
	p := &fakeProvider{
		details: map[string]promis.FormDetail{
			adaptiveOID: {OID: adaptiveOID, Name: "Adult Physical Function"},
		},
	}
	return NewEngine(p, sink, nil), p
}

func fixedEngine(t *testing.T, sink ResultSink, items ...promis.Item) (*Engine, *fakeProvider) {
	t.Helper()
	p := &fakeProvider{
		details: map[string]promis.FormDetail{
			fixedOID: {
				OID:   fixedOID,
				Name:  "Pediatric Pain Interference Short Form 8a",
				Items: items,
			},
		},
	}
	return NewEngine(p, sink, nil), p
}

/* ---------------- Adaptive mode ---------------- */

func TestAdaptive_EndToEnd(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	e, p := adaptiveEngine(t, sink)

	script := []promis.NextResponse{
		nextWith(rawItem("A", "Question A", "1", "2")),
		nextWith(rawItem("B", "Question B", "1", "2")),
		terminal(map[string]any{"Theta": 0.2, "StdError": 0.3}),
	}
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		return script[len(responses)], nil
	}

	view, err := e.StartAssessment(ctx, adaptiveOID, "guest-1")
	require.NoError(t, err)
	qv, ok := view.(*QuestionView)
	require.True(t, ok)
	assert.Equal(t, "A", qv.Question.ID)
	assert.Equal(t, ModeAdaptive, qv.Mode)
	assert.True(t, qv.AllowSkip)

	view, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)
	qv, ok = view.(*QuestionView)
	require.True(t, ok)
	assert.Equal(t, "B", qv.Question.ID)
	assert.Equal(t, 1, qv.Answered)

	view, err = e.SubmitAnswer(ctx, adaptiveOID, "key-2")
	require.NoError(t, err)
	rv, ok := view.(*ResultsView)
	require.True(t, ok)
	assert.Equal(t, "52.0", rv.ScoreDisplay)
	require.NotNil(t, rv.TScore)
	assert.Equal(t, 52.0, *rv.TScore)
	require.NotNil(t, rv.StdError)
	assert.Equal(t, 0.3, *rv.StdError)
	require.Len(t, rv.History, 2)
	assert.Equal(t, "Question A", rv.History[0].Question)
	assert.Equal(t, "label-1", rv.History[0].Answer)

	// Session is gone; the retained result is still viewable.
	_, ok = e.store.Get(adaptiveOID)
	assert.False(t, ok)
	got, ok := e.CurrentView(adaptiveOID)
	require.True(t, ok)
	assert.Same(t, rv, got)

	// Terminal score landed in the sink.
	require.Len(t, sink.results, 1)
	assert.Equal(t, adaptiveOID, sink.results[0].FormOID)
	assert.Equal(t, "guest-1", sink.results[0].Subject)
	assert.Equal(t, 2, sink.results[0].ResponseCount)
}

func TestAdaptive_ResponseOrdering(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)

	var seen [][]promis.Response
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		seen = append(seen, append([]promis.Response(nil), responses...))
		if len(responses) >= 3 {
			return terminal(map[string]any{"Theta": 0.0}), nil
		}
		return nextWith(rawItem("Q", "Question", "1")), nil
	}

	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)
	_, err = e.SkipItem(ctx, adaptiveOID)
	require.NoError(t, err)
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)

	final := seen[len(seen)-1]
	require.Len(t, final, 3)
	for i, r := range final {
		assert.Equal(t, i+1, r.Order)
	}
	// The skip carried the all-zero GUID sentinel.
	assert.Equal(t, SkipResponseKey, final[1].ItemResponseOID)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", final[1].ItemResponseOID)
}

func TestAdaptive_RollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)

	fail := false
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		if fail {
			return promis.NextResponse{}, &promis.UpstreamError{Status: 503, Detail: "overloaded"}
		}
		return nextWith(rawItem("Q", "Question", "1")), nil
	}

	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)

	s, ok := e.store.Get(adaptiveOID)
	require.True(t, ok)
	require.Len(t, s.responses, 2)
	require.Len(t, s.history, 2)

	fail = true
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	var upstream *promis.UpstreamError
	require.ErrorAs(t, err, &upstream)

	// The failed attempt left no trace; the question is unchanged and the
	// subject can retry.
	require.Len(t, s.responses, 2)
	require.Len(t, s.history, 2)
	view, ok := e.CurrentView(adaptiveOID)
	require.True(t, ok)
	assert.Equal(t, "Q", view.(*QuestionView).Question.ID)

	// Retry lands the same sequence number as the failed attempt would have.
	fail = false
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)
	require.Len(t, s.responses, 3)
	assert.Equal(t, 3, s.responses[2].Order)
}

func TestAdaptive_SkipRollbackOnFailure(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)

	calls := 0
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		calls++
		if calls > 1 {
			return promis.NextResponse{}, &promis.UpstreamError{Status: 500}
		}
		return nextWith(rawItem("Q", "Question", "1")), nil
	}

	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	_, err = e.SkipItem(ctx, adaptiveOID)
	require.Error(t, err)

	s, ok := e.store.Get(adaptiveOID)
	require.True(t, ok)
	assert.Empty(t, s.responses)
	assert.Empty(t, s.history)
}

func TestAdaptive_StartFailureLeavesNoSession(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		return promis.NextResponse{}, &promis.UpstreamError{Status: 500}
	}

	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.Error(t, err)
	_, ok := e.store.Get(adaptiveOID)
	assert.False(t, ok)
	_, ok = e.CurrentView(adaptiveOID)
	assert.False(t, ok)
}

func TestAdaptive_StaleResultNoOpsAfterRestart(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)

	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		return nextWith(rawItem("Q", "Question", "1")), nil
	}
	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	first, ok := e.store.Get(adaptiveOID)
	require.True(t, ok)

	// While the submit's network call is in flight, the subject restarts the
	// assessment and the session is replaced. The completed call must not
	// resurrect the old session.
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		if len(responses) > 0 {
			e.store.Create(&Session{formOID: adaptiveOID, state: adaptiveState{current: Item{ID: "R"}}})
		}
		return nextWith(rawItem("Q2", "Question 2", "1")), nil
	}
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.ErrorIs(t, err, ErrNoSession)

	replacement, ok := e.store.Get(adaptiveOID)
	require.True(t, ok)
	assert.NotSame(t, first, replacement)
	assert.Empty(t, replacement.responses)
}

func TestSubmitWithoutSession(t *testing.T) {
	e, _ := adaptiveEngine(t, nil)
	_, err := e.SubmitAnswer(context.Background(), adaptiveOID, "key-1")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = e.SkipItem(context.Background(), adaptiveOID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSubmit_UnknownOption(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		return nextWith(rawItem("Q", "Question", "1")), nil
	}
	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)

	_, err = e.SubmitAnswer(ctx, adaptiveOID, "no-such-key")
	var invalid *promis.InvalidArgumentError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, p.nextCalls) // only the opening fetch; nothing submitted

	s, _ := e.store.Get(adaptiveOID)
	assert.Empty(t, s.responses)
}

/* ---------------- Fixed short-form mode ---------------- */

func TestFixed_EndToEnd(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{}
	e, p := fixedEngine(t, sink,
		rawItem("F2", "Second question", "1", "2"),
		rawItem("F1", "First question", "1", "2"),
	)
	p.scoreFn = func(oid string, responses []promis.Response) (map[string]any, error) {
		return map[string]any{"Theta": "1.5", "StdError": 0.4}, nil
	}

	view, err := e.StartAssessment(ctx, fixedOID, "guest-2")
	require.NoError(t, err)
	qv := view.(*QuestionView)
	assert.Equal(t, ModeFixed, qv.Mode)
	assert.Equal(t, "F1", qv.Question.ID) // normalized order, F1 < F2
	assert.Equal(t, 2, qv.Total)
	assert.False(t, qv.AllowSkip)

	view, err = e.SubmitAnswer(ctx, fixedOID, "key-1")
	require.NoError(t, err)
	qv = view.(*QuestionView)
	assert.Equal(t, "F2", qv.Question.ID)
	assert.Equal(t, 1, qv.Answered)
	assert.Equal(t, 0, p.nextCalls) // no network traffic mid-form

	view, err = e.SubmitAnswer(ctx, fixedOID, "key-2")
	require.NoError(t, err)
	rv := view.(*ResultsView)
	assert.Equal(t, "65.0", rv.ScoreDisplay)
	assert.Equal(t, 1, p.scoreCalls)
	require.Len(t, rv.History, 2)

	_, ok := e.store.Get(fixedOID)
	assert.False(t, ok)
	require.Len(t, sink.results, 1)
	assert.Equal(t, ModeFixed, sink.results[0].Mode)
}

func TestFixed_ScoringFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	e, p := fixedEngine(t, nil, rawItem("F1", "Only question", "1"))

	fail := true
	p.scoreFn = func(oid string, responses []promis.Response) (map[string]any, error) {
		if fail {
			return nil, &promis.UpstreamError{Status: 502, Detail: "scoring down"}
		}
		return map[string]any{"Theta": 0.2}, nil
	}

	_, err := e.StartAssessment(ctx, fixedOID, "")
	require.NoError(t, err)
	_, err = e.SubmitAnswer(ctx, fixedOID, "key-1")
	require.Error(t, err)

	// Session stays open at end-of-list; the response was not rolled back
	// because no network call accompanied the append.
	s, ok := e.store.Get(fixedOID)
	require.True(t, ok)
	require.Len(t, s.responses, 1)
	view, ok := e.CurrentView(fixedOID)
	require.True(t, ok)
	assert.True(t, view.(*QuestionView).ScoringPending)

	// A second submit retries scoring without appending anything.
	fail = false
	view, err = e.SubmitAnswer(ctx, fixedOID, "")
	require.NoError(t, err)
	rv := view.(*ResultsView)
	assert.Equal(t, "52.0", rv.ScoreDisplay)
	require.Len(t, rv.History, 1)
	assert.Equal(t, 2, p.scoreCalls)
}

func TestFixed_SkipNotAllowed(t *testing.T) {
	ctx := context.Background()
	e, _ := fixedEngine(t, nil, rawItem("F1", "Question", "1"))
	_, err := e.StartAssessment(ctx, fixedOID, "")
	require.NoError(t, err)

	_, err = e.SkipItem(ctx, fixedOID)
	assert.ErrorIs(t, err, ErrSkipNotAllowed)

	s, _ := e.store.Get(fixedOID)
	assert.Empty(t, s.responses)
}

func TestFixed_EmptyFormRejected(t *testing.T) {
	e, _ := fixedEngine(t, nil)
	_, err := e.StartAssessment(context.Background(), fixedOID, "")
	var invalid *promis.InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
}

func TestFixed_HistoryMatchesResponses(t *testing.T) {
	ctx := context.Background()
	e, p := fixedEngine(t, nil,
		rawItem("F1", "One", "1"),
		rawItem("F2", "Two", "1"),
		rawItem("F3", "Three", "1"),
	)
	p.scoreFn = func(oid string, responses []promis.Response) (map[string]any, error) {
		return map[string]any{}, nil
	}

	_, err := e.StartAssessment(ctx, fixedOID, "")
	require.NoError(t, err)
	s, _ := e.store.Get(fixedOID)

	for i := 0; i < 3; i++ {
		assert.Equal(t, len(s.responses), len(s.history))
		_, err = e.SubmitAnswer(ctx, fixedOID, "key-1")
		require.NoError(t, err)
	}

	// Scoreless terminal payload renders the fallback message.
	view, ok := e.CurrentView(fixedOID)
	require.True(t, ok)
	assert.Equal(t, "Score unavailable", view.(*ResultsView).ScoreDisplay)
}

/* ---------------- Store, cache, listing ---------------- */

func TestStartReplacesOpenSession(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		return nextWith(rawItem("Q", "Question", "1")), nil
	}

	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	first, _ := e.store.Get(adaptiveOID)
	_, err = e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)

	_, err = e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	second, _ := e.store.Get(adaptiveOID)
	assert.NotSame(t, first, second)
	assert.Empty(t, second.responses)
}

func TestFormDetailCache(t *testing.T) {
	ctx := context.Background()
	e, p := adaptiveEngine(t, nil)
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		return nextWith(rawItem("Q", "Question", "1")), nil
	}

	for i := 0; i < 3; i++ {
		_, err := e.StartAssessment(ctx, adaptiveOID, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, p.detailCalls)
}

func TestStartUnknownForm(t *testing.T) {
	e, _ := adaptiveEngine(t, nil)
	_, err := e.StartAssessment(context.Background(), "no-such-oid", "")
	assert.ErrorIs(t, err, promis.ErrNotFound)
}

func TestListFormsFilter(t *testing.T) {
	e, p := adaptiveEngine(t, nil)
	p.forms = []promis.Form{
		{OID: "1", Name: "Pediatric Pain Interference Short Form 8a"},
		{OID: "2", Name: "Adult Physical Function", Keywords: promis.Keywords{"mobility"}},
		{OID: "3", Title: "Anxiety CAT"},
	}

	all, err := e.ListForms(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := e.ListForms(context.Background(), "pediatric")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].OID)

	got, err = e.ListForms(context.Background(), "MOBILITY")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2", got[0].OID)
}

func TestSinkFailureDoesNotFailAssessment(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSink{err: errors.New("db down")}
	e, p := adaptiveEngine(t, sink)
	p.nextFn = func(oid string, responses []promis.Response) (promis.NextResponse, error) {
		if len(responses) > 0 {
			return terminal(map[string]any{"Theta": 0.2}), nil
		}
		return nextWith(rawItem("Q", "Question", "1")), nil
	}

	_, err := e.StartAssessment(ctx, adaptiveOID, "")
	require.NoError(t, err)
	view, err := e.SubmitAnswer(ctx, adaptiveOID, "key-1")
	require.NoError(t, err)
	assert.IsType(t, &ResultsView{}, view)
}
