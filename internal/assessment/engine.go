package assessment

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

// ErrNoSession: no open assessment for the form, and no retained result either.
var ErrNoSession = errors.New("no active assessment for form")

// ErrSkipNotAllowed: fixed short forms require an answer to every item.
var ErrSkipNotAllowed = errors.New("skipping is not allowed on fixed short forms")

// Engine drives assessment sessions through their question/answer/score
// transitions. One logical actor per session; the per-session lock only
// hardens against a second tab racing the rollback snapshot.
type Engine struct {
	provider Provider
	store    *Store
	cache    *formCache
	sink     ResultSink
	log      *zap.Logger

	mu sync.Mutex
	// Most recent completed result per form, replaced when a new assessment
	// for the same form starts. Sessions themselves are deleted the moment
	// they are scored.
	results map[string]*ResultsView
}

// NewEngine wires the state machine to its collaborators. sink may be nil.
func NewEngine(provider Provider, sink ResultSink, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		provider: provider,
		store:    NewStore(),
		cache:    newFormCache(provider),
		sink:     sink,
		log:      log,
		results:  make(map[string]*ResultsView),
	}
}

// ListForms returns provider forms, optionally filtered by a case-insensitive
// substring match over name, title and keywords.
func (e *Engine) ListForms(ctx context.Context, filter string) ([]promis.Form, error) {
	forms, err := e.provider.ListForms(ctx)
	if err != nil {
		return nil, err
	}
	if filter = strings.TrimSpace(filter); filter == "" {
		return forms, nil
	}
	needle := strings.ToLower(filter)
	out := make([]promis.Form, 0, len(forms))
	for _, f := range forms {
		hay := strings.ToLower(f.Name + " " + f.Title + " " + strings.Join(f.Keywords, " "))
		if strings.Contains(hay, needle) {
			out = append(out, f)
		}
	}
	return out, nil
}

// StartAssessment opens a session for the form, routing to the fixed
// short-form flow or the adaptive flow, and returns the first view. Any open
// session for the form is replaced.
func (e *Engine) StartAssessment(ctx context.Context, formOID, subject string) (View, error) {
	if formOID == "" {
		return nil, &promis.InvalidArgumentError{Msg: "form OID must be provided"}
	}
	detail, err := e.cache.get(ctx, formOID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	delete(e.results, formOID)
	e.mu.Unlock()

	if IsFixedShortForm(detail.OID, detail.Name, detail.Title) {
		return e.startFixed(detail, subject)
	}
	return e.startAdaptive(ctx, detail, subject)
}

// startFixed seeds the session with the form's full normalized item list and
// a cursor at zero. No network call beyond the (cached) detail fetch.
func (e *Engine) startFixed(detail promis.FormDetail, subject string) (View, error) {
	items := NormalizeItems(detail)
	if len(items) == 0 {
		return nil, &promis.InvalidArgumentError{Msg: "form has no items"}
	}
	s := &Session{
		formOID:  detail.OID,
		formName: detail.DisplayName(),
		subject:  subject,
		state:    fixedState{items: items},
	}
	e.store.Create(s)
	e.log.Info("assessment started",
		zap.String("form", detail.OID), zap.String("mode", string(ModeFixed)),
		zap.Int("items", len(items)))
	return questionView(s), nil
}

// startAdaptive asks the provider for the opening item with an empty response
// list. On failure nothing survives; the caller retries from scratch.
func (e *Engine) startAdaptive(ctx context.Context, detail promis.FormDetail, subject string) (View, error) {
	next, err := e.provider.StatelessNext(ctx, detail.OID, nil)
	if err != nil {
		return nil, err
	}
	s := &Session{
		formOID:     detail.OID,
		formName:    detail.DisplayName(),
		subject:     subject,
		state:       adaptiveState{},
		lastPayload: next.Raw,
	}
	if len(next.Items) == 0 {
		// Provider had nothing to ask; the opening response is already terminal.
		e.store.Create(s)
		return e.finishScored(ctx, s, next.Raw), nil
	}
	s.state = adaptiveState{current: NormalizeItem(next.Items[0])}
	e.store.Create(s)
	e.log.Info("assessment started",
		zap.String("form", detail.OID), zap.String("mode", string(ModeAdaptive)))
	return questionView(s), nil
}

// CurrentView returns the open session's question view, or the retained
// results view for a just-completed assessment, or absent.
func (e *Engine) CurrentView(formOID string) (View, bool) {
	if s, ok := e.store.Get(formOID); ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		return questionView(s), true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if rv, ok := e.results[formOID]; ok {
		return rv, true
	}
	return nil, false
}

// SubmitAnswer records the selected option for the current question and
// advances the session. In adaptive mode a failed provider call rolls the
// response log back so the subject can retry the same question; in fixed mode
// the only network call is the final scoring, which is retryable in place.
func (e *Engine) SubmitAnswer(ctx context.Context, formOID, optionKey string) (View, error) {
	s, ok := e.store.Get(formOID)
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	switch st := s.state.(type) {
	case adaptiveState:
		opt, err := findOption(st.current, optionKey)
		if err != nil {
			return nil, err
		}
		return e.advanceAdaptive(ctx, s, st.current,
			promis.Response{ItemID: st.current.ID, ItemResponseOID: opt.ResponseKey},
			HistoryEntry{Question: st.current.Text, Answer: opt.Label})
	case fixedState:
		return e.advanceFixed(ctx, s, st, optionKey)
	default:
		return nil, ErrNoSession
	}
}

// SkipItem submits the reserved all-zero-GUID sentinel instead of an answer.
// Adaptive mode only.
func (e *Engine) SkipItem(ctx context.Context, formOID string) (View, error) {
	s, ok := e.store.Get(formOID)
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.state.(adaptiveState)
	if !ok {
		return nil, ErrSkipNotAllowed
	}
	return e.advanceAdaptive(ctx, s, st.current,
		promis.Response{ItemID: st.current.ID, ItemResponseOID: SkipResponseKey},
		HistoryEntry{Question: st.current.Text, Answer: "Skipped", Skipped: true})
}

// advanceAdaptive appends the response optimistically, asks the provider for
// the next item, and truncates back to the snapshot on failure. An empty item
// list in the reply is terminal: the reply itself is the score payload.
func (e *Engine) advanceAdaptive(ctx context.Context, s *Session, item Item, resp promis.Response, h HistoryEntry) (View, error) {
	mark := len(s.responses)
	resp.Order = mark + 1
	s.responses = append(s.responses, resp)
	s.history = append(s.history, h)

	next, err := e.provider.StatelessNext(ctx, s.formOID, s.responses)
	if err != nil {
		s.responses = s.responses[:mark]
		s.history = s.history[:mark]
		e.log.Warn("next item fetch failed, response rolled back",
			zap.String("form", s.formOID), zap.String("item", item.ID), zap.Error(err))
		return nil, err
	}
	if !e.store.current(s) {
		// Session was replaced or torn down while the request was in flight.
		return nil, ErrNoSession
	}
	s.lastPayload = next.Raw
	if len(next.Items) == 0 {
		return e.finishScored(ctx, s, next.Raw), nil
	}
	s.state = adaptiveState{current: NormalizeItem(next.Items[0])}
	return questionView(s), nil
}

// advanceFixed records the answer and moves the cursor; when the cursor runs
// off the end it scores the full response set exactly once. A session whose
// scoring failed stays open at end-of-list, and the next submit retries the
// scoring without appending anything.
func (e *Engine) advanceFixed(ctx context.Context, s *Session, st fixedState, optionKey string) (View, error) {
	if st.cursor < len(st.items) {
		item := st.items[st.cursor]
		opt, err := findOption(item, optionKey)
		if err != nil {
			return nil, err
		}
		s.responses = append(s.responses, promis.Response{
			ItemID:          item.ID,
			ItemResponseOID: opt.ResponseKey,
			Order:           len(s.responses) + 1,
		})
		s.history = append(s.history, HistoryEntry{Question: item.Text, Answer: opt.Label})
		st.cursor++
		s.state = st
		if st.cursor < len(st.items) {
			return questionView(s), nil
		}
	}

	payload, err := e.provider.ScoreResponses(ctx, s.formOID, s.responses)
	if err != nil {
		e.log.Warn("fixed-form scoring failed, session kept open",
			zap.String("form", s.formOID), zap.Error(err))
		return nil, err
	}
	if !e.store.current(s) {
		return nil, ErrNoSession
	}
	s.lastPayload = payload
	return e.finishScored(ctx, s, payload), nil
}

// finishScored builds the terminal view, destroys the session and records the
// result. Recording is best-effort only.
func (e *Engine) finishScored(ctx context.Context, s *Session, payload map[string]any) *ResultsView {
	rv := buildResultsView(s, payload)
	e.store.Delete(s.formOID)
	e.mu.Lock()
	e.results[s.formOID] = rv
	e.mu.Unlock()

	e.log.Info("assessment scored",
		zap.String("form", s.formOID),
		zap.Int("responses", len(s.responses)),
		zap.String("score", rv.ScoreDisplay))

	if e.sink != nil {
		res := Result{
			FormOID:       s.formOID,
			FormName:      s.formName,
			Subject:       s.subject,
			Mode:          s.state.mode(),
			TScore:        rv.TScore,
			StdError:      rv.StdError,
			ResponseCount: len(s.responses),
			RawPayload:    payload,
		}
		if theta, ok := Theta(payload); ok {
			res.Theta = &theta
		}
		if err := e.sink.RecordResult(ctx, res); err != nil {
			e.log.Warn("result log append failed", zap.String("form", s.formOID), zap.Error(err))
		}
	}
	return rv
}

// findOption matches the submitted key against the current item's options,
// accepting either the response key or the raw option value.
func findOption(item Item, optionKey string) (Option, error) {
	for _, o := range item.Options {
		if o.ResponseKey == optionKey {
			return o, nil
		}
	}
	for _, o := range item.Options {
		if o.Value != "" && o.Value == optionKey {
			return o, nil
		}
	}
	return Option{}, &promis.InvalidArgumentError{Msg: "unknown option for item " + item.ID}
}
