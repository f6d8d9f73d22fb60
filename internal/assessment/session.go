package assessment

import (
	"sync"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

type Mode string

const (
	ModeAdaptive Mode = "adaptive"
	ModeFixed    Mode = "fixed"
)

// modeState is the tagged variant for the two assessment flows; the engine
// dispatches on the concrete type so each mode's transition rules live in one
// place.
type modeState interface {
	mode() Mode
}

// adaptiveState: the provider decides the next item per request.
type adaptiveState struct {
	current Item
}

func (adaptiveState) mode() Mode { return ModeAdaptive }

// fixedState: a predetermined item sequence walked by a cursor. Invariant
// while awaiting an answer: cursor == len(session.responses).
type fixedState struct {
	items  []Item
	cursor int
}

func (fixedState) mode() Mode { return ModeFixed }

// Session is the in-flight assessment for one form. Responses and history are
// append-only in lockstep; rollback truncates both back to a snapshot length.
type Session struct {
	mu sync.Mutex

	formOID   string
	formName  string
	subject   string
	state     modeState
	responses []promis.Response
	history   []HistoryEntry

	// Last raw payload from the provider, retained for diagnostics.
	lastPayload map[string]any
}

func (s *Session) Mode() Mode { return s.state.mode() }

// Store maps form OID to open session. One open session per form; starting a
// new assessment for the same form replaces the old one. A single logical
// actor mutates any given session, so the store only guards its own map.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers the session, silently replacing any open one for the form.
func (st *Store) Create(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.formOID] = s
}

func (st *Store) Get(formOID string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[formOID]
	return s, ok
}

func (st *Store) Delete(formOID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, formOID)
}

// current reports whether s is still the live session for its form. In-flight
// network results must no-op when the subject navigated away and the session
// was deleted or replaced meanwhile.
func (st *Store) current(s *Session) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[s.formOID] == s
}
