package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/carebridge-health/promis-gateway/internal/assessment"
	authmw "github.com/carebridge-health/promis-gateway/internal/auth/middleware"
	"github.com/carebridge-health/promis-gateway/internal/promis"
)

func ListFormsHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := engine.ListForms(r.Context(), r.URL.Query().Get("filter"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, forms)
	}
}

func StartAssessmentHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oid := chi.URLParam(r, "formOID")
		view, err := engine.StartAssessment(r.Context(), oid, authmw.SubjectFrom(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, view)
	}
}

func CurrentViewHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, ok := engine.CurrentView(chi.URLParam(r, "formOID"))
		if !ok {
			http.Error(w, "no assessment for form", http.StatusNotFound)
			return
		}
		writeJSON(w, view)
	}
}

func SubmitAnswerHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			OptionKey string `json:"option_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		view, err := engine.SubmitAnswer(r.Context(), chi.URLParam(r, "formOID"), req.OptionKey)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, view)
	}
}

func SkipItemHandler(engine *assessment.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.SkipItem(r.Context(), chi.URLParam(r, "formOID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, view)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses: caller errors 400,
// unknown form/session 404, fixed-mode skip 409, provider failures 502.
func writeErr(w http.ResponseWriter, err error) {
	var invalid *promis.InvalidArgumentError
	var upstream *promis.UpstreamError
	switch {
	case errors.As(err, &invalid):
		http.Error(w, invalid.Msg, http.StatusBadRequest)
	case errors.Is(err, promis.ErrNotFound), errors.Is(err, assessment.ErrNoSession):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, assessment.ErrSkipNotAllowed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &upstream):
		http.Error(w, upstream.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
