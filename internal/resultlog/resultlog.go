// Package resultlog keeps an append-only record of completed assessments.
// Sessions themselves are never persisted; only terminal scores land here.
package resultlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/carebridge-health/promis-gateway/internal/assessment"
)

type Record struct {
	ID            int64    `json:"id"`
	FormOID       string   `json:"form_oid"`
	FormName      string   `json:"form_name"`
	Subject       string   `json:"subject"`
	Mode          string   `json:"mode"`
	TScore        *float64 `json:"t_score,omitempty"`
	Theta         *float64 `json:"theta,omitempty"`
	StdError      *float64 `json:"std_error,omitempty"`
	ResponseCount int      `json:"response_count"`
	PayloadJSON   string   `json:"payload_json,omitempty"`
	CreatedAt     int64    `json:"created_at"`
}

type Repo struct{ db *sql.DB }

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// RecordResult implements assessment.ResultSink.
func (r *Repo) RecordResult(ctx context.Context, res assessment.Result) error {
	payload, err := json.Marshal(res.RawPayload)
	if err != nil {
		payload = []byte("{}")
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO assessment_results
		 (form_oid, form_name, subject, mode, t_score, theta, std_error, response_count, payload_json, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		res.FormOID, res.FormName, res.Subject, string(res.Mode),
		res.TScore, res.Theta, res.StdError, res.ResponseCount,
		string(payload), time.Now().Unix())
	return err
}

// List returns the most recent results, newest first.
func (r *Repo) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, form_oid, form_name, subject, mode, t_score, theta, std_error, response_count, payload_json, created_at
		 FROM assessment_results ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.FormOID, &rec.FormName, &rec.Subject, &rec.Mode,
			&rec.TScore, &rec.Theta, &rec.StdError, &rec.ResponseCount, &rec.PayloadJSON, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
