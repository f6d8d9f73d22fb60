package promis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://www.assessmentcenter.net/ac_api"
	DefaultAPIVersion = "2014-01"
)

// Client talks to the PROMIS Assessment Center REST endpoints. All calls are
// POST with HTTP basic auth (registration/token GUID pair).
type Client struct {
	baseURL      string
	apiVersion   string
	registration string
	token        string
	hc           *http.Client
	log          *zap.Logger
}

type ClientOption func(*Client)

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithAPIVersion(v string) ClientOption {
	return func(c *Client) { c.apiVersion = strings.Trim(v, "/") }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

func NewClient(registration, token string, opts ...ClientOption) (*Client, error) {
	if registration == "" || token == "" {
		return nil, ErrMissingCredentials
	}
	c := &Client{
		baseURL:      DefaultBaseURL,
		apiVersion:   DefaultAPIVersion,
		registration: registration,
		token:        token,
		hc:           &http.Client{Timeout: 30 * time.Second},
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ListForms returns metadata for the available forms.
func (c *Client) ListForms(ctx context.Context) ([]Form, error) {
	body, err := c.post(ctx, "Forms/.json", nil, "")
	if err != nil {
		return nil, err
	}
	var out struct {
		Form []Form `json:"Form"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &UpstreamError{Status: http.StatusOK, Detail: "malformed form list payload"}
	}
	return out.Form, nil
}

// FormDetails returns the question and response-option document for a form.
func (c *Client) FormDetails(ctx context.Context, formOID string) (FormDetail, error) {
	if formOID == "" {
		return FormDetail{}, &InvalidArgumentError{Msg: "form OID must be provided"}
	}
	body, err := c.post(ctx, "Forms/"+formOID+".json", nil, "")
	if err != nil {
		return FormDetail{}, err
	}
	var d FormDetail
	if err := json.Unmarshal(body, &d); err != nil {
		return FormDetail{}, &UpstreamError{Status: http.StatusOK, Detail: "malformed form detail payload"}
	}
	if d.OID == "" {
		d.OID = formOID
	}
	return d, nil
}

// StatelessNext submits the responses so far and returns either the next item
// or, when the assessment is complete, an empty item list whose raw payload
// carries the score fields.
func (c *Client) StatelessNext(ctx context.Context, formOID string, responses []Response) (NextResponse, error) {
	if formOID == "" {
		return NextResponse{}, &InvalidArgumentError{Msg: "form OID must be provided"}
	}
	path := "StatelessParticipants/" + formOID + ".json"
	var payload []byte
	contentType := ""
	if len(responses) > 0 {
		var err error
		payload, err = json.Marshal(responses)
		if err != nil {
			return NextResponse{}, fmt.Errorf("marshal responses: %w", err)
		}
		path += "?BodyParam=true"
		contentType = "application/json"
	}
	body, err := c.post(ctx, path, payload, contentType)
	if err != nil {
		return NextResponse{}, err
	}
	var items struct {
		Items []Item `json:"Items"`
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return NextResponse{}, &UpstreamError{Status: http.StatusOK, Detail: "malformed stateless payload"}
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return NextResponse{}, &UpstreamError{Status: http.StatusOK, Detail: "malformed stateless payload"}
	}
	return NextResponse{Items: items.Items, Raw: raw}, nil
}

// ScoreResponses scores a complete fixed-form response set. The provider uses
// the same stateless endpoint for this; an empty response list is a caller error.
func (c *Client) ScoreResponses(ctx context.Context, formOID string, responses []Response) (map[string]any, error) {
	if len(responses) == 0 {
		return nil, &InvalidArgumentError{Msg: "responses must not be empty"}
	}
	next, err := c.StatelessNext(ctx, formOID, responses)
	if err != nil {
		return nil, err
	}
	return next.Raw, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte, contentType string) ([]byte, error) {
	url := c.baseURL + "/" + c.apiVersion + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.registration, c.token)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("promis request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("promis response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := extractDetail(data)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		c.log.Warn("provider request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("detail", detail))
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: detail}
	}
	return data, nil
}

// extractDetail pulls a human-readable message out of an error body when the
// provider sends one; returns "" when the body cannot be parsed.
func extractDetail(body []byte) string {
	var m map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	for _, k := range []string{"Error", "Message", "Detail", "error", "message"} {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
