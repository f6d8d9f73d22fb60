package promis

import (
	"encoding/json"
	"strings"
)

// Flex is a JSON field that may arrive as a number, a numeric string, or be
// absent entirely. The Assessment Center API is not consistent about which.
type Flex string

func (f *Flex) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Flex(s)
		return nil
	}
	*f = Flex(string(b))
	return nil
}

func (f Flex) String() string { return string(f) }

// Keywords arrives as either a JSON array or a single comma-joined string.
type Keywords []string

func (k *Keywords) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*k = nil
		return nil
	}
	if b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*k = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*k = out
	return nil
}

// Form is questionnaire metadata as listed by the provider. Immutable once fetched.
type Form struct {
	OID         string   `json:"OID"`
	Name        string   `json:"Name"`
	Title       string   `json:"Title"`
	Description string   `json:"Description"`
	Population  string   `json:"Population"`
	Keywords    Keywords `json:"Keywords"`
}

// DisplayName prefers Name over Title, matching the provider's own listings.
func (f Form) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Title
}

// OptionMap is one selectable answer as delivered inside an element's Map.
// Field presence varies between forms, hence the Flex types and the several
// possible key fields.
type OptionMap struct {
	Value           Flex   `json:"Value"`
	Description     string `json:"Description"`
	ItemResponseOID string `json:"ItemResponseOID"`
	ResponseOID     string `json:"ResponseOID"`
	Order           Flex   `json:"Order"`
	Position        Flex   `json:"Position"`
}

// Element carries an item's prompt text and/or its answer options.
type Element struct {
	Description string      `json:"Description"`
	Map         []OptionMap `json:"Map"`
}

// Item is one question of a form. The explicit order field, when the provider
// sends one, shows up under any of Order/Position/Sequence/ItemOrder.
type Item struct {
	ID        string    `json:"ID"`
	Order     Flex      `json:"Order"`
	Position  Flex      `json:"Position"`
	Sequence  Flex      `json:"Sequence"`
	ItemOrder Flex      `json:"ItemOrder"`
	Elements  []Element `json:"Elements"`
}

// FormDetail is the full question/option document for one form.
type FormDetail struct {
	OID         string `json:"OID"`
	Name        string `json:"Name"`
	Title       string `json:"Title"`
	Description string `json:"Description"`
	Population  string `json:"Population"`
	Items       []Item `json:"Items"`
}

func (d FormDetail) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Title
}

// Response is one submitted answer in provider wire shape. Order is 1-based
// and must match submission order exactly, including skips.
type Response struct {
	ItemID          string `json:"ItemID"`
	ItemResponseOID string `json:"ItemResponseOID"`
	Order           int    `json:"Order"`
}

// NextResponse is the stateless endpoint's answer: zero or one next items,
// plus the raw payload. When Items is empty the assessment is complete and
// Raw doubles as the terminal score payload (Theta/StdError/tScore fields).
type NextResponse struct {
	Items []Item
	Raw   map[string]any
}
