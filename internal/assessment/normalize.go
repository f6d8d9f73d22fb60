package assessment

import (
	"sort"
	"strconv"

	"github.com/carebridge-health/promis-gateway/internal/promis"
)

// NormalizeItems turns a raw form-detail document into questions in
// presentation order. Deterministic: the same document always yields the same
// ordering, which matters because it feeds response sequence numbering that
// the provider may validate.
//
// Item order: the first of Order/Position/Sequence/ItemOrder that parses as a
// number wins; otherwise a leading digit run in the item ID; otherwise the
// item is unordered and sorts last. Ties break by ID.
func NormalizeItems(detail promis.FormDetail) []Item {
	type keyed struct {
		item     Item
		order    float64
		hasOrder bool
	}
	out := make([]keyed, 0, len(detail.Items))
	for _, raw := range detail.Items {
		ord, ok := itemOrder(raw)
		out = append(out, keyed{
			item:     Item{ID: raw.ID, Text: itemText(raw), Options: normalizeOptions(raw)},
			order:    ord,
			hasOrder: ok,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.hasOrder != b.hasOrder {
			return a.hasOrder
		}
		if a.hasOrder && a.order != b.order {
			return a.order < b.order
		}
		return a.item.ID < b.item.ID
	})
	items := make([]Item, len(out))
	for i, k := range out {
		items[i] = k.item
	}
	return items
}

// NormalizeItem applies the same extraction to a single item, as returned by
// the stateless next-item endpoint.
func NormalizeItem(raw promis.Item) Item {
	return Item{ID: raw.ID, Text: itemText(raw), Options: normalizeOptions(raw)}
}

func itemOrder(raw promis.Item) (float64, bool) {
	for _, f := range []promis.Flex{raw.Order, raw.Position, raw.Sequence, raw.ItemOrder} {
		if v, err := strconv.ParseFloat(f.String(), 64); err == nil {
			return v, true
		}
	}
	// Leading digit run in the ID, e.g. "3a" in some legacy forms.
	n := 0
	for n < len(raw.ID) && raw.ID[n] >= '0' && raw.ID[n] <= '9' {
		n++
	}
	if n > 0 {
		if v, err := strconv.ParseFloat(raw.ID[:n], 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// itemText is the first element description; falls back to the item ID, then
// to a placeholder.
func itemText(raw promis.Item) string {
	for _, el := range raw.Elements {
		if el.Description != "" {
			return el.Description
		}
	}
	if raw.ID != "" {
		return raw.ID
	}
	return "Untitled question"
}

// normalizeOptions aggregates option maps across all of the item's elements
// and sorts them: explicit order field first, else numeric Value, else last;
// ties break by label.
func normalizeOptions(raw promis.Item) []Option {
	type keyed struct {
		opt      Option
		order    float64
		hasOrder bool
	}
	var out []keyed
	for _, el := range raw.Elements {
		for _, m := range el.Map {
			ord, ok := optionOrder(m)
			out = append(out, keyed{
				opt: Option{
					Value:       m.Value.String(),
					Label:       m.Description,
					ResponseKey: responseKey(m),
				},
				order:    ord,
				hasOrder: ok,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.hasOrder != b.hasOrder {
			return a.hasOrder
		}
		if a.hasOrder && a.order != b.order {
			return a.order < b.order
		}
		return a.opt.Label < b.opt.Label
	})
	opts := make([]Option, len(out))
	for i, k := range out {
		opts[i] = k.opt
	}
	return opts
}

func optionOrder(m promis.OptionMap) (float64, bool) {
	for _, f := range []promis.Flex{m.Order, m.Position, m.Value} {
		if v, err := strconv.ParseFloat(f.String(), 64); err == nil {
			return v, true
		}
	}
	return 0, false
}

// responseKey is what gets submitted when this option is chosen: the response
// OID when the provider sends one, finally the display value.
func responseKey(m promis.OptionMap) string {
	if m.ItemResponseOID != "" {
		return m.ItemResponseOID
	}
	if m.ResponseOID != "" {
		return m.ResponseOID
	}
	return m.Value.String()
}
