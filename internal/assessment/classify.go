package assessment

import "strings"

// fixedShortFormOIDs are forms known to require the fixed short-form flow
// rather than computerized-adaptive testing.
var fixedShortFormOIDs = map[string]struct{}{
	"154D0273-C3F6-4BCE-8885-3194D4CC4596": {},
}

// IsFixedShortForm reports whether an assessment for this form should run the
// fixed item sequence instead of the adaptive flow: either the OID is in the
// known set, or the form presents itself as a pediatric pain-interference
// short form.
func IsFixedShortForm(oid, name, title string) bool {
	if _, ok := fixedShortFormOIDs[strings.ToUpper(oid)]; ok {
		return true
	}
	label := strings.ToLower(name + " " + title)
	return strings.Contains(label, "pain interference") &&
		strings.Contains(label, "short form") &&
		strings.Contains(label, "pediatric")
}
