package posting

import (
	"strings"
)

// Fingerprint is a stable identity key for a posting, used as the
// snapshot store key and for deduplication.
type Fingerprint string

// legalSuffixes are trailing company-name tokens that carry no identity
// and drift between fetches ("SK AX" vs "SK AX Inc.").
var legalSuffixes = map[string]struct{}{
	"inc":          {},
	"ltd":          {},
	"llc":          {},
	"corp":         {},
	"co":           {},
	"gmbh":         {},
	"plc":          {},
	"corporation":  {},
	"company":      {},
	"incorporated": {},
	"limited":      {},
}

// koreanEntityMarkers are corporate-entity markers that appear as a
// prefix or suffix in Korean company names.
var koreanEntityMarkers = []string{"주식회사", "(주)", "㈜"}

// FingerprintOf derives the identity key for a posting.
//
// When the source supplies a persistent ID it is used directly; two
// records sharing an ID fingerprint identically regardless of other
// field drift. Otherwise the key is built from the normalized company
// and title so that formatting drift between fetches does not produce
// false "new" postings. The function is total: whatever fields are
// present contribute to the key, so distinct sparse records do not
// collapse onto a shared sentinel.
func FingerprintOf(p Posting) Fingerprint {
	if id := strings.TrimSpace(p.ID); id != "" {
		return Fingerprint("id:" + id)
	}
	return Fingerprint(normalizeCompany(p.Company) + "|" + normalizeText(p.Title))
}

// normalizeText lowercases, trims, and collapses internal whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// normalizeCompany normalizes like normalizeText and additionally strips
// legal-entity markers.
func normalizeCompany(s string) string {
	for _, marker := range koreanEntityMarkers {
		s = strings.ReplaceAll(s, marker, " ")
	}

	fields := strings.Fields(strings.ToLower(s))
	for len(fields) > 1 {
		last := strings.Trim(fields[len(fields)-1], ".,")
		if _, ok := legalSuffixes[last]; !ok {
			break
		}
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, " ")
}
