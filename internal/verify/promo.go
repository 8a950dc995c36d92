package verify

import "strings"

// PromoVerifier checks codes against a fixed allow-set. The set is built
// once from the codes passed to NewPromoVerifier; configuration does not
// change while the process runs.
type PromoVerifier struct {
	codes map[string]struct{}
}

func NewPromoVerifier(codes []string) *PromoVerifier {
	set := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if n := normalizeCode(c); n != "" {
			set[n] = struct{}{}
		}
	}
	return &PromoVerifier{codes: set}
}

// IsValid reports whether code, trimmed and case-folded, is in the set. An
// empty set rejects every code.
func (v *PromoVerifier) IsValid(code string) bool {
	n := normalizeCode(code)
	if n == "" || len(v.codes) == 0 {
		return false
	}
	_, ok := v.codes[n]
	return ok
}

// Len is the number of distinct usable codes.
func (v *PromoVerifier) Len() int {
	return len(v.codes)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// SplitCodes parses a comma-separated code list, falling back to single
// when list holds no usable entry.
func SplitCodes(list, single string) []string {
	var codes []string
	for _, part := range strings.Split(list, ",") {
		if c := strings.TrimSpace(part); c != "" {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 {
		if c := strings.TrimSpace(single); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}
