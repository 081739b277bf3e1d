// Package taxid validates Indian PAN and GSTIN identifiers and relates the two.
//
// Every function here is pure and total: malformed input yields false or an
// empty string, never an error.
package taxid

import (
	"regexp"
	"strings"
)

const (
	PANLength = 10
	GSTLength = 15
)

var (
	panRegex = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]{1}$`)
	gstRegex = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z]{1}[1-9A-Z]{1}Z[0-9A-Z]{1}$`)
)

// ValidPAN reports whether pan, uppercased, is five letters, four digits and a letter.
func ValidPAN(pan string) bool {
	return panRegex.MatchString(strings.ToUpper(pan))
}

// ValidGST reports whether gst, uppercased, has the 15 character GSTIN shape:
// state code, embedded PAN, entity code, a literal Z and a checksum character.
func ValidGST(gst string) bool {
	return gstRegex.MatchString(strings.ToUpper(gst))
}

// ExtractPAN returns the uppercased characters 3 through 12 of gst, or "" when
// gst is shorter than 12 characters. Length counts runes, not bytes. The GSTIN
// format is not checked.
func ExtractPAN(gst string) string {
	runes := []rune(gst)
	if len(runes) < 12 {
		return ""
	}
	return strings.ToUpper(string(runes[2:12]))
}

// Matches reports whether pan is the PAN embedded in gst. Neither argument is
// format checked; callers wanting a meaningful answer validate both first.
func Matches(pan, gst string) bool {
	return strings.ToUpper(pan) == ExtractPAN(gst)
}

// Normalize trims surrounding whitespace and uppercases s.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// StateCode returns the two digit state code of a well-formed GSTIN.
func StateCode(gst string) string {
	if !ValidGST(gst) {
		return ""
	}
	return gst[:2]
}

// Report is the combined outcome of checking a PAN and GSTIN together.
type Report struct {
	PANValid    bool   `json:"panValid"`
	GSTValid    bool   `json:"gstValid"`
	Matching    bool   `json:"matching"`
	EmbeddedPAN string `json:"embeddedPan,omitempty"`
	StateCode   string `json:"stateCode,omitempty"`
}

// Check validates both identifiers. Matching is only set when both are well formed.
func Check(pan, gst string) Report {
	r := Report{
		PANValid: ValidPAN(pan),
		GSTValid: ValidGST(gst),
	}
	if r.GSTValid {
		r.EmbeddedPAN = ExtractPAN(gst)
		r.StateCode = StateCode(gst)
	}
	r.Matching = r.PANValid && r.GSTValid && Matches(pan, gst)
	return r
}
