// Package matcher ties a bank transfer's free-text description to an order
// reference. Extraction is a pure function so the accepted patterns can be
// tested independently of the webhook transport.
package matcher

import (
	"regexp"
	"strings"
)

// ReferencePrefix is the literal buyers are asked to put in the transfer
// description, followed by the order reference.
const ReferencePrefix = "ORDER-"

// Bank statements mangle case and sometimes swallow the hyphen or replace it
// with whitespace. The reference itself is uppercase base32 (letters and
// digits, no padding).
var referencePattern = regexp.MustCompile(`(?i)\bORDER[-\s]?([A-Z2-7]{8,16})\b`)

// ExtractReference returns the order reference embedded in a transfer
// description, normalized to upper case. ok is false when no token matches.
func ExtractReference(description string) (ref string, ok bool) {
	m := referencePattern.FindStringSubmatch(description)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]), true
}
