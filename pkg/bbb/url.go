// Package bbb speaks the BigBlueButton API: checksum-signed request URLs and
// the XML response envelope.
package bbb

import (
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"strings"
)

// API operations used by the call integration.
const (
	OpCreate        = "create"
	OpJoin          = "join"
	OpGetRecordings = "getRecordings"
	OpGetMeetings   = "getMeetings"
)

// Checksum signs an API call: sha1(operation + encodedQuery + secret), hex.
// encodedQuery must be byte-identical to the query string that is sent.
func Checksum(operation, encodedQuery, secret string) string {
	sum := sha1.Sum([]byte(operation + encodedQuery + secret))
	return hex.EncodeToString(sum[:])
}

// BuildURL returns <base>/api/<operation>?<query>&checksum=<checksum>.
//
// The query is encoded once and that exact string is both hashed and sent.
// url.Values encodes in key order, so the result is deterministic.
func BuildURL(operation string, params url.Values, baseURL, secret string) string {
	encoded := params.Encode()
	base := baseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "api/" + operation + "?" + encoded + "&checksum=" + Checksum(operation, encoded, secret)
}

// EscapeName strips colons from a display name. BigBlueButton rejects
// joins with a colon in fullName.
func EscapeName(name string) string {
	return strings.ReplaceAll(name, ":", "")
}
