package catalog

import (
	"fmt"
	"strings"
)

// Embedded payload markers. The search page assigns the result JSON to a
// script global and immediately follows it with a refinements assignment,
// which serves as the end boundary; the detail page ends with the talk
// assignment as its last script statement.
const (
	searchPrefix = "document.__FBA__.search = "
	searchEnd    = "document.__FBA__.refinements"
	detailPrefix = "document.__FBA__.talk = "
	scriptClose  = "</script>"
)

// MalformedResponseError reports that an expected marker was missing or the
// delimited payload was not valid JSON.
type MalformedResponseError struct {
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %s", e.Reason)
}

// extractBetween returns the text between the prefix marker and the next
// occurrence of the end marker. The end marker is a distinct literal rather
// than a bare delimiter because the payload itself may contain delimiter
// characters.
func extractBetween(doc, prefix, end string) (string, error) {
	start := strings.Index(doc, prefix)
	if start < 0 {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("marker %q not found", prefix)}
	}
	rest := doc[start+len(prefix):]
	stop := strings.Index(rest, end)
	if stop < 0 {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("end marker %q not found", end)}
	}
	return trimStatement(rest[:stop]), nil
}

// extractStatement returns the text between the prefix marker and the last
// statement terminator of the enclosing script block. Only valid when the
// assignment is the block's final statement; the payload may contain
// terminators of its own, hence the scan from the end. The scan stops at the
// closing script tag so semicolons in trailing markup cannot corrupt the
// fragment.
func extractStatement(doc, prefix string) (string, error) {
	start := strings.Index(doc, prefix)
	if start < 0 {
		return "", &MalformedResponseError{Reason: fmt.Sprintf("marker %q not found", prefix)}
	}
	rest := doc[start+len(prefix):]
	if end := strings.Index(rest, scriptClose); end >= 0 {
		rest = rest[:end]
	}
	stop := strings.LastIndex(rest, ";")
	if stop < 0 {
		return "", &MalformedResponseError{Reason: "statement terminator not found"}
	}
	return strings.TrimSpace(rest[:stop]), nil
}

func trimStatement(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	fragment = strings.TrimSuffix(fragment, ";")
	return strings.TrimSpace(fragment)
}
