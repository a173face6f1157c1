// Package vwline composes and parses lines of the Vowpal Wabbit text
// protocol.
//
// A full input line is assembled from two parts: a common part shared by
// every item of one predict/train call (formatted once per call) and a
// per-item part. Formatters translate structured feature data into these
// parts; composition, label/weight prefixing and audit-explanation parsing
// live here as plain functions.
package vwline

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Formatter translates structured feature data into VW line parts.
//
// FormatCommon runs once per predict/train call and its result must start
// with the '|' namespace separator. FormatItem runs once per item; when
// namespaces are used it must start with "|NAMESPACE", otherwise it must
// not contain '|' at all.
type Formatter interface {
	FormatCommon(common any) string
	FormatItem(common, item any) string
}

// Passthrough is a Formatter for callers that already hold raw VW line
// parts as strings. Non-string values format through fmt-free conversion
// and come out empty, so feed it strings.
type Passthrough struct{}

// FormatCommon returns common unchanged.
func (Passthrough) FormatCommon(common any) string { return asString(common) }

// FormatItem returns item unchanged.
func (Passthrough) FormatItem(_, item any) string { return asString(item) }

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Compose joins the common and item parts into one unlabeled VW line.
func Compose(commonPart, itemPart string) string {
	return commonPart + " " + itemPart
}

// ComposeTrain joins the parts into a labeled training line.
// A nil weight leaves the weight field empty, matching VW's optional
// weight syntax.
func ComposeTrain(commonPart, itemPart string, label float64, weight *float64) string {
	w := ""
	if weight != nil {
		w = formatFloat(*weight)
	}
	return strings.Join([]string{formatFloat(label), w, commonPart, itemPart}, " ")
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Sanitize prepares an externally supplied line for single-line framing:
// NFC normalization, embedded newlines removed, surrounding space trimmed.
// Used on lines sent through the synchronous explain path.
func Sanitize(line string) string {
	s := norm.NFC.String(line)
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	return strings.TrimSpace(s)
}
