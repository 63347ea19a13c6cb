// Package markdown holds the small pieces of fenced code block handling
// shared by payload parsing and chat formatting.
package markdown

import (
	"strings"
	"unicode"
)

// FenceMarker opens and closes a fenced code block
const FenceMarker = "```"

// maxInfoLen caps the info string carried by OpenerOf
const maxInfoLen = 16

// oneLineTags are info strings recognised on a fence that never breaks the line
var oneLineTags = map[string]bool{
	"json":    true,
	"mermaid": true,
	"text":    true,
	"yaml":    true,
}

// StripFence removes a markdown fence surrounding text, together with its
// info string. Text without a leading fence is returned trimmed.
func StripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, FenceMarker) {
		return text
	}
	text = strings.TrimPrefix(text, FenceMarker)
	text = strings.TrimSuffix(strings.TrimSpace(text), FenceMarker)

	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		return strings.TrimSpace(text[nl+1:])
	}
	return strings.TrimSpace(stripInfo(text))
}

// stripInfo drops a leading language tag from a single-line block
func stripInfo(text string) string {
	end := strings.IndexFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '+' || r == '_')
	})
	if end <= 0 {
		return text
	}
	tag, rest := text[:end], strings.TrimSpace(text[end:])
	if rest == "" {
		return text
	}
	if oneLineTags[strings.ToLower(tag)] || rest[0] == '{' || rest[0] == '[' {
		return rest
	}
	return text
}

// IsFenceLine reports whether line opens or closes a fenced block. A line
// whose info string holds another backtick is inline code, not a fence.
func IsFenceLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, FenceMarker) {
		return false
	}
	return !strings.Contains(strings.TrimLeft(trimmed, "`"), "`")
}

// OpenerOf returns the fence marker and language tag of a fence line,
// suitable for reopening the block elsewhere
func OpenerOf(line string) string {
	info := strings.TrimLeft(strings.TrimSpace(line), "`")
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return FenceMarker
	}
	tag := fields[0]
	if len(tag) > maxInfoLen {
		tag = tag[:maxInfoLen]
	}
	return FenceMarker + tag
}
