package codec

import (
	"regexp"
	"strings"
)

// embeddedFence matches the first fenced block inside surrounding prose.
var embeddedFence = regexp.MustCompile("(?s)```[A-Za-z0-9_+-]*[ \t]*\r?\n(.*?)\r?\n[ \t]*```")

// StripFences removes markdown code fences from a model reply. A reply that
// opens with a fence (tagged or not) loses the opening line and everything
// from the closing fence on. A reply that mentions a fenced block after some
// prose yields that block. A reply that only ends with a fence loses that
// last line. Anything else is returned trimmed but otherwise verbatim.
func StripFences(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		nl := strings.IndexByte(s, '\n')
		if nl < 0 {
			return strings.TrimSpace(strings.Trim(s, "`"))
		}
		body := s[nl+1:]
		if end := closingFence(body); end >= 0 {
			body = body[:end]
		}
		return strings.TrimSpace(body)
	}

	if m := embeddedFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}

	if nl := strings.LastIndexByte(s, '\n'); nl >= 0 && strings.HasPrefix(strings.TrimSpace(s[nl+1:]), "```") {
		return strings.TrimSpace(s[:nl])
	}
	return s
}

// closingFence returns the offset of the first line starting with a fence.
func closingFence(body string) int {
	offset := 0
	for line := range strings.Lines(body) {
		if strings.HasPrefix(strings.TrimLeft(line, " \t"), "```") {
			return offset
		}
		offset += len(line)
	}
	return -1
}
