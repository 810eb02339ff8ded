package generation

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy

	fence = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*\\s*\\n(.*?)```")
)

func sanitizer() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Clean turns a model reply into substance text: the first fenced block if there is
// one, with any markup removed and surrounding whitespace trimmed.
func Clean(reply string) string {
	text := reply
	if m := fence.FindStringSubmatch(reply); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	// The strict policy drops every tag and entity-encodes the text; substance
	// programs use quotes for labels, so decode them back.
	text = html.UnescapeString(sanitizer().Sanitize(text))

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
