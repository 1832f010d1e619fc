package narration

import (
	"regexp"
	"strings"
)

var listMarkerRe = regexp.MustCompile(`^(?:[-*•]+|\(?\d+[.):]|[A-Da-d][.)])\s*`)

// ParseChoices разбивает сгенерированный текст на строки вариантов, убирая маркеры списка и кавычки.
func ParseChoices(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"“”`)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
