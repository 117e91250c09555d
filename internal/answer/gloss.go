package answer

import (
	"regexp"
	"strings"
)

var (
	fenceLineRe  = regexp.MustCompile("(?m)^[ \\t]*```[^\\n]*\\n?")
	headingRe    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	bulletRe     = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	emphasisRe   = regexp.MustCompile(`(\*\*|__|\*|` + "`" + `)([^*` + "`" + `\n]+?)(\*\*|__|\*|` + "`" + `)`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`)
	multiSpaceRe = regexp.MustCompile(`[ \t]+`)
)

// CleanGloss strips markdown from a model reply and folds bullet lists into
// running prose so it reads as a short paragraph under the numbers.
func CleanGloss(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = fenceLineRe.ReplaceAllString(s, "")
	s = headingRe.ReplaceAllString(s, "")
	s = linkRe.ReplaceAllString(s, "$1")
	for i := 0; i < 2; i++ {
		s = emphasisRe.ReplaceAllString(s, "$2")
	}

	var paras []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			paras = append(paras, strings.Join(cur, " "))
			cur = nil
		}
	}
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		if bulletRe.MatchString(line) {
			line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
			if line == "" {
				continue
			}
			if !strings.ContainsAny(line[len(line)-1:], ".!?:;") {
				line += "."
			}
		}
		cur = append(cur, line)
	}
	flush()

	for i, p := range paras {
		paras[i] = strings.TrimSpace(multiSpaceRe.ReplaceAllString(p, " "))
	}
	return strings.TrimSpace(strings.Join(paras, "\n\n"))
}
