package ssml

import (
	"regexp"
	"strconv"
	"strings"
)

// Markdown patterns, applied in order.
var markdownRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`\*(.+?)\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`\b_(.+?)_\b`), "$1"},
	{regexp.MustCompile("`([^`]+)`"), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
	{regexp.MustCompile(`(?m)^[-*]\s+`), ""},
	{regexp.MustCompile(`(?m)^\d+\.\s+`), ""},
	{regexp.MustCompile(`(?m)^---+$`), ""},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
}

var codeBlock = regexp.MustCompile("```[a-z]*\n([\\s\\S]*?)\n```")

// PlainText turns chat-formatted text into something a voice can read:
// short code blocks are kept inline, long ones summarized, markdown removed.
func PlainText(text string) string {
	text = speakCodeBlocks(text)
	for _, r := range markdownRules {
		text = r.re.ReplaceAllString(text, r.repl)
	}
	return strings.TrimSpace(text)
}

func speakCodeBlocks(text string) string {
	return codeBlock.ReplaceAllStringFunc(text, func(match string) string {
		lines := strings.Count(match, "\n")
		if lines <= 3 {
			if inner := codeBlock.FindStringSubmatch(match); len(inner) > 1 {
				return strings.ReplaceAll(strings.TrimSpace(inner[1]), "`", "")
			}
		}
		return "a code block with " + strconv.Itoa(lines) + " lines."
	})
}

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

// Escape makes text safe to embed as markup character data.
func Escape(text string) string {
	return escaper.Replace(text)
}
