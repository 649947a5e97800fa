package ssml

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Complexity grades how much markup a document carries.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// charsPerSecond is the speaking rate used for duration estimates.
const charsPerSecond = 15

// Validation is the result of checking a markup document.
type Validation struct {
	Valid             bool       `json:"valid"`
	Errors            []string   `json:"errors,omitempty"`
	TagCount          int        `json:"tagCount"`
	Complexity        Complexity `json:"complexity"`
	EstimatedDuration float64    `json:"estimatedDurationSeconds"`
}

var (
	tagPattern   = regexp.MustCompile(`<(/?)([a-zA-Z][\w:.-]*)([^>]*?)(/?)>`)
	rateValue    = regexp.MustCompile(`\brate="([^"]*)"`)
	numericRate  = regexp.MustCompile(`^\d+(\.\d+)?%?$`)
	speakOpen    = regexp.MustCompile(`<speak(\s[^>]*)?>`)
	speakClose   = regexp.MustCompile(`</speak\s*>`)
	prosodyOpen  = regexp.MustCompile(`<prosody\b[^>]*[^/]>|<prosody>`)
	prosodyClose = regexp.MustCompile(`</prosody\s*>`)
)

// Validate checks that markup has a single speak root enclosing everything,
// balanced tags and numeric rate attributes. It also grades complexity and
// estimates the spoken duration of the plain text.
func Validate(markup string) Validation {
	v := Validation{}

	var stack []string
	speakRoots := 0
	for _, m := range tagPattern.FindAllStringSubmatch(markup, -1) {
		closing, name, attrs, selfClosing := m[1] == "/", m[2], m[3], m[4] == "/"
		v.TagCount++

		if rv := rateValue.FindStringSubmatch(attrs); rv != nil && !numericRate.MatchString(rv[1]) {
			v.Errors = append(v.Errors, fmt.Sprintf("non-numeric rate %q on <%s>", rv[1], name))
		}
		if selfClosing {
			continue
		}
		if closing {
			if len(stack) == 0 || stack[len(stack)-1] != name {
				v.Errors = append(v.Errors, fmt.Sprintf("unexpected </%s>", name))
				continue
			}
			stack = stack[:len(stack)-1]
			continue
		}
		if name == "speak" {
			speakRoots++
		}
		stack = append(stack, name)
	}
	for i := len(stack) - 1; i >= 0; i-- {
		v.Errors = append(v.Errors, fmt.Sprintf("unclosed <%s>", stack[i]))
	}

	trimmed := strings.TrimSpace(markup)
	switch {
	case speakRoots == 0:
		v.Errors = append(v.Errors, "missing <speak> root")
	case speakRoots > 1:
		v.Errors = append(v.Errors, fmt.Sprintf("%d <speak> elements, want 1", speakRoots))
	case !strings.HasPrefix(trimmed, "<speak") || !strings.HasSuffix(trimmed, "</speak>"):
		v.Errors = append(v.Errors, "content outside the <speak> root")
	}

	switch {
	case v.TagCount > 20:
		v.Complexity = ComplexityHigh
	case v.TagCount > 10:
		v.Complexity = ComplexityMedium
	default:
		v.Complexity = ComplexityLow
	}

	plain := html.UnescapeString(tagPattern.ReplaceAllString(markup, ""))
	v.EstimatedDuration = float64(utf8.RuneCountInString(strings.TrimSpace(plain))) / charsPerSecond

	v.Valid = len(v.Errors) == 0
	return v
}

// Repair fixes the bounded set of structural faults generation can produce:
// a missing root, duplicated roots and prosody left open at the end. The
// result still needs validating.
func Repair(markup string) string {
	inner := strings.TrimSpace(markup)
	inner = speakOpen.ReplaceAllString(inner, "")
	inner = speakClose.ReplaceAllString(inner, "")

	open := len(prosodyOpen.FindAllStringIndex(inner, -1))
	closed := len(prosodyClose.FindAllStringIndex(inner, -1))
	if open > closed {
		inner += strings.Repeat("</prosody>", open-closed)
	}
	return "<speak>" + inner + "</speak>"
}
