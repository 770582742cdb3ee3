// Package normalize cleans up subject and body text before it is sent.
package normalize

import (
	"regexp"

	"golang.org/x/net/html"
)

// blankLineRun matches two line breaks separated by at most one
// whitespace character, including Unicode spaces such as a decoded &nbsp;.
var blankLineRun = regexp.MustCompile(`\r?\n[\t\v\f \x{85}\p{Z}]?\r?\n`)

// lineBreak matches the leading line break of a blankLineRun match.
var lineBreak = regexp.MustCompile(`^\r?\n`)

// Options selects which normalizations are applied.
type Options struct {
	DecodeHTML         bool
	CollapseBlankLines bool
}

// Normalize applies HTML entity decoding and then blank-line collapsing,
// as selected by opts. Normalize(Normalize(s)) == Normalize(s) for any opts.
func Normalize(text string, opts Options) string {
	if opts.DecodeHTML {
		text = DecodeHTML(text)
	}
	if opts.CollapseBlankLines {
		text = CollapseBlankLines(text)
	}
	return text
}

// DecodeHTML unescapes HTML entities until the text no longer changes.
// Malformed entities are left as they are.
func DecodeHTML(text string) string {
	for {
		decoded := html.UnescapeString(text)
		if decoded == text {
			return text
		}
		text = decoded
	}
}

// CollapseBlankLines reduces runs of blank lines to a single line break,
// keeping the line ending style of the first break in each run.
func CollapseBlankLines(text string) string {
	for {
		collapsed := blankLineRun.ReplaceAllStringFunc(text, func(run string) string {
			return lineBreak.FindString(run)
		})
		if collapsed == text {
			return text
		}
		text = collapsed
	}
}
