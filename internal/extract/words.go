package extract

import (
	"regexp"
	"strings"

	"github.com/nao1215/policyscan/internal/model"
)

// nonWordRegex matches one character that is neither a word character
// (Unicode letter, Unicode number, underscore) nor whitespace. Whitespace
// covers the ASCII controls \t \n \v \f \r and \x1c-\x1f, NEL, and every
// Unicode separator (which includes the no-break space).
var nonWordRegex = regexp.MustCompile(`[^\p{L}\p{N}_\t\n\v\f\r\x1c-\x1f\x{85}\p{Z}]`)

// lineBreakReplacer turns newline, carriage return, and no-break space
// into plain spaces.
var lineBreakReplacer = strings.NewReplacer("\n", " ", "\r", " ", "\u00a0", " ")

// StripPunctuation replaces every character that is not a word character or
// whitespace with a single space. Runs are not collapsed: "a, b" becomes
// "a  b".
func StripPunctuation(text string) string {
	return nonWordRegex.ReplaceAllString(text, " ")
}

// Normalize prepares text for CountWords. It strips punctuation, then
// replaces newlines, carriage returns, and no-break spaces with spaces.
// Other whitespace such as tabs is left in place.
func Normalize(text string) string {
	return lineBreakReplacer.Replace(StripPunctuation(text))
}

// CountWords splits text on the space character and counts each token.
// Consecutive spaces produce empty tokens, which are dropped, so the result
// never has an entry for "".
func CountWords(text string) model.WordCount {
	counts := make(model.WordCount)
	for _, token := range strings.Split(text, " ") {
		counts[token]++
	}
	delete(counts, "")
	return counts
}
