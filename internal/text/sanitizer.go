package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	htmlCommentRe = regexp.MustCompile(`(?s)<!--.*?-->`)
	htmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	scriptRe      = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	iframeRe      = regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`)
	jsProtocolRe  = regexp.MustCompile(`(?i)javascript:\s*`)
	dataURIRe     = regexp.MustCompile(`(?i)data:[^,]*,`)

	blankRunRe      = regexp.MustCompile(`\n{3,}`)
	trailingSpaceRe = regexp.MustCompile(`(?m)[ \t]+$`)
	spaceRunRe      = regexp.MustCompile(` {2,}`)

	alphanumericRe = regexp.MustCompile(`[a-zA-Z0-9]`)

	// Compatibility forms that NFKC folds into '<' and '>'.
	angleBrackets = strings.NewReplacer("\uFF1C", "<", "\uFF1E", ">", "\uFE64", "<", "\uFE65", ">")

	// Emoticons, pictographs, transport and map symbols, alchemical and
	// geometric extensions, supplemental symbols, dingbats and enclosed
	// characters.
	emojiRe = regexp.MustCompile(`[` +
		`\x{1F600}-\x{1F64F}` +
		`\x{1F300}-\x{1F5FF}` +
		`\x{1F680}-\x{1F6FF}` +
		`\x{1F700}-\x{1F77F}` +
		`\x{1F780}-\x{1F7FF}` +
		`\x{1F800}-\x{1F8FF}` +
		`\x{1F900}-\x{1F9FF}` +
		`\x{1FA00}-\x{1FA6F}` +
		`\x{1FA70}-\x{1FAFF}` +
		`\x{2702}-\x{27B0}` +
		`\x{24C2}-\x{1F251}` +
		`]+`)
)

// Clean normalizes markdown before it is split into chunks.
//
// Markup is stripped first (comments, script and iframe elements with their
// bodies, then any remaining tag), whitespace is normalized without touching
// indented code, dangerous URL schemes are removed, and the result is NFKC
// normalized and trimmed. Fullwidth and small angle brackets are folded to
// ASCII before any stripping so normalization cannot rebuild a tag.
func Clean(text string) string {
	text = angleBrackets.Replace(text)
	text = htmlCommentRe.ReplaceAllString(text, "")
	text = stripDangerousElements(text)
	text = htmlTagRe.ReplaceAllString(text, "")

	text = blankRunRe.ReplaceAllString(text, "\n\n")
	text = trailingSpaceRe.ReplaceAllString(text, "")
	text = collapseSpaces(text)

	text = jsProtocolRe.ReplaceAllString(text, "")
	text = dataURIRe.ReplaceAllString(text, "")
	text = stripDangerousElements(text)

	text = norm.NFKC.String(text)
	return strings.TrimSpace(text)
}

func stripDangerousElements(text string) string {
	text = iframeRe.ReplaceAllString(text, "")
	return scriptRe.ReplaceAllString(text, "")
}

// collapseSpaces squeezes runs of spaces to one, except on lines that are
// indented code (four spaces or a tab).
func collapseSpaces(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			continue
		}
		lines[i] = spaceRunRe.ReplaceAllString(line, " ")
	}
	return strings.Join(lines, "\n")
}

// CleanHeader turns a markdown header line into plain title text.
func CleanHeader(header string) string {
	header = strings.TrimSpace(header)
	header = strings.TrimLeft(header, "#")
	header = strings.TrimSpace(header)
	header = emojiRe.ReplaceAllString(header, "")
	header = htmlTagRe.ReplaceAllString(header, "")
	header = spaceRunRe.ReplaceAllString(header, " ")
	return strings.TrimSpace(header)
}

// IsValidMarkdown reports whether text carries any alphanumeric content.
func IsValidMarkdown(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	return alphanumericRe.MatchString(text)
}

// TitleFromName derives a display title from a file stem:
// "api_design-guide" becomes "Api Design Guide".
func TitleFromName(stem string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return cases.Title(language.Und).String(s)
}
