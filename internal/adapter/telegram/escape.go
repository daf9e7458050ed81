package telegram

import "strings"

// markdownV2Specials are the characters the Bot API requires escaping in
// MarkdownV2 text.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!\\"

// Escape backslash-escapes every MarkdownV2 special character so arbitrary
// order data (ids, error messages, credentials) renders literally.
func Escape(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Specials, r) {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
