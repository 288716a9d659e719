package archive

// Preview lengths used by callers: table rows get the short form,
// detail views the long one.
const (
	PreviewShort = 100
	PreviewLong  = 200
)

// ellipsis is the fixed marker appended to truncated text.
const ellipsis = "..."

// Truncate returns text unchanged when it fits within maxLen runes,
// otherwise the first maxLen runes followed by an ellipsis marker.
// Empty input yields empty output.
func Truncate(text string, maxLen int) string {
	if text == "" || maxLen < 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + ellipsis
}
