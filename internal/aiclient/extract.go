package aiclient

import "strings"

// StripFences removes a surrounding Markdown code fence such as ```json ... ```.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the info string ("json", "JSON", ...)
		if !strings.ContainsAny(s[:nl], "[{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// ExtractArray returns the outermost JSON array in a model reply, or false when there is none.
func ExtractArray(reply string) (string, bool) {
	return outermost(StripFences(reply), '[', ']')
}

// ExtractObject returns the outermost JSON object in a model reply, or false when there is none.
func ExtractObject(reply string) (string, bool) {
	return outermost(StripFences(reply), '{', '}')
}

func outermost(s string, open, close byte) (string, bool) {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, close)
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
