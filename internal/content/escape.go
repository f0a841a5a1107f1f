package content

import "strings"

// EscapeBraces escapes literal {x} groups in a Markdown body so the MDX renderer
// does not evaluate them. Groups that look like expressions (containing "(", "=>" or
// "import") are left alone, as are fenced code blocks and inline code spans.
// Already escaped groups are untouched, so the function is idempotent.
func EscapeBraces(body string) string {
	lines := strings.Split(body, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		lines[i] = escapeLine(line)
	}
	return strings.Join(lines, "\n")
}

func escapeLine(line string) string {
	if !strings.Contains(line, "{") {
		return line
	}
	parts := strings.Split(line, "`")
	for i := range parts {
		// odd parts sit inside a code span, unless the last backtick is unclosed
		inCode := i%2 == 1 && i < len(parts)-1
		if !inCode {
			parts[i] = escapeText(parts[i])
		}
	}
	return strings.Join(parts, "`")
}

func escapeText(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == '{' && (i == 0 || s[i-1] != '\\') {
			if end := strings.IndexAny(s[i+1:], "{}"); end >= 0 && s[i+1+end] == '}' {
				inner := s[i+1 : i+1+end]
				if !looksLikeExpression(inner) {
					b.WriteString(`\{`)
					b.WriteString(inner)
					b.WriteString(`\}`)
					i += end + 2
					continue
				}
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func looksLikeExpression(inner string) bool {
	return strings.Contains(inner, "(") || strings.Contains(inner, "=>") || strings.Contains(inner, "import")
}
