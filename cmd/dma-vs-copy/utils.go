package main

import (
	"strings"
)

// formatSection properly indents a text section.
func formatSection(header string, content string) string {
	var out strings.Builder

	if header != "" {
		_, _ = out.WriteString(header + ":\n")
	}

	for line := range strings.SplitSeq(content, "\n") {
		if line != "" {
			_, _ = out.WriteString("  ")
		}

		_, _ = out.WriteString(line + "\n")
	}

	if header != "" {
		_, _ = out.WriteString("\n")

		return out.String()
	}

	return strings.TrimSuffix(out.String(), "\n")
}
