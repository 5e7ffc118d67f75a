// Package htmltext flattens notice HTML into plain text lines.
package htmltext

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ToText renders HTML as plain text. Script and style bodies are dropped,
// <br> and the end of p/div/li break lines, list items are prefixed with
// "- ", entities are decoded, and each line is trimmed with blank lines
// removed.
func ToText(src string) string {
	if src == "" {
		return ""
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(src))
	skipDepth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		tok := z.Token()

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			switch tok.DataAtom {
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skipDepth++
				}
			case atom.Br:
				b.WriteByte('\n')
			case atom.Li:
				b.WriteString("- ")
			}
		case html.EndTagToken:
			switch tok.DataAtom {
			case atom.Script, atom.Style:
				if skipDepth > 0 {
					skipDepth--
				}
			case atom.P, atom.Div, atom.Li:
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.WriteString(tok.Data)
			}
		}
	}

	text := strings.ReplaceAll(b.String(), "\r", "")
	text = strings.ReplaceAll(text, "\u00a0", " ")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
