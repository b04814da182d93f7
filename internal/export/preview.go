package export

import (
	"html"
	"regexp"
	"strings"
)

var (
	imageLine = regexp.MustCompile(`^!\[([^\]]*)\]\(([^)]*)\)$`)
	boldSpan  = regexp.MustCompile(`\*\*(.+?)\*\*`)
	tableRule = regexp.MustCompile(`^\|[-| ]+\|$`)
)

const previewHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Document Layout Analysis</title>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; padding: 16px; line-height: 1.6; }
img { max-width: 100%; height: auto; margin: 10px 0; border-radius: 4px; }
h3 { color: #333; border-bottom: 1px solid #eee; padding-bottom: 8px; margin-top: 16px; }
p { margin: 8px 0; color: #444; }
blockquote { margin: 8px 0; padding-left: 12px; border-left: 3px solid #ddd; color: #666; }
table { border-collapse: collapse; margin: 8px 0; }
td { border: 1px solid #ccc; padding: 4px 8px; }
</style>
</head>
<body>
`

// Preview renders the markdown produced by layout.Markdown as a standalone
// HTML page. It understands the subset that report uses: headings, bullet
// lists, block quotes, images, pipe tables, rules and bold spans.
func Preview(markdown string) string {
	var sb strings.Builder
	sb.WriteString(previewHead)

	inList, inTable := false, false
	closeBlocks := func() {
		if inList {
			sb.WriteString("</ul>\n")
			inList = false
		}
		if inTable {
			sb.WriteString("</table>\n")
			inTable = false
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimRight(line, " \r")

		switch {
		case strings.HasPrefix(line, "- "):
			if !inList {
				closeBlocks()
				sb.WriteString("<ul>\n")
				inList = true
			}
			sb.WriteString("<li>" + inline(line[2:]) + "</li>\n")
			continue
		case strings.HasPrefix(line, "|"):
			if tableRule.MatchString(line) {
				continue
			}
			if !inTable {
				closeBlocks()
				sb.WriteString("<table>\n")
				inTable = true
			}
			sb.WriteString("<tr>")
			for _, cell := range strings.Split(strings.Trim(line, "|"), "|") {
				sb.WriteString("<td>" + inline(strings.TrimSpace(cell)) + "</td>")
			}
			sb.WriteString("</tr>\n")
			continue
		}

		closeBlocks()
		switch {
		case line == "":
		case line == "---":
			sb.WriteString("<hr>\n")
		case strings.HasPrefix(line, "### "):
			sb.WriteString("<h3>" + inline(line[4:]) + "</h3>\n")
		case strings.HasPrefix(line, "## "):
			sb.WriteString("<h2>" + inline(line[3:]) + "</h2>\n")
		case strings.HasPrefix(line, "# "):
			sb.WriteString("<h1>" + inline(line[2:]) + "</h1>\n")
		case strings.HasPrefix(line, "> "):
			sb.WriteString("<blockquote>" + inline(line[2:]) + "</blockquote>\n")
		case imageLine.MatchString(line):
			m := imageLine.FindStringSubmatch(line)
			sb.WriteString(`<div style="text-align:center"><img src="` + html.EscapeString(m[2]) +
				`" alt="` + html.EscapeString(m[1]) + `"></div>` + "\n")
		case len(line) > 2 && strings.HasPrefix(line, "*") && strings.HasSuffix(line, "*") && !strings.HasPrefix(line, "**"):
			sb.WriteString("<p><em>" + inline(line[1:len(line)-1]) + "</em></p>\n")
		default:
			sb.WriteString("<p>" + inline(line) + "</p>\n")
		}
	}
	closeBlocks()

	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// inline escapes text and turns **bold** spans into <strong>.
func inline(s string) string {
	return boldSpan.ReplaceAllString(html.EscapeString(s), "<strong>$1</strong>")
}
