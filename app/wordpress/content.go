package wordpress

import (
	"fmt"
	"html"
	"strings"
)

// RenderContent builds the post body: an AI disclosure block when the text was
// rewritten, the paragraphs, and the original author line.
func RenderContent(post Post) string {
	var b strings.Builder

	if d := post.Disclosure; d != nil {
		source := html.EscapeString(post.SourceURL)
		b.WriteString("<div class='ai-disclosure'>\n")
		b.WriteString("<p><strong>AI-Generated Content Disclosure:</strong></p>\n")
		fmt.Fprintf(&b, "<p>This article was generated using artificial intelligence (%s) on %s. ",
			html.EscapeString(d.GeneratedBy), d.GeneratedAt.UTC().Format("2006-01-02"))
		fmt.Fprintf(&b, "The original article can be found at <a href='%s'>%s</a>.</p>\n", source, source)
		b.WriteString("</div>\n\n")
	}

	for i, p := range post.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(p))
	}

	if post.Author != nil && strings.TrimSpace(*post.Author) != "" {
		fmt.Fprintf(&b, "\n<p><em>Original author: %s</em></p>", html.EscapeString(strings.TrimSpace(*post.Author)))
	}

	return b.String()
}
