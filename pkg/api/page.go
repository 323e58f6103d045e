package api

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/rubiojr/solrpi/pkg/plugin"
)

// Page is the HTML document around plugin output. Content is trusted
// markup produced by a plugin lifecycle.
func Page(title, lang, content string, scripts []plugin.Script) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html lang=\"")
		b.WriteString(templ.EscapeString(lang))
		b.WriteString("\"><head><meta charset=\"utf-8\"><meta name=\"viewport\" content=\"width=device-width, initial-scale=1\"><title>")
		b.WriteString(templ.EscapeString(title))
		b.WriteString("</title></head><body>\n")
		b.WriteString(content)
		b.WriteString("\n")
		for _, s := range scripts {
			if s.Src != "" {
				b.WriteString("<script src=\"")
				b.WriteString(templ.EscapeString(s.Src))
				b.WriteString("\"></script>\n")
				continue
			}
			if s.Inline != "" {
				b.WriteString("<script>")
				b.WriteString(s.Inline)
				b.WriteString("</script>\n")
			}
		}
		b.WriteString("</body></html>\n")
		_, err := io.WriteString(w, b.String())
		return err
	})
}
