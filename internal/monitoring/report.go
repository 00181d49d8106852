package monitoring

import (
	"bytes"
	"fmt"
	"time"

	"github.com/yuin/goldmark"

	"github.com/genesis-run/genesis/internal/generrors"
)

// RenderChainMarkdown renders a Chain's hop list as Markdown, the one place
// Genesis renders text for a human to read rather than JSON for a machine
// to parse.
func RenderChainMarkdown(c *Chain) string {
	if c == nil {
		return ""
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Chain %s\n\n", c.ChainID)
	if c.RootCause != "" {
		fmt.Fprintf(&buf, "Root cause: `%s`\n\n", c.RootCause)
	}
	for i, h := range c.Hops {
		ts := time.Unix(0, h.TimestampNs).UTC().Format(time.RFC3339Nano)
		fmt.Fprintf(&buf, "%d. **%s** `%s` → `%s` (%s)", i+1, h.Phase, h.SourceParticipant, h.TargetParticipant, ts)
		if h.Reason != "" {
			fmt.Fprintf(&buf, " (%s)", h.Reason)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// RenderChainHTML converts a Chain's Markdown report to HTML via goldmark,
// for embedding in a monitoring UI.
func RenderChainHTML(c *Chain) (string, error) {
	md := RenderChainMarkdown(c)
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", generrors.Wrap(generrors.KindDegraded, "render chain report", err)
	}
	return buf.String(), nil
}
