package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// BuildContext renders hits as a compact block for the system prompt. Empty
// sections are left out; an empty result renders as "".
func BuildContext(res model.SearchResult) string {
	var sb strings.Builder
	if len(res.Catalog) > 0 {
		sb.WriteString("Relevant products:\n")
		for _, p := range res.Catalog {
			fmt.Fprintf(&sb, "- %s", p.Title)
			if !p.Price.IsZero() {
				fmt.Fprintf(&sb, " (%s)", formatPrice(p))
			}
			if p.Handle != "" {
				fmt.Fprintf(&sb, " [handle: %s]", p.Handle)
			}
			if d := oneLine(p.Description, 160); d != "" {
				sb.WriteString(": " + d)
			}
			sb.WriteString("\n")
		}
	}
	if len(res.Help) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Relevant help articles:\n")
		for _, f := range res.Help {
			fmt.Fprintf(&sb, "Q: %s\nA: %s\n", oneLine(f.Question, 0), oneLine(f.Answer, 400))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPrice(p model.ProductHit) string {
	amount := p.Price.StringFixed(2)
	if p.Currency == "" {
		return amount
	}
	return amount + " " + p.Currency
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max > 0 && len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimSpace(s[:cut]) + "..."
	}
	return s
}
