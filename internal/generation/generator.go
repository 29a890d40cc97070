// Package generation writes personalized email bodies with a language model.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fruitai/outreach/internal/model"
)

// Context is what the generator knows about one email
type Context struct {
	Prospect      model.Prospect
	TargetWebsite string
	Goal          string
	BusinessType  string
	SenderName    string
	SenderCompany string
	TemplateID    string
	// Instructions carries reviewer feedback on a regeneration
	Instructions string
}

// Generator produces an email body for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, gc Context) (string, error)
}

// BuildPrompt assembles the instruction sent to the model
func BuildPrompt(gc Context) string {
	var b strings.Builder

	b.WriteString("Write the body of a short, personalized cold outreach email.\n")
	b.WriteString("Return plain text only: no subject line, no greeting, no signature, no markdown.\n")
	b.WriteString("Use two or three short paragraphs separated by a blank line, under 150 words.\n\n")

	field := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	b.WriteString("About the sender:\n")
	field("Name", gc.SenderName)
	field("Company", gc.SenderCompany)
	field("Website", gc.TargetWebsite)
	field("Business type", gc.BusinessType)
	field("Campaign goal", gc.Goal)

	b.WriteString("\nAbout the recipient:\n")
	field("Name", gc.Prospect.Name)
	field("Company", gc.Prospect.Company)
	field("Email", gc.Prospect.Email)
	if role, ok := gc.Prospect.Metadata["role"].(string); ok {
		field("Role", role)
	}
	if industry, ok := gc.Prospect.Metadata["industry"].(string); ok {
		field("Industry", industry)
	}

	if s := strings.TrimSpace(gc.Instructions); s != "" {
		b.WriteString("\nReviewer feedback on the previous draft:\n")
		b.WriteString(s)
		b.WriteString("\n")
	}

	return b.String()
}

// Clean strips the wrapping a model sometimes adds around a plain text body
func Clean(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```text")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	lines := strings.Split(strings.TrimSpace(text), "\n")
	for len(lines) > 0 {
		first := strings.ToLower(strings.TrimSpace(lines[0]))
		if strings.HasPrefix(first, "subject:") || first == "" {
			lines = lines[1:]
			continue
		}
		break
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
