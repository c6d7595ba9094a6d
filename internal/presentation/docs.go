package presentation

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"

	"github.com/aretw0/arbor/pkg/domain"
)

// NewRenderer returns a markdown renderer for terminal output. On a TTY
// it styles through glamour with background auto-detection; elsewhere it
// passes markdown through untouched.
func NewRenderer() func(string) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// ActionDoc builds the markdown documentation of one action: its
// description, input schema, and transport bindings.
func ActionDoc(a *domain.Action) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", a.Name)
	if a.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", a.Description)
	}

	if len(a.Inputs) > 0 {
		sb.WriteString("## Inputs\n\n")
		sb.WriteString("| Name | Required | Default | Secret |\n")
		sb.WriteString("|------|----------|---------|--------|\n")
		for _, in := range a.Inputs {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				in.Name, mark(in.Required), defaultCell(in), mark(in.Secret))
		}
		sb.WriteString("\n")
	}

	var bindings []string
	if a.Web != nil {
		bindings = append(bindings, fmt.Sprintf("- Web: `%s /api%s`", a.Web.Method, a.Web.Route))
	}
	if a.Task != nil {
		queue := a.Task.Queue
		if queue == "" {
			queue = domain.DefaultQueue
		}
		line := fmt.Sprintf("- Task: queue `%s`", queue)
		if a.Task.Frequency > 0 {
			line += fmt.Sprintf(", every %s", a.Task.Frequency)
		}
		bindings = append(bindings, line)
	}
	bindings = append(bindings, fmt.Sprintf("- Name: `POST /api/%s`", a.Name))

	sb.WriteString("## Bindings\n\n")
	sb.WriteString(strings.Join(bindings, "\n"))
	sb.WriteString("\n")

	return sb.String()
}

// ActionList builds a one-line-per-action markdown table for `actions ls`.
func ActionList(actions []*domain.Action) string {
	var sb strings.Builder
	sb.WriteString("| Action | Inputs | Web | Task | Description |\n")
	sb.WriteString("|--------|--------|-----|------|-------------|\n")
	for _, a := range actions {
		web, task := "", ""
		if a.Web != nil {
			web = fmt.Sprintf("%s %s", a.Web.Method, a.Web.Route)
		}
		if a.Task != nil {
			task = a.Task.Queue
			if task == "" {
				task = domain.DefaultQueue
			}
		}
		fmt.Fprintf(&sb, "| %s | %d | %s | %s | %s |\n",
			a.Name, len(a.Inputs), web, task, a.Description)
	}
	return sb.String()
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func defaultCell(in domain.Input) string {
	switch {
	case in.DefaultFunc != nil:
		return "(computed)"
	case in.Default != nil:
		return fmt.Sprintf("`%v`", in.Default)
	default:
		return ""
	}
}
