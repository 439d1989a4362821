package planning

import (
	"bytes"
	"fmt"
	"text/template"
)

// SystemPrompt opens every planning conversation.
const SystemPrompt = "You are an AI member of an agile software development team."

var backlogTmpl = template.Must(template.New("backlog").Parse(
	`You are the product owner of a new software product.
Title: {{.Title}}
Description: {{.Description}}
{{- if .Goals}}
Goals:
{{- range .Goals}}
- {{.}}
{{- end}}
{{- end}}
{{- if .KeyFeatures}}
Key features:
{{- range .KeyFeatures}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Constraints}}
Constraints:
{{- range .Constraints}}
- {{.}}
{{- end}}
{{- end}}

Create a product backlog for this product. Respond with a newline delimited list of backlog items in priority order without numbering or bullets.`))

var structureTmpl = template.Must(template.New("structure").Parse(
	`You are the software architect of a new software product.
Title: {{.Title}}
Description: {{.Description}}
{{- if .KeyFeatures}}
Key features:
{{- range .KeyFeatures}}
- {{.}}
{{- end}}
{{- end}}
{{- if .Constraints}}
Constraints:
{{- range .Constraints}}
- {{.}}
{{- end}}
{{- end}}

Design the project structure. Respond only with JSON of the form:
{"architecture_paradigm": "...", "project_philosophy": "...", "files": [{"path": "./src", "name": "main.py", "purpose": "..."}]}`))

var sprintTmpl = template.Must(template.New("sprint").Parse(
	`We are planning the next sprint for this product: {{.Vision}}
{{- if .Paradigm}}
The architecture paradigm is {{.Paradigm}}.
{{- end}}

Break the following backlog item into a new line delimited list of tasks, without numbering or bullets.
Backlog item: {{.Item}}`))

type sprintData struct {
	Vision   string
	Paradigm string
	Item     string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
