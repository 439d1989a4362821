package developer

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/chasedowdell/SprintSwarm/internal/codebase"
)

var decomposeTmpl = template.Must(template.New("decompose").Parse(
	`You are an AI software developer working on the following project:
{{.Vision}}

The project follows the {{.Paradigm}} architecture paradigm and has this file structure:
{{.Manifest}}
Given the backlog item below, generate a list of detailed code implementation actions, at most {{.MaxTasks}}, one per line and without any numbering.

Backlog item: {{.Item}}`))

var locateTmpl = template.Must(template.New("locate").Parse(
	`You are an AI software developer. The following code already exists in the project:
id,file_path,description
{{range .Matches}}{{.ArtifactKey}},{{.FilePath}},{{.Description}}
{{end}}{{if .Manifest}}
The project has this file structure:
{{.Manifest}}{{end}}
The task below is part of the backlog item "{{.Item}}".
Task: {{.Task}}

If one of the functions above should be changed to accomplish the task, respond with its id and nothing else. Otherwise say '` + NewFunctionSentinel + `'.`))

// projectContext opens every file prompt with what is known about the
// project and the backlog item.
const projectContext = `{{if .Vision}}You are working on the following project: {{.Vision}}
{{end}}{{if .Paradigm}}The project follows the {{.Paradigm}} architecture paradigm.
{{end}}{{if .Item}}The task below is part of the backlog item "{{.Item}}".
{{end}}`

var chooseFileTmpl = template.Must(template.New("chooseFile").Parse(
	`You are an AI software developer.
` + projectContext + `The project has this file structure:
{{.Manifest}}
To accomplish the task below, should a new file be created or an existing file be updated?
Task: {{.Task}}

Respond with either new:<file path> or update:<file path> and nothing else.`))

var newFileTmpl = template.Must(template.New("newFile").Parse(
	`You are an AI software developer.
` + projectContext + `Write the file {{.FilePath}} to accomplish the following task.
Task: {{.Task}}

Respond with the content of the new file and nothing else.`))

var extendFileTmpl = template.Must(template.New("extendFile").Parse(
	`You are an AI software developer.
` + projectContext + `Update the file {{.FilePath}} to accomplish the following task.
Task: {{.Task}}

Include all the original code in your response, together with your changes, and nothing else.
Code to update:
{{.Code}}`))

var reuseTmpl = template.Must(template.New("reuse").Parse(
	`You are an AI software developer.
` + projectContext + `Update the function {{.Symbol}} in the file {{.FilePath}} to accomplish the following task.
Task: {{.Task}}

Include all the original code of the file in your response, with {{.Symbol}} updated, and nothing else.
Code to update:
{{.Code}}`))

type decomposeData struct {
	Vision   string
	Paradigm string
	Manifest string
	MaxTasks int
	Item     string
}

type locateData struct {
	Matches  []codebase.Match
	Manifest string
	Item     string
	Task     string
}

type fileData struct {
	Vision   string
	Paradigm string
	Item     string
	Task     string
	Manifest string
	FilePath string
	Symbol   string
	Code     string
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
