package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t interface{}, layout string) string {
			switch v := t.(type) {
			case time.Time:
				return v.Format(layout)
			case *time.Time:
				if v == nil {
					return ""
				}
				return v.Format(layout)
			default:
				return ""
			}
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		// Fallback to built-in template if file not found
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderReportHTML renders the review report template with provided data.
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Contribution {{.ContributionID}}</title>
</head>
<body>
  <h1>{{.EntityTitle}} ({{.Status}})</h1>
  <p>{{.EntityType | lower}} · {{.Action}} · by {{.ContributorName}}</p>
  {{if .Changes}}
  <table border="1">
    <tr><th>Field</th><th>Current</th><th>Proposed</th></tr>
    {{range .Changes}}<tr><td>{{.Field}}</td><td>{{.Original}}</td><td>{{.Proposed}}</td></tr>{{end}}
  </table>
  {{end}}
</body>
</html>`
