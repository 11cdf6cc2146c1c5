package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	content, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		reportTemplate = template.Must(template.New("report").Parse(fallbackReportTemplate))
		return
	}
	reportTemplate = template.Must(template.New("report").Parse(string(content)))
}

// ReportData holds everything the printable report renders.
type ReportData struct {
	MeetingName    string
	MeetingDate    string
	CoderID        string
	GeneratedAt    time.Time
	CompletedCount int
	DecisionCount  int
	Decisions      []ReportDecision
	Missing        []ReportMissing
	Assessment     string
	GeneralNotes   string
	AllComplete    bool
}

// ReportDecision is one decision row of the report.
type ReportDecision struct {
	Index       int
	Description string
	Type        string
	Score       int
	Occurred    string
	Correction  string
	FinalType   string
	HumanScore  string
	Confidence  string
	Evidence    string
	Notes       string
	Completed   bool
}

// ReportMissing is one reviewer-added decision.
type ReportMissing struct {
	Position    int
	Description string
	Type        string
	Score       int
	Evidence    string
	Notes       string
	Confidence  string
}

// RenderReportHTML renders the printable report.
func RenderReportHTML(data ReportData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const fallbackReportTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Validation Report {{.MeetingDate}}</title>
</head>
<body>
  <h1>{{.MeetingName}}</h1>
  <p>Coder {{.CoderID}} | {{.CompletedCount}}/{{.DecisionCount}} complete</p>
  {{range .Decisions}}<div><strong>#{{.Index}}</strong> {{.Description}} | {{.Occurred}}</div>{{end}}
</body>
</html>`
