package report

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/JakeFAU/linkrover/internal/checker"
)

const reportCSS = `* {
	background-color: #272727;
	color: white;
}
table,
th,
td {
	border: 1px solid white;
	border-collapse: collapse;
	padding: 5px;
}
h2 {
	margin-top: 1.5em;
}
.valid {
	color: #00ff00;
}
.invalid {
	color: red;
}
.muted {
	color: #aaaaaa;
}
`

const reportHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Link Check Results</title>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<style>{{.CSS}}</style>
</head>
<body>
<h1>Results</h1>
<p>Run {{.Report.RunID}} ({{.Report.RunStatus}}{{if .Report.Partial}}, partial{{end}})</p>
<table>
<thead><tr><th>Total</th><th>Valid</th><th>Redirected</th><th>Broken</th><th>Skipped</th></tr></thead>
<tbody><tr>
<td>{{.Report.Summary.Total}}</td>
<td class="valid">{{.Report.Summary.Valid}}</td>
<td>{{.Report.Summary.Redirected}}</td>
<td class="invalid">{{.Report.Summary.Broken}}</td>
<td class="muted">{{.Report.Summary.Skipped}}</td>
</tr></tbody>
</table>
{{range .Sections}}{{if .Entries}}
<div><h2>{{.Title}}</h2></div>
<table>
<thead><tr><th>URL</th><th>Source</th><th>Detail</th><th>Code</th><th>Attempts</th></tr></thead>
<tbody>
{{range .Entries}}<tr>
<td><a href="{{.TargetURL}}" target="_blank">{{.TargetURL}}</a></td>
<td>{{.Source}}</td>
<td class="{{$.Class .Status}}">{{.Detail}}</td>
<td>{{if .StatusCode}}{{.StatusCode}}{{end}}</td>
<td>{{.Attempts}}</td>
</tr>
{{end}}</tbody>
</table>
{{end}}{{end}}
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Parse(reportHTML))

type htmlEntry struct {
	Entry
	Detail string
}

type htmlSection struct {
	Title   string
	Entries []htmlEntry
}

type htmlContext struct {
	CSS      template.CSS
	Report   Report
	Sections []htmlSection
}

// Class maps a link status to its CSS class in the rendered tables.
func (htmlContext) Class(status checker.LinkStatus) string {
	switch status {
	case checker.LinkBroken:
		return "invalid"
	case checker.LinkValid, checker.LinkRedirected:
		return "valid"
	default:
		return "muted"
	}
}

// RenderHTML produces the HTML artifact for a report. Broken links are listed
// first so the interesting rows are at the top of the page.
func RenderHTML(rep Report) ([]byte, error) {
	sections := []htmlSection{
		{Title: "Broken"},
		{Title: "Redirected"},
		{Title: "Skipped"},
		{Title: "Valid"},
	}
	for _, e := range rep.Entries {
		he := htmlEntry{Entry: e, Detail: detailFor(e)}
		switch e.Status {
		case checker.LinkBroken:
			sections[0].Entries = append(sections[0].Entries, he)
		case checker.LinkRedirected:
			sections[1].Entries = append(sections[1].Entries, he)
		case checker.LinkSkipped:
			sections[2].Entries = append(sections[2].Entries, he)
		default:
			sections[3].Entries = append(sections[3].Entries, he)
		}
	}

	var buf bytes.Buffer
	ctx := htmlContext{
		CSS:      template.CSS(reportCSS),
		Report:   rep,
		Sections: sections,
	}
	if err := htmlTmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("render html report: %w", err)
	}
	return buf.Bytes(), nil
}

func detailFor(e Entry) string {
	switch e.Status {
	case checker.LinkRedirected:
		return e.RedirectedTo
	case checker.LinkBroken, checker.LinkSkipped:
		return e.Reason
	default:
		return "ok"
	}
}
