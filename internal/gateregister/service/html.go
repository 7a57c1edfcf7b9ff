package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"altona/internal/gateregister/models"
	dErrors "altona/pkg/domain-errors"
)

// changePage renders the change-highlighted register. Critical changes are
// red, non-critical green; the summary enumerates every change old→new.
var changePage = template.Must(template.New("gate-changes").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Gate Register Changes</title>
<style>
body { font-family: sans-serif; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #999; padding: 4px 8px; text-align: left; }
.critical-changed { color: #c00000; font-weight: bold; }
.non-critical-changed { color: #007000; }
</style>
</head>
<body>
<h1>Gate Register — Pending Changes</h1>
<p>Generated {{.GeneratedAt}}</p>
<table>
<tr>
<th>RESIDENT STATUS</th><th>SURNAME</th><th>STREET NR</th><th>STREET NAME</th>
<th>VEHICLE REGISTRATION NR</th><th>ERF NR</th><th>INTERCOM NR</th><th>FLAGS</th>
</tr>
{{range .Rows}}
<tr>
<td>{{.ResidentStatus}}</td>
<td>{{.Surname}}</td>
<td>{{.StreetNumber}}</td>
<td>{{.StreetName}}</td>
<td{{if .VehicleChanged}} class="critical-changed"{{end}}>{{.VehicleRegistration}}</td>
<td>{{.ErfNumber}}</td>
<td{{if .IntercomChanged}} class="non-critical-changed"{{end}}>{{.IntercomCode}}</td>
<td>
{{- if .PhoneChanged}}<span class="critical-changed">phone</span> {{end}}
{{- if .VehicleChanged}}<span class="critical-changed">vehicle</span> {{end}}
{{- if .IntercomChanged}}<span class="non-critical-changed">intercom</span>{{end}}
</td>
</tr>
{{end}}
</table>
<h2>Change Summary</h2>
<ul>
{{range .Rows}}{{$surname := .Surname}}{{$erf := .ErfNumber}}{{range .Changes}}
<li class="{{if .Critical}}critical-changed{{else}}non-critical-changed{{end}}">
{{$surname}} (erf {{$erf}}): {{.FieldName}} &ldquo;{{.OldValue}}&rdquo; &rarr; &ldquo;{{.NewValue}}&rdquo;
</li>
{{end}}{{end}}
</ul>
</body>
</html>
`))

// ExportHTML renders the change-highlighted register and stamps the
// included journal rows as exported. Built fully in memory; nothing is
// marked on failure.
func (s *Service) ExportHTML(ctx context.Context) ([]byte, string, error) {
	start := s.now()
	rows, changeIDs, err := s.Changed(ctx)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	data := struct {
		GeneratedAt string
		Rows        []models.ChangedRow
	}{
		GeneratedAt: s.now().UTC().Format("2006-01-02 15:04:05 UTC"),
		Rows:        rows,
	}
	if err := changePage.Execute(&buf, data); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "render gate change register")
	}
	if ctx.Err() != nil {
		return nil, "", dErrors.Wrap(ctx.Err(), dErrors.CodeInternal, "gate change export cancelled")
	}

	if len(changeIDs) > 0 {
		if err := s.journal.MarkExported(ctx, changeIDs); err != nil {
			return nil, "", err
		}
	}
	if s.metrics != nil {
		s.metrics.GateExportDuration.Observe(s.now().Sub(start).Seconds())
	}
	filename := fmt.Sprintf("gate_register_changes_%s.html", s.now().UTC().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}
