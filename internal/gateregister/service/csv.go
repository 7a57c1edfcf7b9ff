package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	dErrors "altona/pkg/domain-errors"
)

// csvHeader is the exact header line the gate software expects, spacing
// included.
const csvHeader = "RESIDENT STATUS, SURNAME, STREET NR, STREET NAME, VEHICLE REGISTRATION NR, ERF NR, INTERCOM NR"

// ExportCSV renders the full register as CSV. The file is built in memory
// so a failed export never produces partial output.
func (s *Service) ExportCSV(ctx context.Context) ([]byte, string, error) {
	start := s.now()
	rows, err := s.Build(ctx)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	buf.WriteString(csvHeader)
	buf.WriteByte('\n')
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if ctx.Err() != nil {
			return nil, "", dErrors.Wrap(ctx.Err(), dErrors.CodeInternal, "gate register export cancelled")
		}
		record := []string{
			row.ResidentStatus,
			row.Surname,
			row.StreetNumber,
			row.StreetName,
			row.VehicleRegistration,
			row.ErfNumber,
			row.IntercomCode,
		}
		if err := w.Write(record); err != nil {
			return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "write gate register row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "flush gate register csv")
	}

	if s.metrics != nil {
		s.metrics.GateExportDuration.Observe(s.now().Sub(start).Seconds())
	}
	filename := fmt.Sprintf("gate_register_%s.csv", s.now().UTC().Format("20060102_150405"))
	return buf.Bytes(), filename, nil
}
