// Package service implements the ERF address directory: public lookups and
// idempotent bulk import from CSV or Excel.
package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"altona/internal/directory/models"
	dErrors "altona/pkg/domain-errors"
	"altona/pkg/platform/sentinel"
)

// Store is the directory persistence the service needs.
type Store interface {
	Upsert(ctx context.Context, m *models.Mapping) error
	FindByErf(ctx context.Context, erfNumber string) (*models.Mapping, error)
	List(ctx context.Context) ([]*models.Mapping, error)
}

// Service implements the address directory.
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the directory service.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{store: st, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves one ERF. Public, no auth.
func (s *Service) Lookup(ctx context.Context, erfNumber string) (*models.Mapping, error) {
	erfNumber = strings.TrimSpace(erfNumber)
	if erfNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "erf number is required")
	}
	m, err := s.store.FindByErf(ctx, erfNumber)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no address mapping for erf %s", erfNumber)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup erf")
	}
	return m, nil
}

// List returns the whole directory.
func (s *Service) List(ctx context.Context) ([]*models.Mapping, error) {
	mappings, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list erf mappings")
	}
	return mappings, nil
}

// AddressForErf feeds address auto-fill during registration.
func (s *Service) AddressForErf(ctx context.Context, erfNumber string) (string, string, string, error) {
	m, err := s.Lookup(ctx, erfNumber)
	if err != nil {
		return "", "", "", err
	}
	return m.StreetNumber, m.StreetName, m.FullAddress, nil
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportCSV upserts mappings from a CSV stream. The first row must be a
// header containing at least erf_number, street_number and street_name.
func (s *Service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse csv")
	}
	return s.importRows(ctx, rows)
}

// ImportXLSX upserts mappings from the first sheet of an Excel workbook.
func (s *Service) ImportXLSX(ctx context.Context, r io.Reader) (*ImportResult, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "open workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "read worksheet")
	}
	return s.importRows(ctx, rows)
}

func (s *Service) importRows(ctx context.Context, rows [][]string) (*ImportResult, error) {
	if len(rows) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "import source is empty")
	}
	cols, err := mapHeader(rows[0])
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	now := s.now().UTC()
	for i, row := range rows[1:] {
		erf := cell(row, cols["erf_number"])
		streetNumber := cell(row, cols["street_number"])
		streetName := cell(row, cols["street_name"])
		if erf == "" || streetName == "" {
			result.Skipped++
			continue
		}
		m := &models.Mapping{
			ID:           uuid.New(),
			ErfNumber:    erf,
			StreetNumber: streetNumber,
			StreetName:   streetName,
			Suburb:       cell(row, cols["suburb"]),
			PostalCode:   cell(row, cols["postal_code"]),
			FullAddress:  models.FormatAddress(streetNumber, streetName),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.store.Upsert(ctx, m); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("row %d: %v", i+2, err))
			continue
		}
		result.Imported++
	}

	s.logger.InfoContext(ctx, "address import finished",
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", len(result.Errors)))
	return result, nil
}

// headerAliases tolerates the column spellings seen in office spreadsheets.
var headerAliases = map[string]string{
	"erf":            "erf_number",
	"erf_number":     "erf_number",
	"erf number":     "erf_number",
	"erf nr":         "erf_number",
	"street_number":  "street_number",
	"street number":  "street_number",
	"street nr":      "street_number",
	"number":         "street_number",
	"street_name":    "street_name",
	"street name":    "street_name",
	"street":         "street_name",
	"suburb":         "suburb",
	"postal_code":    "postal_code",
	"postal code":    "postal_code",
	"postcode":       "postal_code",
}

func mapHeader(header []string) (map[string]int, error) {
	cols := map[string]int{
		"erf_number": -1, "street_number": -1, "street_name": -1,
		"suburb": -1, "postal_code": -1,
	}
	for i, raw := range header {
		name := strings.ToLower(strings.TrimSpace(raw))
		if canonical, ok := headerAliases[name]; ok {
			cols[canonical] = i
		}
	}
	if cols["erf_number"] < 0 || cols["street_number"] < 0 || cols["street_name"] < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"header must contain erf_number, street_number and street_name columns")
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
