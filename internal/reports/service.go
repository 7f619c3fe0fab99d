package reports

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	pkgerrors "github.com/mercadito-pesca/mercadito-backend/pkg/errors"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

const (
	CatalogSheet    = "Catalogo"
	CatalogFilename = "catalogo.xlsx"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var catalogHeaders = []any{
	"ID", "Producto", "Marca", "Precio", "Stock", "Activo",
	"Precio promedio marca", "Oferta", "Ahorro %", "Comparado", "Creado",
}

// Service builds staff-facing spreadsheet exports.
type Service interface {
	ExportCatalog(ctx context.Context, w io.Writer) error
}

type service struct {
	repo *Repository
	logg *logger.Logger
}

func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// ExportCatalog writes one XLSX workbook with a row per product.
func (s *service) ExportCatalog(ctx context.Context, w io.Writer) error {
	rows, err := s.repo.Catalog(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}

	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logg.Error(ctx, "reports.close_workbook_failed", cerr)
		}
	}()

	if err := writeCatalogSheet(f, rows); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build catalog workbook")
	}
	if err := f.Write(w); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "write catalog workbook")
	}
	s.logg.Info(s.logg.WithField(ctx, "rows", len(rows)), "reports.catalog_exported")
	return nil
}

func writeCatalogSheet(f *excelize.File, rows []CatalogRow) error {
	if err := f.SetSheetName("Sheet1", CatalogSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(CatalogSheet, "A1", &catalogHeaders); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(CatalogSheet, 1, 1, bold); err != nil {
		return err
	}
	if err := f.SetColWidth(CatalogSheet, "A", "A", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(CatalogSheet, "B", "B", 40); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := catalogValues(row)
		if err := f.SetSheetRow(CatalogSheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func catalogValues(row CatalogRow) []any {
	price, _ := row.Price.Float64()
	values := []any{
		row.ID.String(), row.Title, row.Brand, price, row.Stock, yesNo(row.IsActive),
		"", "", "", "", row.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if row.AvgPrice.Valid {
		avg, _ := row.AvgPrice.Decimal.Float64()
		values[6] = avg
	}
	switch {
	case row.IsDeal == nil:
		values[7] = "sin datos"
	case *row.IsDeal:
		values[7] = "si"
	default:
		values[7] = "no"
	}
	if row.SavingsPct.Valid {
		pct, _ := row.SavingsPct.Decimal.Float64()
		values[8] = pct
	}
	if row.RefreshedAt != nil {
		values[9] = row.RefreshedAt.Format("2006-01-02 15:04:05")
	}
	return values
}

func yesNo(v bool) string {
	if v {
		return "si"
	}
	return "no"
}
