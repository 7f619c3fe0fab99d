package controllers

import (
	"bytes"
	"net/http"

	"github.com/mercadito-pesca/mercadito-backend/api/responses"
	reportsvc "github.com/mercadito-pesca/mercadito-backend/internal/reports"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

// AdminCatalogExport downloads the catalog workbook. The file is built in
// memory so a failed export still returns a JSON error.
func AdminCatalogExport(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("report service"))
			return
		}

		var buf bytes.Buffer
		if err := svc.ExportCatalog(r.Context(), &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteFile(w, reportsvc.ContentTypeXLSX, reportsvc.CatalogFilename, buf.Bytes())
	}
}
