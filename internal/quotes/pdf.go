package quotes

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
)

// ValidityDays is how long a quote's prices are honoured.
const ValidityDays = 30

// Renderer lays out quote PDFs. Output depends only on the quote, its items
// and the recipient.
type Renderer struct {
	shopName string
}

func NewRenderer(shopName string) *Renderer {
	if strings.TrimSpace(shopName) == "" {
		shopName = "Mercadito"
	}
	return &Renderer{shopName: shopName}
}

func (r *Renderer) RenderQuote(quote *models.Quote, user *models.User) ([]byte, error) {
	if quote == nil {
		return nil, fmt.Errorf("quote required")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(quote.CreatedAt)
	pdf.SetModificationDate(quote.CreatedAt)
	pdf.SetTitle(fmt.Sprintf("Presupuesto %s", quote.ID), true)
	pdf.SetAuthor(r.shopName, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.shopName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr(fmt.Sprintf("Presupuesto N° %s", quote.ID)), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr("Fecha: "+quote.CreatedAt.Format("02/01/2006")), "", 1, "L", false, 0, "")
	if user != nil {
		pdf.CellFormat(0, 7, tr(fmt.Sprintf("Cliente: %s <%s>", user.DisplayName, user.Email)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	widths := []float64{95, 25, 35, 35}
	headers := []string{"Producto", "Cantidad", "Precio unit.", "Subtotal"}
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 236, 242)
	for i, header := range headers {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range quote.Items {
		pdf.CellFormat(widths[0], 7, tr(truncate(item.ProductTitle, 55)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, "$"+item.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, "$"+item.Subtotal().StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, "$"+quote.Total.StringFixed(2), "1", 1, "R", false, 0, "")

	if notes := strings.TrimSpace(quote.Notes); notes != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, tr("Notas: "+notes), "", "L", false)
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 9)
	until := validUntil(quote.CreatedAt)
	pdf.MultiCell(0, 5, tr(fmt.Sprintf(
		"Presupuesto válido por %d días (hasta el %s). Precios sujetos a disponibilidad de stock al momento de la compra.",
		ValidityDays, until.Format("02/01/2006"))), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render quote pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}

func validUntil(createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, ValidityDays)
}
