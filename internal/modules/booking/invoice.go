package booking

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"bikerental/internal/domain"
	"bikerental/internal/pkg/money"
)

const invoiceContentType = "application/pdf"

type InvoiceRenderer struct {
	company  string
	currency string
	now      func() time.Time
}

func NewInvoiceRenderer(company, currency string) *InvoiceRenderer {
	return &InvoiceRenderer{
		company:  company,
		currency: strings.ToUpper(currency),
		now:      time.Now,
	}
}

func InvoiceFilename(bookingID int64) string {
	return fmt.Sprintf("booking-invoice-%d.pdf", bookingID)
}

// Render lays out a single-page invoice. b must have User and Bike loaded.
func (r *InvoiceRenderer) Render(b *domain.Booking) ([]byte, error) {
	if b == nil || b.User == nil || b.Bike == nil {
		return nil, fmt.Errorf("invoice requires booking with user and bike")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Invoice #%d", b.ID), false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(r.company))
	pdf.Ln(10)
	pdf.SetFont("Helvetica", "", 11)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice #%d", b.ID))
	pdf.Ln(6)
	pdf.Cell(0, 6, "Issued: "+r.now().UTC().Format("2006-01-02"))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Bill to")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range billTo(b.User) {
		pdf.Cell(0, 6, tr(line))
		pdf.Ln(6)
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(100, 8, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 8, "Days", "1", 0, "C", true, 0, "")
	pdf.CellFormat(50, 8, "Amount", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	desc := fmt.Sprintf("%s rental %s - %s", b.Bike.Name,
		b.StartTime.UTC().Format("2006-01-02 15:04"), b.EndTime.UTC().Format("2006-01-02 15:04"))
	pdf.CellFormat(100, 8, tr(truncate(desc, 60)), "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 8, fmt.Sprintf("%d", b.Days), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 8, r.amount(b.Subtotal()), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	r.totalRow(pdf, "Subtotal", b.Subtotal(), false)
	r.totalRow(pdf, "Discount", -b.DiscountAmount, false)
	r.totalRow(pdf, "Total", b.TotalAmount, true)

	if b.StripePaymentID != "" {
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 5, "Payment reference: "+b.StripePaymentID)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *InvoiceRenderer) totalRow(pdf *gofpdf.Fpdf, label string, amount float64, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 11)
	pdf.CellFormat(130, 7, label, "", 0, "R", false, 0, "")
	pdf.CellFormat(50, 7, r.amount(amount), "", 1, "R", false, 0, "")
}

func (r *InvoiceRenderer) amount(v float64) string {
	return money.Format(v) + " " + r.currency
}

func billTo(u *domain.User) []string {
	lines := []string{safe(u.Name, u.Email), u.Email}
	if u.Phone != "" {
		lines = append(lines, u.Phone)
	}
	for _, a := range u.Addresses {
		if a.IsPrimary {
			lines = append(lines, a.OneLine())
			break
		}
	}
	return lines
}

func safe(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
