// Package ticket renders the claim ticket handed to drop-off customers.
package ticket

import (
	"bytes"
	"fmt"
	"strings"

	"giftwrap/internal/model"
	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Shop is printed in the ticket header.
type Shop struct {
	Name    string
	Address string
	Phone   string
}

// QRPayload is what staff scan to find the booking: reference|date|time|gifts.
func QRPayload(b *model.Booking) string {
	return fmt.Sprintf("%s|%s|%s|%d", b.Reference(), b.Date, b.Time, b.NumberOfGifts)
}

// Render builds an A5 PDF ticket for b listing its gifts.
func Render(shop Shop, b *model.Booking, items []model.WorkItem) ([]byte, error) {
	png, err := qrcode.Encode(QRPayload(b), qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Gift wrapping ticket "+b.Reference(), false)
	pdf.AddPage()

	name := shop.Name
	if name == "" {
		name = "Gift Wrapping"
	}
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, name)
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	if contact := strings.TrimSpace(shop.Address + "  " + shop.Phone); contact != "" {
		pdf.Cell(0, 6, contact)
		pdf.Ln(10)
	}

	pdf.SetFont("Arial", "B", 13)
	pdf.Cell(0, 8, b.Reference())
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 11)
	lines := []string{
		"Customer: " + b.CustomerName,
		"Drop-off: " + b.Date + " " + b.Time,
		fmt.Sprintf("Gifts: %d", b.NumberOfGifts),
		"Handover: " + handover(b.Category),
	}
	for _, l := range lines {
		pdf.Cell(0, 7, l)
		pdf.Ln(7)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("qr", 100, 30, 38, 38, false, opts, 0, "")

	if len(items) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 7, "Items")
		pdf.Ln(7)
		pdf.SetFont("Arial", "", 10)
		for i, it := range items {
			pdf.CellFormat(10, 6, fmt.Sprintf("%d.", i+1), "", 0, "R", false, 0, "")
			pdf.CellFormat(0, 6, it.Label, "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func handover(c model.Category) string {
	switch c {
	case model.CategoryDelivery:
		return "delivered to recipient"
	case model.CategoryOnsite:
		return "wrapped on site"
	default:
		return "pickup at the counter before closing"
	}
}
