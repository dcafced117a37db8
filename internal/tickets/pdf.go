package tickets

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFTicket is one page of a printable ticket bundle
type PDFTicket struct {
	TicketNumber string
	EventName    string
	VenueName    string
	StartsAt     time.Time
	SeatLabel    string
	Category     string
	Price        float64
	Currency     string
	BuyerName    string
	QRCodePNG    []byte
}

// RenderBundle produces one PDF with a page per ticket, QR code on top and
// the seat details below.
func RenderBundle(pdfTickets []PDFTicket) ([]byte, error) {
	if len(pdfTickets) == 0 {
		return nil, fmt.Errorf("no tickets to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")

	for _, t := range pdfTickets {
		pdf.AddPage()

		if len(t.QRCodePNG) > 0 {
			imgOpts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
			imgName := "qr_" + t.TicketNumber
			pdf.RegisterImageOptionsReader(imgName, imgOpts, bytes.NewReader(t.QRCodePNG))

			qrX := (210.0 - 100.0) / 2
			pdf.ImageOptions(imgName, qrX, 20, 100, 100, false, imgOpts, 0, "")
			pdf.SetY(125)
		} else {
			pdf.SetY(30)
		}

		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.5)
		pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
		pdf.Ln(8)

		pdf.SetFont("Arial", "B", 20)
		pdf.SetX(20)
		eventName := t.EventName
		if len(eventName) > 40 {
			eventName = eventName[:37] + "..."
		}
		pdf.CellFormat(0, 10, eventName, "", 1, "L", false, 0, "")

		pdf.SetFont("Arial", "", 14)
		pdf.SetX(20)
		pdf.CellFormat(0, 8, t.VenueName, "", 1, "L", false, 0, "")
		pdf.SetX(20)
		pdf.CellFormat(0, 8, t.StartsAt.Format("January 2, 2006 at 3:04PM"), "", 1, "L", false, 0, "")
		pdf.Ln(4)

		writeDetail(pdf, "Guest:", t.BuyerName)
		writeDetail(pdf, "Seat:", t.SeatLabel)
		writeDetail(pdf, "Category:", t.Category)
		writeDetail(pdf, "Price:", fmt.Sprintf("%.2f %s", t.Price, t.Currency))

		pdf.Ln(8)
		pdf.SetFont("Arial", "I", 12)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 8, "Ticket: "+t.TicketNumber, "0", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.MultiCell(0, 6, "Please bring this ticket (PDF file or image) to the event.\nScan the QR code to check in at the entrance.", "0", "C", false)
		pdf.SetTextColor(0, 0, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDetail(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "", 14)
	pdf.SetX(20)
	pdf.CellFormat(40, 9, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 9, value, "", 1, "L", false, 0, "")
}
