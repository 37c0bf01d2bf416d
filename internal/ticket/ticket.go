// Package ticket renders the printable artifacts of a booking: the payment
// QR image shown on the checkout screen and the counter receipt handed to
// walk-in customers.
package ticket

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/iliyamo/cinema-seat-checkout/internal/model"
)

// ErrNoQR is returned when a session carries nothing to encode.
var ErrNoQR = errors.New("payment session has no QR content")

const qrSize = 256

// QRImage returns the PNG of a payment session's QR code.  The image the
// backend rendered is preferred; otherwise the checkout URL (or the bank
// transfer content) is encoded locally.
func QRImage(s model.PaymentSession) ([]byte, error) {
	if s.QRBase64 != "" {
		png, err := decodeDataURL(s.QRBase64)
		if err != nil {
			return nil, fmt.Errorf("decode qr: %w", err)
		}
		return png, nil
	}
	content := s.CheckoutURL
	if content == "" {
		content = s.TransferContent
	}
	if content == "" {
		return nil, ErrNoQR
	}
	return qrcode.Encode(content, qrcode.Medium, qrSize)
}

// decodeDataURL accepts plain base64 or a data: URL.
func decodeDataURL(raw string) ([]byte, error) {
	if i := strings.Index(raw, ","); i >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
}

// Receipt is the data printed on a counter receipt.
type Receipt struct {
	ShowtimeID int64
	Customer   string
	IssuedAt   time.Time
	Booking    model.StaffBookingResult
}

// ReceiptPDF renders a single page A5 receipt with the booking code as a
// QR for entry verification.
func ReceiptPDF(r Receipt) ([]byte, error) {
	if r.Booking.BookingCode == "" {
		return nil, errors.New("receipt needs a booking code")
	}
	qr, err := qrcode.Encode(r.Booking.BookingCode, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode booking qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "BOX OFFICE RECEIPT", "", 1, "L", false, 0, "")
	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(12, pdf.GetY()+2, 136, pdf.GetY()+2)
	pdf.Ln(6)

	top := pdf.GetY()
	pdf.SetFont("Helvetica", "", 11)
	line := func(format string, args ...any) {
		pdf.CellFormat(80, 6, tr(fmt.Sprintf(format, args...)), "", 1, "L", false, 0, "")
	}
	line("Booking: %s", r.Booking.BookingCode)
	line("Showtime: #%d", r.ShowtimeID)
	if r.Customer != "" {
		line("Customer: %s", r.Customer)
	}
	line("Payment: %s (%s)", r.Booking.PaymentMethod, orDash(string(r.Booking.PaymentStatus)))
	if !r.IssuedAt.IsZero() {
		line("Issued: %s", r.IssuedAt.Format("02/01/2006 15:04"))
	}

	pdf.RegisterImageOptionsReader("qr", gofpdf.ImageOptions{ImageType: "png"}, bytes.NewReader(qr))
	pdf.ImageOptions("qr", 100, top, 36, 0, false, gofpdf.ImageOptions{ImageType: "png"}, 0, "")

	pdf.SetY(top + 42)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 8, "SEATS", "", 1, "L", true, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, s := range r.Booking.Seats {
		pdf.CellFormat(90, 6, tr(s.SeatLabel), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(s.FinalPrice.String()), "", 1, "R", false, 0, "")
	}
	pdf.Ln(2)
	pdf.Line(12, pdf.GetY(), 136, pdf.GetY())
	pdf.Ln(2)
	if r.Booking.TotalAmount != r.Booking.FinalAmount {
		pdf.CellFormat(90, 6, "Subtotal", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(r.Booking.TotalAmount.String()), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(90, 7, "Total", "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, tr(r.Booking.FinalAmount.String()), "", 1, "R", false, 0, "")

	pdf.SetY(196)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.CellFormat(0, 6, "Show this code at the entrance.", "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
