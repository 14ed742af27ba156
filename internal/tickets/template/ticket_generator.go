package template

import (
	"bytes"
	"fmt"
	"image/png"

	"ms-event-tickets/internal/models"

	"github.com/signintech/gopdf"
	"golang.org/x/image/font/gofont/goregular"
)

const fontName = "goregular"

type TicketPDFGenerator struct{}

func NewTicketPDFGenerator() *TicketPDFGenerator {
	return &TicketPDFGenerator{}
}

// Generate renders a one-page A4 ticket. qrCode is an optional PNG.
func (g *TicketPDFGenerator) Generate(ticket models.Ticket, qrCode []byte) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := pdf.AddTTFFontData(fontName, goregular.TTF); err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	if err := pdf.SetFont(fontName, "", 14); err != nil {
		return nil, fmt.Errorf("failed to set font: %w", err)
	}

	addHeader(pdf, ticket)

	pdf.SetY(90)
	addTicketInfo(pdf, ticket)

	if len(qrCode) > 0 {
		pdf.SetY(pdf.GetY() + 20)
		addQRCode(pdf, qrCode)
	}

	pdf.SetY(760)
	addFooter(pdf)

	var buf bytes.Buffer
	if err := pdf.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func addHeader(pdf *gopdf.GoPdf, ticket models.Ticket) {
	pdf.SetX(40)
	pdf.SetY(40)
	title := "EVENT TICKET"
	if ticket.Event != nil && ticket.Event.Name != "" {
		title = ticket.Event.Name
	}
	pdf.Cell(nil, title)
}

type field struct {
	Label string
	Value string
}

func addTicketInfo(pdf *gopdf.GoPdf, ticket models.Ticket) {
	info := []field{
		{"Ticket ID", ticket.ID},
		{"Code", ticket.Code},
		{"Status", string(ticket.Status)},
		{"Price", fmt.Sprintf("%.2f", ticket.Price)},
		{"Purchased", ticket.PurchaseDate.Format("2006-01-02 15:04")},
	}
	if ticket.OwnerName != nil {
		info = append(info, field{"Holder", *ticket.OwnerName})
	}
	if ticket.Event != nil {
		info = append(info,
			field{"Venue", ticket.Event.Location},
			field{"Date", ticket.Event.Date.Format("2006-01-02 15:04")},
		)
	}

	for _, item := range info {
		pdf.SetX(40)
		pdf.Cell(nil, item.Label+": "+item.Value)
		pdf.Br(20)
	}
}

func addQRCode(pdf *gopdf.GoPdf, qrCode []byte) {
	img, err := png.Decode(bytes.NewReader(qrCode))
	if err != nil {
		pdf.SetX(40)
		pdf.Cell(nil, "Failed to load QR code")
		return
	}

	rect := &gopdf.Rect{W: 150, H: 150}
	if err := pdf.ImageFrom(img, 40, pdf.GetY(), rect); err != nil {
		pdf.SetX(40)
		pdf.Cell(nil, "Failed to draw QR code")
	}
}

func addFooter(pdf *gopdf.GoPdf) {
	pdf.SetX(40)
	pdf.Cell(nil, "Present this ticket at the entrance. Each code admits once.")
}
