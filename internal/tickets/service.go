package tickets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"stagepass/internal/shared/apperr"
	"stagepass/pkg/logger"

	"github.com/google/uuid"
)

// OrderInfo is the slice of an order that ticket issuance and rendering need.
// The local type keeps this package from importing the orders package.
type OrderInfo struct {
	Reference string
	Status    string
	BuyerName string
	EventID   uuid.UUID
	Currency  string
}

type OrderReader interface {
	OrderInfo(ctx context.Context, orderID uuid.UUID) (*OrderInfo, error)
}

// EventInfo is the event header printed on tickets
type EventInfo struct {
	Name      string
	VenueName string
	StartsAt  time.Time
}

type EventReader interface {
	EventInfo(ctx context.Context, eventID uuid.UUID) (*EventInfo, error)
}

// Service interface defines the contract for ticket operations
type Service interface {
	Issue(ctx context.Context, req *IssueRequest) ([]Ticket, error)
	TicketsForOrder(ctx context.Context, orderID uuid.UUID) ([]TicketResponse, error)
	TicketQR(ctx context.Context, ticketID uuid.UUID) ([]byte, error)
	BundlePDF(ctx context.Context, orderID uuid.UUID) ([]byte, string, error)
	VoidTickets(ctx context.Context, orderID uuid.UUID) (int64, error)
	VerifyQR(raw []byte) (*QRPayload, error)
}

type service struct {
	repo      Repository
	orderInfo OrderReader
	eventInfo EventReader
	signer    *QRSigner
	logger    *logger.Logger
}

func NewService(repo Repository, orderInfo OrderReader, eventInfo EventReader, signer *QRSigner) Service {
	return &service{
		repo:      repo,
		orderInfo: orderInfo,
		eventInfo: eventInfo,
		signer:    signer,
		logger:    logger.GetDefault(),
	}
}

// Issue creates one ticket per seat for a paid order. Calling it again for
// the same order returns the tickets already issued.
func (s *service) Issue(ctx context.Context, req *IssueRequest) ([]Ticket, error) {
	if len(req.Lines) == 0 {
		return nil, apperr.Validation("no seats to issue tickets for")
	}

	existing, err := s.repo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to check existing tickets for order %s", req.OrderID)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	info, err := s.orderInfo.OrderInfo(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if info.Status != "PAID" {
		return nil, apperr.PreconditionFailed("order %s is %s, tickets require a paid order", req.OrderID, info.Status)
	}

	now := time.Now()
	batch := make([]Ticket, 0, len(req.Lines))
	for _, line := range req.Lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		var seatRef *uuid.UUID
		if line.SeatID != uuid.Nil {
			seatID := line.SeatID
			seatRef = &seatID
		}
		// A quantity line yields one credential per admission
		for i := 0; i < qty; i++ {
			number, err := s.allocateNumber(ctx, req.TicketPrefix, line.Category, line.SeatLabel)
			if err != nil {
				return nil, err
			}
			batch = append(batch, Ticket{
				ID:        uuid.New(),
				OrderID:   req.OrderID,
				EventID:   req.EventID,
				SeatID:    seatRef,
				Number:    number,
				SeatLabel: line.SeatLabel,
				Category:  line.Category,
				Price:     line.Price,
				Status:    StatusIssued,
				IssuedAt:  now,
			})
		}
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, apperr.Persistence(err, "failed to issue tickets for order %s", req.OrderID)
	}

	s.logger.Info("tickets issued",
		"order_id", req.OrderID.String(),
		"count", len(batch))
	return batch, nil
}

// TicketsForOrder lists the order's tickets. Orders that never reached PAID
// have nothing admissible to show, so they answer not found rather than an
// empty list.
func (s *service) TicketsForOrder(ctx context.Context, orderID uuid.UUID) ([]TicketResponse, error) {
	info, err := s.orderInfo.OrderInfo(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if info.Status != "PAID" {
		return nil, apperr.NotFound("no tickets available for order %s", orderID)
	}

	list, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperr.Persistence(err, "failed to load tickets for order %s", orderID)
	}

	resp := make([]TicketResponse, 0, len(list))
	for i := range list {
		resp = append(resp, list[i].ToResponse())
	}
	return resp, nil
}

func (s *service) TicketQR(ctx context.Context, ticketID uuid.UUID) ([]byte, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperr.NotFound("ticket %s not found", ticketID)
	}
	if ticket.IsVoid() {
		return nil, apperr.InvalidState("ticket %s has been voided", ticketID)
	}

	info, err := s.orderInfo.OrderInfo(ctx, ticket.OrderID)
	if err != nil {
		return nil, err
	}

	png, err := s.signer.EncodePNG(s.signer.Payload(ticket, info.Reference, info.BuyerName))
	if err != nil {
		return nil, apperr.Provider(err, "failed to render ticket qr")
	}
	return png, nil
}

// BundlePDF renders all issued tickets for the order into one printable PDF
func (s *service) BundlePDF(ctx context.Context, orderID uuid.UUID) ([]byte, string, error) {
	info, err := s.orderInfo.OrderInfo(ctx, orderID)
	if err != nil {
		return nil, "", err
	}

	list, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, "", apperr.Persistence(err, "failed to load tickets for order %s", orderID)
	}

	var issued []Ticket
	for _, t := range list {
		if !t.IsVoid() {
			issued = append(issued, t)
		}
	}
	if len(issued) == 0 {
		return nil, "", apperr.NotFound("no issued tickets for order %s", orderID)
	}

	event, err := s.eventInfo.EventInfo(ctx, issued[0].EventID)
	if err != nil {
		return nil, "", err
	}

	pages := make([]PDFTicket, 0, len(issued))
	for i := range issued {
		t := &issued[i]
		png, err := s.signer.EncodePNG(s.signer.Payload(t, info.Reference, info.BuyerName))
		if err != nil {
			return nil, "", apperr.Provider(err, "failed to render ticket qr")
		}
		pages = append(pages, PDFTicket{
			TicketNumber: t.Number,
			EventName:    event.Name,
			VenueName:    event.VenueName,
			StartsAt:     event.StartsAt,
			SeatLabel:    t.SeatLabel,
			Category:     t.Category,
			Price:        t.Price,
			Currency:     info.Currency,
			BuyerName:    info.BuyerName,
			QRCodePNG:    png,
		})
	}

	pdfBytes, err := RenderBundle(pages)
	if err != nil {
		return nil, "", apperr.Provider(err, "failed to render ticket bundle")
	}
	filename := fmt.Sprintf("tickets-%s.pdf", info.Reference)
	return pdfBytes, filename, nil
}

func (s *service) VoidTickets(ctx context.Context, orderID uuid.UUID) (int64, error) {
	voided, err := s.repo.VoidByOrderID(ctx, orderID)
	if err != nil {
		return 0, apperr.Persistence(err, "failed to void tickets for order %s", orderID)
	}
	if voided > 0 {
		s.logger.Info("tickets voided", "order_id", orderID.String(), "count", voided)
	}
	return voided, nil
}

func (s *service) VerifyQR(raw []byte) (*QRPayload, error) {
	payload, err := s.signer.Verify(raw)
	if err != nil {
		return nil, apperr.Validation("invalid ticket qr payload")
	}
	return payload, nil
}

// allocateNumber builds {prefix}-{category}-{seat}-{8 hex} and retries the
// random suffix on the rare collision.
func (s *service) allocateNumber(ctx context.Context, prefix, category, seatLabel string) (string, error) {
	discriminator := compactLabel(seatLabel)

	for attempt := 0; attempt < 5; attempt++ {
		suffix := make([]byte, 4)
		if _, err := rand.Read(suffix); err != nil {
			return "", apperr.Persistence(err, "failed to generate ticket number")
		}
		number := strings.ToUpper(fmt.Sprintf("%s-%s-%s-%s",
			prefix, category, discriminator, hex.EncodeToString(suffix)))

		exists, err := s.repo.NumberExists(ctx, number)
		if err != nil {
			return "", apperr.Persistence(err, "failed to check ticket number")
		}
		if !exists {
			return number, nil
		}
	}
	return "", apperr.Persistence(nil, "could not allocate a unique ticket number")
}

func compactLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "GA"
	}
	return b.String()
}
