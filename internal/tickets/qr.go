package tickets

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPayload is the JSON embedded in a ticket's QR code. Checksum is an
// HMAC-SHA256 over the other fields, so gate scanners can verify offline
// with the shared signing secret.
type QRPayload struct {
	TicketNumber string `json:"ticket_number"`
	OrderRef     string `json:"order_reference"`
	EventID      string `json:"event_id"`
	SeatLabel    string `json:"seat_label"`
	Category     string `json:"category"`
	Holder       string `json:"holder"`
	IssuedAt     int64  `json:"issued_at"`
	Checksum     string `json:"checksum"`
}

// QRSigner builds and verifies signed QR payloads
type QRSigner struct {
	secret []byte
	size   int
}

func NewQRSigner(secret string, size int) *QRSigner {
	if size <= 0 {
		size = 256
	}
	return &QRSigner{secret: []byte(secret), size: size}
}

// Payload builds the signed payload for a ticket. The holder name rides
// along so gate staff can match the credential to an ID.
func (q *QRSigner) Payload(t *Ticket, orderRef, holder string) QRPayload {
	p := QRPayload{
		TicketNumber: t.Number,
		OrderRef:     orderRef,
		EventID:      t.EventID.String(),
		SeatLabel:    t.SeatLabel,
		Category:     t.Category,
		Holder:       holder,
		IssuedAt:     t.IssuedAt.Unix(),
	}
	p.Checksum = q.checksum(&p)
	return p
}

// EncodePNG renders the signed payload as a QR PNG
func (q *QRSigner) EncodePNG(payload QRPayload) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal qr payload: %w", err)
	}
	png, err := qrcode.Encode(string(raw), qrcode.Medium, q.size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode qr code: %w", err)
	}
	return png, nil
}

// Verify parses a scanned payload and checks its checksum in constant time
func (q *QRSigner) Verify(raw []byte) (*QRPayload, error) {
	var p QRPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("unreadable qr payload")
	}
	expected := q.checksum(&p)
	if !hmac.Equal([]byte(expected), []byte(p.Checksum)) {
		return nil, fmt.Errorf("qr checksum mismatch")
	}
	return &p, nil
}

func (q *QRSigner) checksum(p *QRPayload) string {
	canonical := strings.Join([]string{
		p.TicketNumber,
		p.OrderRef,
		p.EventID,
		p.SeatLabel,
		p.Category,
		p.Holder,
		strconv.FormatInt(p.IssuedAt, 10),
	}, "|")
	mac := hmac.New(sha256.New, q.secret)
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
