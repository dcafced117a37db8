package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"stagepass/internal/shared/config"
	"stagepass/pkg/logger"
)

// EmailService turns order events into buyer emails
type EmailService interface {
	SendOrderEmail(ctx context.Context, event *OrderEvent) error
}

// SMTPEmailService delivers over plain SMTP with STARTTLS
type SMTPEmailService struct {
	config *config.EmailConfig
	logger *logger.Logger
}

func NewSMTPEmailService(cfg *config.EmailConfig) (*SMTPEmailService, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" || cfg.FromEmail == "" {
		return nil, fmt.Errorf("incomplete SMTP configuration")
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("SMTP port must be between 1 and 65535")
	}
	return &SMTPEmailService{config: cfg, logger: logger.GetDefault()}, nil
}

func (s *SMTPEmailService) SendOrderEmail(ctx context.Context, event *OrderEvent) error {
	subject, htmlBody, textBody := renderOrderEmail(event)

	message := s.buildMessage(event.BuyerEmail, subject, htmlBody, textBody)

	auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	if err := s.sendWithSTARTTLS(addr, auth, event.BuyerEmail, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("order email sent",
		"type", string(event.Type),
		"order_reference", event.OrderReference)
	return nil
}

// sendWithSTARTTLS connects in the clear and upgrades before authenticating
func (s *SMTPEmailService) sendWithSTARTTLS(addr string, auth smtp.Auth, to string, message []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Quit()

	tlsconfig := &tls.Config{
		InsecureSkipVerify: false,
		ServerName:         s.config.Host,
	}
	if err = client.StartTLS(tlsconfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err = client.Mail(s.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

func (s *SMTPEmailService) buildMessage(to, subject, htmlBody, textBody string) []byte {
	headers := make(map[string]string)
	headers["From"] = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Date"] = time.Now().Format(time.RFC1123Z)

	boundary := "boundary_" + strconv.FormatInt(time.Now().UnixNano(), 10)
	headers["Content-Type"] = fmt.Sprintf("multipart/alternative; boundary=%s", boundary)

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n"

	if textBody != "" {
		message += fmt.Sprintf("--%s\r\n", boundary)
		message += "Content-Type: text/plain; charset=UTF-8\r\n"
		message += "\r\n"
		message += textBody + "\r\n"
	}

	if htmlBody != "" {
		message += fmt.Sprintf("--%s\r\n", boundary)
		message += "Content-Type: text/html; charset=UTF-8\r\n"
		message += "\r\n"
		message += htmlBody + "\r\n"
	}

	message += fmt.Sprintf("--%s--\r\n", boundary)
	return []byte(message)
}

func renderOrderEmail(event *OrderEvent) (subject, htmlBody, textBody string) {
	seats := strings.Join(event.SeatLabels, ", ")

	switch event.Type {
	case OrderEventPaid:
		subject = fmt.Sprintf("Your tickets for %s (%s)", event.EventName, event.OrderReference)
		htmlBody = fmt.Sprintf(`
			<h2>Payment received</h2>
			<p>Hi %s,</p>
			<p>Your order <strong>%s</strong> for <strong>%s</strong> is confirmed.</p>
			<p>Seats: %s</p>
			<p>Total: %.2f %s</p>
			<p>Your tickets are attached to your account. See you at the show!</p>
		`, event.BuyerName, event.OrderReference, event.EventName, seats, event.TotalAmount, event.Currency)
		textBody = fmt.Sprintf(
			"Hi %s,\n\nYour order %s for %s is confirmed.\nSeats: %s\nTotal: %.2f %s\n\nSee you at the show!",
			event.BuyerName, event.OrderReference, event.EventName, seats, event.TotalAmount, event.Currency)

	case OrderEventCancelled:
		subject = fmt.Sprintf("Order %s cancelled", event.OrderReference)
		htmlBody = fmt.Sprintf(`
			<h2>Order cancelled</h2>
			<p>Hi %s,</p>
			<p>Your order <strong>%s</strong> for <strong>%s</strong> was cancelled (%s).</p>
			<p>Your seats have been released. No charge was made.</p>
		`, event.BuyerName, event.OrderReference, event.EventName, event.Reason)
		textBody = fmt.Sprintf(
			"Hi %s,\n\nYour order %s for %s was cancelled (%s).\nYour seats have been released. No charge was made.",
			event.BuyerName, event.OrderReference, event.EventName, event.Reason)

	case OrderEventRefunded:
		subject = fmt.Sprintf("Refund processed for order %s", event.OrderReference)
		htmlBody = fmt.Sprintf(`
			<h2>Refund processed</h2>
			<p>Hi %s,</p>
			<p>A refund of <strong>%.2f %s</strong> was processed for order <strong>%s</strong>.</p>
			<p>The funds should reach your account within a few business days.</p>
		`, event.BuyerName, event.TotalAmount, event.Currency, event.OrderReference)
		textBody = fmt.Sprintf(
			"Hi %s,\n\nA refund of %.2f %s was processed for order %s.\nThe funds should reach your account within a few business days.",
			event.BuyerName, event.TotalAmount, event.Currency, event.OrderReference)

	default:
		subject = fmt.Sprintf("Update on order %s", event.OrderReference)
		htmlBody = fmt.Sprintf("<p>Hi %s,</p><p>There is an update on your order %s.</p>",
			event.BuyerName, event.OrderReference)
		textBody = fmt.Sprintf("Hi %s,\n\nThere is an update on your order %s.",
			event.BuyerName, event.OrderReference)
	}
	return subject, htmlBody, textBody
}

// MockEmailService logs instead of sending, for development and tests
type MockEmailService struct {
	logger *logger.Logger
}

func NewMockEmailService() *MockEmailService {
	return &MockEmailService{logger: logger.GetDefault()}
}

func (s *MockEmailService) SendOrderEmail(ctx context.Context, event *OrderEvent) error {
	s.logger.Info("mock email",
		"type", string(event.Type),
		"to", event.BuyerEmail,
		"order_reference", event.OrderReference)
	return nil
}
