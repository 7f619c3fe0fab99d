package notifications

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/db/models"
	"github.com/mercadito-pesca/mercadito-backend/pkg/enums"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailNotifier sends plain-text mail over SMTP.
type EmailNotifier struct {
	from   string
	sender mailSender
	logg   *logger.Logger
}

func NewEmailNotifier(cfg config.SMTPConfig, logg *logger.Logger) (*EmailNotifier, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host required")
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return newEmailNotifier(cfg.From, dialer, logg)
}

func newEmailNotifier(from string, sender mailSender, logg *logger.Logger) (*EmailNotifier, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &EmailNotifier{from: from, sender: sender, logg: logg}, nil
}

func (n *EmailNotifier) Channel() enums.NotificationChannel {
	return enums.ChannelEmail
}

func (n *EmailNotifier) Reaches(user *models.User) bool {
	return user != nil && strings.TrimSpace(user.Email) != ""
}

func (n *EmailNotifier) SendOrderUpdate(ctx context.Context, user *models.User, order *models.Order, action string) bool {
	if !n.Reaches(user) || order == nil {
		return false
	}
	msg := n.message(user, orderSubject(order, action), orderText(user, order, action))
	return n.send(ctx, msg)
}

func (n *EmailNotifier) SendQuote(ctx context.Context, user *models.User, quote *models.Quote, pdf []byte) bool {
	if !n.Reaches(user) || quote == nil {
		return false
	}
	msg := n.message(user, quoteSubject(quote), quoteText(user, quote))
	if len(pdf) > 0 {
		msg.Attach(QuoteFilename(quote.ID), gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(pdf)
			return err
		}), gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}))
	}
	return n.send(ctx, msg)
}

func (n *EmailNotifier) message(user *models.User, subject, body string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetAddressHeader("To", user.Email, user.DisplayName)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return msg
}

func (n *EmailNotifier) send(ctx context.Context, msg *gomail.Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logg.Error(ctx, "email.send_panic", fmt.Errorf("%v", r))
			ok = false
		}
	}()
	if err := n.sender.DialAndSend(msg); err != nil {
		n.logg.Error(ctx, "email.send_failed", err)
		return false
	}
	return true
}
