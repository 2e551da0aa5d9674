package services

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"SellerHub/models"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/mailer"
	"SellerHub/pkg/store"

	"github.com/rs/zerolog"
)

type EmailService struct {
	sender    mailer.Sender
	templates *mailer.Templates
	store     *store.Store
	woo       WooCommerceAPI
	storeName string
	log       zerolog.Logger
}

func NewEmailService(sender mailer.Sender, templates *mailer.Templates, st *store.Store, woo WooCommerceAPI, storeName string) *EmailService {
	return &EmailService{
		sender:    sender,
		templates: templates,
		store:     st,
		woo:       woo,
		storeName: storeName,
		log:       logger.Component("email"),
	}
}

type SendEmailInput struct {
	To           string      `json:"to"`
	ToName       string      `json:"to_name"`
	Template     string      `json:"template"`
	Platform     string      `json:"platform"`
	OrderID      string      `json:"order_id"`
	Data         mailer.Data `json:"data"`
	AddOrderNote bool        `json:"add_order_note"`
}

type SendEmailResult struct {
	Log     *models.EmailLog `json:"log"`
	Subject string           `json:"subject"`
	Warning string           `json:"warning,omitempty"`
}

func (s *EmailService) validate(in *SendEmailInput) error {
	in.To = strings.TrimSpace(in.To)
	addr, err := mail.ParseAddress(in.To)
	if err != nil {
		return invalid("invalid recipient %q", in.To)
	}
	in.To = addr.Address
	if in.ToName == "" {
		in.ToName = addr.Name
	}
	in.Template = strings.TrimSpace(in.Template)
	if in.Template == "" {
		in.Template = "custom"
	}
	if !s.templates.Has(in.Template) {
		return invalid("unknown template %q", in.Template)
	}
	if in.Template == "custom" && (strings.TrimSpace(in.Data.Subject) == "" || strings.TrimSpace(in.Data.Message) == "") {
		return invalid("custom emails need subject and message")
	}
	if in.Template != "custom" && in.OrderID == "" && in.Data.OrderID == "" {
		return invalid("template %s needs an order id", in.Template)
	}
	return nil
}

// Send renders, delivers and logs one email. signature is appended to the body.
func (s *EmailService) Send(ctx context.Context, in SendEmailInput, signature string) (*SendEmailResult, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	if s.sender == nil {
		return nil, ErrNotConfigured
	}
	data := in.Data
	data.OrderID = firstNonEmpty(data.OrderID, in.OrderID)
	data.CustomerName = firstNonEmpty(data.CustomerName, in.ToName)
	data.StoreName = firstNonEmpty(data.StoreName, s.storeName)
	data.Signature = firstNonEmpty(data.Signature, signature)

	r, err := s.templates.Render(in.Template, data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", in.Template, err)
	}

	entry := &models.EmailLog{
		To:       in.To,
		Subject:  r.Subject,
		Template: in.Template,
		Platform: in.Platform,
		OrderID:  data.OrderID,
		Status:   "sent",
	}
	sendErr := s.sender.Send(ctx, mailer.Message{To: in.To, ToName: in.ToName, Subject: r.Subject, HTML: r.HTML, Text: r.Text})
	if sendErr != nil {
		entry.Status = "failed"
		entry.Error = sendErr.Error()
	}
	if s.store != nil {
		if err := s.store.LogEmail(context.WithoutCancel(ctx), entry); err != nil {
			s.log.Error().Err(err).Str("to", in.To).Msg("email log write failed")
		}
	}
	if sendErr != nil {
		return nil, sendErr
	}

	res := &SendEmailResult{Log: entry, Subject: r.Subject}
	if in.AddOrderNote && in.Platform == PlatformWooCommerce && s.woo != nil {
		id, err := strconv.ParseInt(data.OrderID, 10, 64)
		if err == nil {
			note := fmt.Sprintf("Email \"%s\" sent to %s:\n\n%s", r.Subject, in.To, r.Text)
			_, err = s.woo.AddOrderNote(ctx, id, note, false)
		}
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", data.OrderID).Msg("mirror email as order note failed")
			res.Warning = "email sent, but the order note could not be added: " + err.Error()
		}
	}
	return res, nil
}

func (s *EmailService) Templates() []string {
	return s.templates.Names()
}

func (s *EmailService) Logs(ctx context.Context, limit int) ([]models.EmailLog, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListEmailLogs(ctx, limit)
}
