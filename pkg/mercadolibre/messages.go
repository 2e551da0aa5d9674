package mercadolibre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// MaxMessageLength is the post-sale message limit enforced by MercadoLibre.
const MaxMessageLength = 350

// FlexID decodes ids that the API sends either as JSON numbers or strings.
type FlexID string

func (f *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexID(n.String())
	return nil
}

type Participant struct {
	UserID FlexID `json:"user_id"`
}

type MessageDate struct {
	Received  *time.Time `json:"received"`
	Available *time.Time `json:"available"`
	Notified  *time.Time `json:"notified"`
	Created   *time.Time `json:"created"`
	Read      *time.Time `json:"read"`
}

type Moderation struct {
	Status         string     `json:"status"`
	Reason         string     `json:"reason"`
	Source         string     `json:"source"`
	ModerationDate *time.Time `json:"moderation_date"`
}

type MessageResource struct {
	ID   FlexID `json:"id"`
	Name string `json:"name"`
}

type Message struct {
	ID          FlexID            `json:"id"`
	From        Participant       `json:"from"`
	To          Participant       `json:"to"`
	Status      string            `json:"status"`
	Text        string            `json:"text"`
	MessageDate MessageDate       `json:"message_date"`
	Moderation  Moderation        `json:"message_moderation"`
	Attachments json.RawMessage   `json:"message_attachments"`
	Resources   []MessageResource `json:"message_resources"`
}

// SentAt picks the best available timestamp for ordering.
func (m Message) SentAt() time.Time {
	for _, t := range []*time.Time{m.MessageDate.Created, m.MessageDate.Received, m.MessageDate.Available} {
		if t != nil && !t.IsZero() {
			return *t
		}
	}
	return time.Time{}
}

// PackID returns the pack this message belongs to, if the API told us.
func (m Message) PackID() string {
	for _, r := range m.Resources {
		if r.Name == "packs" && r.ID != "" {
			return string(r.ID)
		}
	}
	return ""
}

type MessagesPage struct {
	Paging   Paging    `json:"paging"`
	Messages []Message `json:"messages"`
}

func (c *Client) GetPackMessages(ctx context.Context, packID string, offset, limit int) (*MessagesPage, error) {
	if packID == "" {
		return nil, fmt.Errorf("pack id is required")
	}
	seller, err := c.ResolveSellerID(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{}
	q.Set("tag", "post_sale")
	q.Set("mark_as_read", "false")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(max(offset, 0)))

	var page MessagesPage
	path := fmt.Sprintf("/messages/packs/%s/sellers/%s", url.PathEscape(packID), url.PathEscape(seller))
	if err := c.get(ctx, path, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAllPackMessages pages through the whole thread.
func (c *Client) GetAllPackMessages(ctx context.Context, packID string, pageSize int) ([]Message, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	var all []Message
	offset := 0
	for {
		page, err := c.GetPackMessages(ctx, packID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Messages...)
		offset += len(page.Messages)
		if len(page.Messages) == 0 || offset >= page.Paging.Total {
			return all, nil
		}
	}
}

// GetMessage fetches one message by id, as referenced by a "messages" notification.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id is required")
	}
	q := url.Values{}
	q.Set("tag", "post_sale")
	var m Message
	if err := c.get(ctx, "/messages/"+url.PathEscape(messageID), q, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

type sendMessageRequest struct {
	From Participant `json:"from"`
	To   Participant `json:"to"`
	Text string      `json:"text"`
}

// SendMessage posts a seller message into the pack conversation.
func (c *Client) SendMessage(ctx context.Context, packID, buyerID, text string) (*Message, error) {
	text = strings.TrimSpace(text)
	switch {
	case packID == "":
		return nil, fmt.Errorf("pack id is required")
	case buyerID == "":
		return nil, fmt.Errorf("buyer id is required")
	case text == "":
		return nil, fmt.Errorf("text is required")
	case len([]rune(text)) > MaxMessageLength:
		return nil, fmt.Errorf("text exceeds %d characters", MaxMessageLength)
	}
	seller, err := c.ResolveSellerID(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("tag", "post_sale")
	body := sendMessageRequest{
		From: Participant{UserID: FlexID(seller)},
		To:   Participant{UserID: FlexID(buyerID)},
		Text: text,
	}
	var m Message
	path := fmt.Sprintf("/messages/packs/%s/sellers/%s", url.PathEscape(packID), url.PathEscape(seller))
	if err := c.post(ctx, path, q, body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
