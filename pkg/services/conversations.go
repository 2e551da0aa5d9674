package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"SellerHub/models"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"
	"SellerHub/pkg/store"

	"github.com/rs/zerolog"
)

const (
	SourceAPI   = "api"
	SourceCache = "cache"
)

// ConversationService reads threads from the store and falls back to it
// whenever the live API fails.
type ConversationService struct {
	store      *store.Store
	sync       *SyncService
	ml         MercadoLibreAPI
	hub        *notify.Hub
	staleAfter time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewConversationService(st *store.Store, sync *SyncService, ml MercadoLibreAPI, hub *notify.Hub, staleAfter time.Duration) *ConversationService {
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &ConversationService{
		store:      st,
		sync:       sync,
		ml:         ml,
		hub:        hub,
		staleAfter: staleAfter,
		log:        logger.Component("conversations"),
		now:        time.Now,
	}
}

type ConversationView struct {
	models.Conversation
	LastMessageAgo string `json:"last_message_ago"`
}

type ConversationList struct {
	Conversations []ConversationView `json:"conversations"`
	PageInfo
	Source  string       `json:"source"`
	Warning string       `json:"warning,omitempty"`
	Sync    *SyncSummary `json:"sync,omitempty"`
}

type ListConversationsInput struct {
	Search     string
	UnreadOnly bool
	Page       int
	PerPage    int
	Refresh    bool
	Days       int
}

func (s *ConversationService) List(ctx context.Context, in ListConversationsInput) (*ConversationList, error) {
	out := &ConversationList{Source: SourceCache}
	if in.Refresh {
		sum, err := s.sync.SyncRecent(ctx, SyncOptions{Days: in.Days})
		switch {
		case err == nil:
			out.Source = SourceAPI
			out.Sync = sum
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			s.log.Warn().Err(err).Msg("live refresh failed, serving cached conversations")
			out.Warning = "live refresh failed, showing cached conversations: " + err.Error()
		}
	}

	page := max(in.Page, 1)
	perPage := in.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	rows, total, err := s.store.ListConversations(ctx, store.ConversationFilter{
		Search:     in.Search,
		UnreadOnly: in.UnreadOnly,
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out.Conversations = make([]ConversationView, 0, len(rows))
	for _, c := range rows {
		v := ConversationView{Conversation: c}
		if c.LastMessageDate != nil {
			v.LastMessageAgo = FormatMessageDate(*c.LastMessageDate, now)
		}
		out.Conversations = append(out.Conversations, v)
	}
	out.PageInfo = PageInfo{Page: page, PerPage: perPage, Total: int(total), TotalPages: (int(total) + perPage - 1) / perPage}
	return out, nil
}

type MessageView struct {
	models.Message
	FromSeller bool   `json:"from_seller"`
	SentAgo    string `json:"sent_ago"`
}

type Thread struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []MessageView        `json:"messages"`
	Source       string               `json:"source"`
	Warning      string               `json:"warning,omitempty"`
}

func (s *ConversationService) stale(c *models.Conversation) bool {
	return c.LastSyncedAt == nil || s.now().Sub(*c.LastSyncedAt) > s.staleAfter
}

// Thread serves the cached thread while it is fresh. Stale, missing or
// forced reads re-sync first; if that fails the cached rows are returned
// with a warning, or the error when nothing is cached.
func (s *ConversationService) Thread(ctx context.Context, packID string, refresh bool) (*Thread, error) {
	packID = strings.TrimSpace(packID)
	if packID == "" {
		return nil, invalid("pack id is required")
	}
	conv, err := s.store.GetConversationByPack(ctx, packID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	out := &Thread{Source: SourceCache}
	if conv == nil || refresh || s.stale(conv) {
		res, err := s.sync.SyncConversation(ctx, packID, SyncHint{})
		switch {
		case err == nil:
			conv = res.Conversation
			out.Source = SourceAPI
		case conv == nil:
			return nil, err
		case errors.Is(err, ErrNotConfigured):
		default:
			s.log.Warn().Err(err).Str("pack_id", packID).Msg("thread refresh failed, serving cache")
			out.Warning = "could not refresh from MercadoLibre, showing cached messages: " + err.Error()
		}
	}

	msgs, err := s.store.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out.Conversation = conv
	out.Messages = make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		out.Messages = append(out.Messages, MessageView{
			Message:    m,
			FromSeller: m.FromSeller(conv.SellerID),
			SentAgo:    FormatMessageDate(m.SentAt, now),
		})
	}
	return out, nil
}

// Send relays text to the buyer of packID and stores the sent message.
func (s *ConversationService) Send(ctx context.Context, packID, text string) (*models.Message, error) {
	packID = strings.TrimSpace(packID)
	text = strings.TrimSpace(text)
	switch {
	case packID == "":
		return nil, invalid("pack id is required")
	case text == "":
		return nil, invalid("message text is required")
	case len([]rune(text)) > mercadolibre.MaxMessageLength:
		return nil, invalid("message exceeds %d characters", mercadolibre.MaxMessageLength)
	}
	if s.ml == nil {
		return nil, ErrNotConfigured
	}

	conv, err := s.store.GetConversationByPack(ctx, packID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if conv == nil || conv.BuyerID == "" {
		res, err := s.sync.SyncConversation(ctx, packID, SyncHint{})
		if err != nil {
			return nil, err
		}
		conv = res.Conversation
	}
	if conv.BuyerID == "" {
		return nil, invalid("buyer of pack %s is unknown", packID)
	}

	sent, err := s.ml.SendMessage(ctx, packID, conv.BuyerID, text)
	if err != nil {
		return nil, err
	}
	row := messageRow(*sent, packID, s.now())
	row.FromUserID = firstNonEmpty(row.FromUserID, conv.SellerID)
	row.ToUserID = firstNonEmpty(row.ToUserID, conv.BuyerID)
	row.Text = firstNonEmpty(row.Text, text)

	if _, err := s.store.UpsertMessages(ctx, conv.ID, []models.Message{row}); err != nil {
		// Already delivered upstream; the next sync will pick it up.
		s.log.Error().Err(err).Str("pack_id", packID).Msg("store sent message failed")
	} else if _, err := s.store.RecountConversation(ctx, conv.ID, conv.SellerID); err != nil {
		s.log.Warn().Err(err).Str("pack_id", packID).Msg("recount after send failed")
	}

	row.ConversationID = conv.ID
	s.hub.Publish(notify.Event{
		Type:     notify.EventMessageSent,
		Platform: PlatformMercadoLibre,
		Data:     map[string]any{"pack_id": packID, "message_id": row.MessageID, "text": row.Text},
	})
	return &row, nil
}
