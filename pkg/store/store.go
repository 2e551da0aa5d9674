package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SellerHub/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("store: not found")

// Store is the relational cache of conversations, messages and sync state.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func New(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) DB() *gorm.DB { return s.db }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// UpsertConversation inserts or updates the row keyed on PackID and returns
// the stored row. Empty buyer fields never overwrite known values.
func (s *Store) UpsertConversation(ctx context.Context, c models.Conversation) (*models.Conversation, error) {
	if strings.TrimSpace(c.PackID) == "" {
		return nil, fmt.Errorf("store: conversation without pack_id")
	}
	updates := map[string]any{"seller_id": c.SellerID, "updated_at": s.now()}
	if c.BuyerID != "" {
		updates["buyer_id"] = c.BuyerID
	}
	if c.BuyerNickname != "" {
		updates["buyer_nickname"] = c.BuyerNickname
	}
	if c.OrderID != "" {
		updates["order_id"] = c.OrderID
	}

	row := c
	row.ID = 0
	row.Messages = nil
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pack_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("store: upsert conversation %s: %w", c.PackID, err)
	}
	return s.GetConversationByPack(ctx, c.PackID)
}

// UpsertMessages writes msgs keyed on MessageID under conversationID and
// reports how many were new.
func (s *Store) UpsertMessages(ctx context.Context, conversationID uint, msgs []models.Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}
	// A page boundary can repeat a message; one INSERT must not touch a key twice.
	byID := make(map[string]int, len(msgs))
	rows := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		m.ID = 0
		m.ConversationID = conversationID
		if i, ok := byID[m.MessageID]; ok {
			rows[i] = m
			continue
		}
		byID[m.MessageID] = len(rows)
		rows = append(rows, m)
	}
	ids := make([]string, len(rows))
	for i, m := range rows {
		ids[i] = m.MessageID
	}

	var existing []string
	if err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("message_id IN ?", ids).Pluck("message_id", &existing).Error; err != nil {
		return 0, fmt.Errorf("store: existing messages: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "message_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"conversation_id", "text", "status", "moderation_status", "moderation_reason",
			"moderated_at", "attachments", "read_at", "updated_at",
		}),
	}).CreateInBatches(&rows, 100).Error
	if err != nil {
		return 0, fmt.Errorf("store: upsert messages: %w", err)
	}

	inserted := 0
	for _, id := range ids {
		if !known[id] {
			inserted++
		}
	}
	return inserted, nil
}

// RecountConversation recomputes the denormalised counters from the messages table.
func (s *Store) RecountConversation(ctx context.Context, conversationID uint, sellerID string) (*models.Conversation, error) {
	db := s.db.WithContext(ctx)

	var total, unread int64
	if err := db.Model(&models.Message{}).Where("conversation_id = ?", conversationID).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Message{}).
		Where("conversation_id = ? AND from_user_id <> ? AND read_at IS NULL", conversationID, sellerID).
		Count(&unread).Error; err != nil {
		return nil, err
	}

	updates := map[string]any{
		"total_messages":  total,
		"unread_messages": unread,
	}
	var last models.Message
	err := db.Where("conversation_id = ?", conversationID).Order("sent_at DESC, id DESC").First(&last).Error
	switch {
	case err == nil:
		updates["last_message_date"] = last.SentAt
		updates["last_message_text"] = last.Text
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	if err := db.Model(&models.Conversation{}).Where("id = ?", conversationID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("store: recount %d: %w", conversationID, err)
	}
	var c models.Conversation
	if err := db.First(&c, conversationID).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// MarkConversationSynced stamps last_synced_at on success or records syncErr.
func (s *Store) MarkConversationSynced(ctx context.Context, packID string, syncErr error) error {
	updates := map[string]any{"sync_error": ""}
	if syncErr != nil {
		updates["sync_error"] = syncErr.Error()
	} else {
		updates["last_synced_at"] = s.now()
	}
	return s.db.WithContext(ctx).Model(&models.Conversation{}).Where("pack_id = ?", packID).Updates(updates).Error
}

func (s *Store) GetConversationByPack(ctx context.Context, packID string) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.db.WithContext(ctx).Where("pack_id = ?", packID).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

type ConversationFilter struct {
	Search     string
	UnreadOnly bool
	Limit      int
	Offset     int
}

// ListConversations returns a page, newest activity first, plus the filtered total.
func (s *Store) ListConversations(ctx context.Context, f ConversationFilter) ([]models.Conversation, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Conversation{})
	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(buyer_nickname) LIKE ? OR pack_id LIKE ? OR order_id LIKE ? OR LOWER(last_message_text) LIKE ?",
			like, like, like, like)
	}
	if f.UnreadOnly {
		q = q.Where("unread_messages > 0")
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.Conversation
	err := q.Order("CASE WHEN last_message_date IS NULL THEN 1 ELSE 0 END").
		Order("last_message_date DESC").Order("id DESC").
		Limit(limit).Offset(max(f.Offset, 0)).
		Find(&out).Error
	return out, total, err
}

// ListMessages returns the thread in chronological order.
func (s *Store) ListMessages(ctx context.Context, conversationID uint) ([]models.Message, error) {
	var out []models.Message
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).
		Order("sent_at ASC").Order("id ASC").Find(&out).Error
	return out, err
}

// CountConversations returns the number of cached conversations and how many have unread messages.
func (s *Store) CountConversations(ctx context.Context) (total, unread int64, err error) {
	db := s.db.WithContext(ctx).Model(&models.Conversation{})
	if err = db.Count(&total).Error; err != nil {
		return
	}
	err = s.db.WithContext(ctx).Model(&models.Conversation{}).Where("unread_messages > 0").Count(&unread).Error
	return
}
