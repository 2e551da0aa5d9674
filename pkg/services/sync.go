package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"SellerHub/models"
	"SellerHub/pkg/cache"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"
	"SellerHub/pkg/store"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

type SyncConfig struct {
	PageSize          int           // messages per page
	ConversationDelay time.Duration // pause between conversations in SyncRecent
	LookbackDays      int
	MaxOrders         int
	NicknameTTL       time.Duration
}

// SyncService mirrors MercadoLibre post-sale conversations into the store.
type SyncService struct {
	ml    MercadoLibreAPI
	store *store.Store
	cache cache.Store
	hub   *notify.Hub
	cfg   SyncConfig
	log   zerolog.Logger
	now   func() time.Time

	packs  singleflight.Group
	recent sync.Mutex
}

func NewSyncService(ml MercadoLibreAPI, st *store.Store, c cache.Store, hub *notify.Hub, cfg SyncConfig) *SyncService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.ConversationDelay < 0 {
		cfg.ConversationDelay = 0
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.MaxOrders <= 0 {
		cfg.MaxOrders = 200
	}
	if cfg.NicknameTTL <= 0 {
		cfg.NicknameTTL = 24 * time.Hour
	}
	return &SyncService{
		ml:    ml,
		store: st,
		cache: c,
		hub:   hub,
		cfg:   cfg,
		log:   logger.Component("sync"),
		now:   time.Now,
	}
}

func (s *SyncService) Enabled() bool { return s != nil && s.ml != nil }

// SyncHint carries what the caller already knows about the pack.
type SyncHint struct {
	BuyerID       string
	BuyerNickname string
	OrderID       string
	// FromNotification marks syncs triggered by a webhook, so buyer messages
	// in a never-seen pack still raise new_message.
	FromNotification bool
}

type SyncResult struct {
	PackID       string               `json:"pack_id"`
	Conversation *models.Conversation `json:"conversation"`
	Fetched      int                  `json:"fetched"`
	Inserted     int                  `json:"inserted"`
	NewFromBuyer int                  `json:"new_from_buyer"`
}

// SyncConversation pulls the full thread of packID and writes it through.
// Concurrent calls for the same pack share one upstream fetch.
func (s *SyncService) SyncConversation(ctx context.Context, packID string, hint SyncHint) (*SyncResult, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	packID = strings.TrimSpace(packID)
	if packID == "" {
		return nil, invalid("pack id is required")
	}
	v, err, _ := s.packs.Do(packID, func() (any, error) {
		return s.syncConversation(ctx, packID, hint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SyncResult), nil
}

func (s *SyncService) syncConversation(ctx context.Context, packID string, hint SyncHint) (*SyncResult, error) {
	seller, err := s.ml.ResolveSellerID(ctx)
	if err != nil {
		return nil, err
	}

	prev, err := s.store.GetConversationByPack(ctx, packID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	msgs, err := s.ml.GetAllPackMessages(ctx, packID, s.cfg.PageSize)
	if err != nil {
		s.recordFailure(ctx, packID, err)
		return nil, fmt.Errorf("fetch messages for pack %s: %w", packID, err)
	}

	conv := models.Conversation{
		PackID:        packID,
		SellerID:      seller,
		BuyerID:       hint.BuyerID,
		BuyerNickname: hint.BuyerNickname,
		OrderID:       hint.OrderID,
	}
	if prev != nil {
		conv.BuyerID = firstNonEmpty(conv.BuyerID, prev.BuyerID)
		conv.BuyerNickname = firstNonEmpty(conv.BuyerNickname, prev.BuyerNickname)
		conv.OrderID = firstNonEmpty(conv.OrderID, prev.OrderID)
	}
	if conv.BuyerID == "" {
		conv.BuyerID = buyerFromMessages(msgs, seller)
	}
	if conv.BuyerNickname == "" && conv.BuyerID != "" {
		conv.BuyerNickname = s.nickname(ctx, conv.BuyerID)
	}

	saved, err := s.store.UpsertConversation(ctx, conv)
	if err != nil {
		return nil, err
	}

	rows := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		rows = append(rows, messageRow(m, packID, s.now()))
	}
	inserted, err := s.store.UpsertMessages(ctx, saved.ID, rows)
	if err != nil {
		s.recordFailure(ctx, packID, err)
		return nil, err
	}
	saved, err = s.store.RecountConversation(ctx, saved.ID, seller)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkConversationSynced(ctx, packID, nil); err != nil {
		s.log.Warn().Err(err).Str("pack_id", packID).Msg("mark synced failed")
	}
	if err := s.store.SetSyncStatus(ctx, models.SyncEntityConversation, packID, nil); err != nil {
		s.log.Warn().Err(err).Str("pack_id", packID).Msg("sync status write failed")
	}

	res := &SyncResult{PackID: packID, Conversation: saved, Fetched: len(msgs), Inserted: inserted}
	res.NewFromBuyer = newBuyerMessages(rows, seller, prev, hint.FromNotification)
	if res.NewFromBuyer > 0 {
		s.hub.Publish(notify.Event{
			Type:     notify.EventNewMessage,
			Platform: PlatformMercadoLibre,
			Data: map[string]any{
				"pack_id":        packID,
				"buyer_nickname": saved.BuyerNickname,
				"count":          res.NewFromBuyer,
				"last_message":   saved.LastMessageText,
			},
		})
	}
	s.log.Debug().Str("pack_id", packID).Int("fetched", len(msgs)).Int("inserted", inserted).Msg("conversation synced")
	return res, nil
}

func (s *SyncService) recordFailure(ctx context.Context, packID string, cause error) {
	// Bookkeeping must survive a cancelled request context.
	bg := context.WithoutCancel(ctx)
	if err := s.store.SetSyncStatus(bg, models.SyncEntityConversation, packID, cause); err != nil {
		s.log.Warn().Err(err).Str("pack_id", packID).Msg("sync status write failed")
	}
	if err := s.store.MarkConversationSynced(bg, packID, cause); err != nil {
		s.log.Warn().Err(err).Str("pack_id", packID).Msg("mark sync error failed")
	}
	s.log.Error().Err(cause).Str("pack_id", packID).Msg("conversation sync failed")
}

// nickname resolves a buyer's nickname best-effort; failures yield "".
func (s *SyncService) nickname(ctx context.Context, userID string) string {
	key := "ml:nickname:" + userID
	var cached string
	if s.cache != nil {
		if err := cache.GetJSON(ctx, s.cache, key, &cached); err == nil {
			return cached
		}
	}
	u, err := s.ml.GetUser(ctx, userID)
	if err != nil {
		s.log.Debug().Err(err).Str("user_id", userID).Msg("nickname lookup failed")
		return ""
	}
	if s.cache != nil {
		_ = cache.SetJSON(ctx, s.cache, key, u.Nickname, s.cfg.NicknameTTL)
	}
	return u.Nickname
}

func buyerFromMessages(msgs []mercadolibre.Message, seller string) string {
	for _, m := range msgs {
		if from := string(m.From.UserID); from != "" && from != seller {
			return from
		}
	}
	for _, m := range msgs {
		if to := string(m.To.UserID); to != "" && to != seller {
			return to
		}
	}
	return ""
}

// newBuyerMessages counts buyer messages newer than the previously cached last message.
func newBuyerMessages(rows []models.Message, seller string, prev *models.Conversation, fromNotification bool) int {
	if prev == nil && !fromNotification {
		return 0
	}
	var since time.Time
	if prev != nil && prev.LastMessageDate != nil {
		since = *prev.LastMessageDate
	}
	n := 0
	for _, m := range rows {
		if !m.FromSeller(seller) && m.SentAt.After(since) {
			n++
		}
	}
	return n
}

func messageRow(m mercadolibre.Message, packID string, now time.Time) models.Message {
	row := models.Message{
		MessageID:        string(m.ID),
		PackID:           firstNonEmpty(m.PackID(), packID),
		FromUserID:       string(m.From.UserID),
		ToUserID:         string(m.To.UserID),
		Text:             m.Text,
		Status:           m.Status,
		ModerationStatus: m.Moderation.Status,
		ModerationReason: m.Moderation.Reason,
		ModeratedAt:      m.Moderation.ModerationDate,
		SentAt:           m.SentAt(),
		ReadAt:           m.MessageDate.Read,
	}
	if row.MessageID == "" {
		// stable across re-syncs so the upsert stays idempotent
		row.MessageID = "local-" + cache.KeyFromStrings(row.PackID, row.FromUserID, row.SentAt.UTC().Format(time.RFC3339Nano), row.Text)
	}
	if row.SentAt.IsZero() {
		row.SentAt = now
	}
	if raw := bytes.TrimSpace(m.Attachments); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) && !bytes.Equal(raw, []byte("[]")) {
		row.Attachments = datatypes.JSON(raw)
	}
	return row
}

type SyncOptions struct {
	Days      int
	MaxOrders int
}

type SyncSummary struct {
	Orders        int           `json:"orders"`
	Conversations int           `json:"conversations"`
	Messages      int           `json:"messages"`
	NewMessages   int           `json:"new_messages"`
	Failures      int           `json:"failures"`
	Errors        []string      `json:"errors,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
}

const maxSummaryErrors = 10

// SyncRecent scans recent orders and syncs each pack sequentially. Only one
// SyncRecent runs at a time; a second caller gets ErrSyncInProgress.
func (s *SyncService) SyncRecent(ctx context.Context, opts SyncOptions) (*SyncSummary, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	if !s.recent.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.recent.Unlock()

	if opts.Days <= 0 {
		opts.Days = s.cfg.LookbackDays
	}
	if opts.MaxOrders <= 0 {
		opts.MaxOrders = s.cfg.MaxOrders
	}
	start := s.now()
	sum := &SyncSummary{StartedAt: start}

	orders, err := s.ml.SearchAllOrders(ctx, mercadolibre.OrderSearchOptions{
		From: start.AddDate(0, 0, -opts.Days),
	}, opts.MaxOrders)
	if err != nil {
		return nil, fmt.Errorf("search recent orders: %w", err)
	}
	sum.Orders = len(orders)

	packs, hints := groupByPack(orders)
	for i, packID := range packs {
		if i > 0 {
			if err := sleepWithContext(ctx, s.cfg.ConversationDelay); err != nil {
				return sum, err
			}
		}
		res, err := s.SyncConversation(ctx, packID, hints[packID])
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			sum.Failures++
			if len(sum.Errors) < maxSummaryErrors {
				sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %v", packID, err))
			}
			continue
		}
		sum.Conversations++
		sum.Messages += res.Fetched
		sum.NewMessages += res.Inserted
	}
	sum.Duration = s.now().Sub(start)

	s.log.Info().Int("orders", sum.Orders).Int("conversations", sum.Conversations).
		Int("failures", sum.Failures).Dur("took", sum.Duration).Msg("recent sync finished")
	s.hub.Publish(notify.Event{Type: notify.EventSyncCompleted, Platform: PlatformMercadoLibre, Data: sum})
	return sum, nil
}

// groupByPack keeps first-seen order (newest first) and the buyer of the first order per pack.
func groupByPack(orders []mercadolibre.Order) ([]string, map[string]SyncHint) {
	var packs []string
	hints := make(map[string]SyncHint)
	for _, o := range orders {
		key := o.PackKey()
		if _, ok := hints[key]; ok {
			continue
		}
		h := SyncHint{BuyerNickname: o.Buyer.Nickname, OrderID: strconv.FormatInt(o.ID, 10)}
		if o.Buyer.ID != 0 {
			h.BuyerID = strconv.FormatInt(o.Buyer.ID, 10)
		}
		hints[key] = h
		packs = append(packs, key)
	}
	return packs, hints
}

// HandleMessageNotification syncs the pack of a message referenced by a
// "messages" webhook. resource may be a bare id or a "/messages/{id}" path.
func (s *SyncService) HandleMessageNotification(ctx context.Context, resource string) (*SyncResult, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}
	id := resource
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		id = resource[i+1:]
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("message resource is empty")
	}
	m, err := s.ml.GetMessage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", id, err)
	}
	packID := m.PackID()
	if packID == "" {
		return nil, invalid("message %s has no pack", id)
	}
	return s.SyncConversation(ctx, packID, SyncHint{FromNotification: true})
}

// Run syncs recent conversations every interval until ctx is done.
func (s *SyncService) Run(ctx context.Context, interval time.Duration) {
	if !s.Enabled() || interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.SyncRecent(ctx, SyncOptions{}); err != nil && ctx.Err() == nil {
				s.log.Error().Err(err).Msg("scheduled sync failed")
			}
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
