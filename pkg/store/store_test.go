package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"SellerHub/models"
	"SellerHub/pkg/database"
	"SellerHub/pkg/mercadolibre"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db)
}

func msg(id, from string, sent time.Time, read bool) models.Message {
	m := models.Message{MessageID: id, PackID: "2000001", FromUserID: from, Text: "text " + id, Status: "available", SentAt: sent}
	if read {
		r := sent.Add(time.Minute)
		m.ReadAt = &r
	}
	return m
}

func TestUpsertConversationKeepsKnownBuyer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.UpsertConversation(ctx, models.Conversation{PackID: "2000001", SellerID: "999", BuyerID: "111", BuyerNickname: "COMPRADOR"})
	require.NoError(t, err)
	require.NotZero(t, c.ID)

	again, err := s.UpsertConversation(ctx, models.Conversation{PackID: "2000001", SellerID: "999"})
	require.NoError(t, err)
	assert.Equal(t, c.ID, again.ID)
	assert.Equal(t, "111", again.BuyerID)
	assert.Equal(t, "COMPRADOR", again.BuyerNickname)

	_, err = s.UpsertConversation(ctx, models.Conversation{SellerID: "999"})
	assert.Error(t, err)
}

func TestUpsertMessagesAndRecount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c, err := s.UpsertConversation(ctx, models.Conversation{PackID: "2000001", SellerID: "999", BuyerID: "111"})
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	n, err := s.UpsertMessages(ctx, c.ID, []models.Message{
		msg("m1", "111", base, true),
		msg("m2", "999", base.Add(time.Hour), false),
		msg("m3", "111", base.Add(2*time.Hour), false),
		msg("m3", "111", base.Add(2*time.Hour), false),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// re-sync: m3 gets read, m4 is new
	m3 := msg("m3", "111", base.Add(2*time.Hour), true)
	n, err = s.UpsertMessages(ctx, c.ID, []models.Message{m3, msg("m4", "111", base.Add(3*time.Hour), false)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.RecountConversation(ctx, c.ID, "999")
	require.NoError(t, err)
	assert.Equal(t, 4, got.TotalMessages)
	assert.Equal(t, 1, got.UnreadMessages)
	require.NotNil(t, got.LastMessageDate)
	assert.True(t, got.LastMessageDate.Equal(base.Add(3*time.Hour)))
	assert.Equal(t, "text m4", got.LastMessageText)

	thread, err := s.ListMessages(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, thread, 4)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, []string{thread[0].MessageID, thread[1].MessageID, thread[2].MessageID, thread[3].MessageID})
}

func TestListConversationsOrderAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, nick := range []string{"ALFA", "BRAVO", "CHARLIE"} {
		c, err := s.UpsertConversation(ctx, models.Conversation{PackID: fmt.Sprintf("p%d", i), SellerID: "999", BuyerNickname: nick})
		require.NoError(t, err)
		if i == 2 {
			continue // never messaged, sorts last
		}
		_, err = s.UpsertMessages(ctx, c.ID, []models.Message{msg(fmt.Sprintf("m%d", i), "111", base.Add(time.Duration(i)*time.Hour), false)})
		require.NoError(t, err)
		_, err = s.RecountConversation(ctx, c.ID, "999")
		require.NoError(t, err)
	}

	all, total, err := s.ListConversations(ctx, ConversationFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "BRAVO", all[0].BuyerNickname)
	assert.Equal(t, "ALFA", all[1].BuyerNickname)
	assert.Equal(t, "CHARLIE", all[2].BuyerNickname)

	found, total, err := s.ListConversations(ctx, ConversationFilter{Search: "brav"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, "p1", found[0].PackID)

	page, total, err := s.ListConversations(ctx, ConversationFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, page, 1)
	assert.Equal(t, "ALFA", page[0].BuyerNickname)

	totalAll, unread, err := s.CountConversations(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, totalAll)
	assert.EqualValues(t, 2, unread)
}

func TestMarkConversationSynced(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.UpsertConversation(ctx, models.Conversation{PackID: "p1", SellerID: "999"})
	require.NoError(t, err)

	require.NoError(t, s.MarkConversationSynced(ctx, "p1", errors.New("status 500: boom")))
	c, err := s.GetConversationByPack(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "status 500: boom", c.SyncError)
	assert.Nil(t, c.LastSyncedAt)

	require.NoError(t, s.MarkConversationSynced(ctx, "p1", nil))
	c, err = s.GetConversationByPack(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, c.SyncError)
	assert.NotNil(t, c.LastSyncedAt)

	_, err = s.GetConversationByPack(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncStatusCountsErrors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetSyncStatus(ctx, models.SyncEntityConversation, "p1", errors.New("timeout")))
	require.NoError(t, s.SetSyncStatus(ctx, models.SyncEntityConversation, "p1", errors.New("timeout again")))
	st, err := s.GetSyncStatus(ctx, models.SyncEntityConversation, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, st.Status)
	assert.Equal(t, 2, st.ErrorCount)
	assert.Equal(t, "timeout again", st.ErrorMessage)

	require.NoError(t, s.SetSyncStatus(ctx, models.SyncEntityConversation, "p1", nil))
	st, err = s.GetSyncStatus(ctx, models.SyncEntityConversation, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusOK, st.Status)
	assert.Zero(t, st.ErrorCount)
	assert.NotNil(t, st.LastSyncAt)

	_, err = s.GetSyncStatus(ctx, models.SyncEntityMessage, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMercadoLibreTokenStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := s.MercadoLibreTokens()

	tok, err := ts.LoadToken(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	exp := time.Date(2024, 5, 1, 16, 0, 0, 0, time.UTC)
	require.NoError(t, ts.SaveToken(ctx, mercadolibre.Token{AccessToken: "APP_USR-1", RefreshToken: "TG-1", UserID: 999, ExpiresAt: exp}))
	require.NoError(t, ts.SaveToken(ctx, mercadolibre.Token{AccessToken: "APP_USR-2", RefreshToken: "TG-2", UserID: 999, ExpiresAt: exp.Add(time.Hour)}))

	tok, err = ts.LoadToken(ctx)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "APP_USR-2", tok.AccessToken)
	assert.Equal(t, "TG-2", tok.RefreshToken)
	assert.EqualValues(t, 999, tok.UserID)
	assert.True(t, tok.ExpiresAt.Equal(exp.Add(time.Hour)))
	assert.False(t, tok.RefreshedAt.IsZero())
}

func TestLogEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.LogEmail(ctx, &models.EmailLog{To: "a@example.com", Subject: "Pedido", Status: "sent"}))
	require.NoError(t, s.LogEmail(ctx, &models.EmailLog{To: "b@example.com", Subject: "Envio", Status: "failed", Error: "dial tcp"}))

	logs, err := s.ListEmailLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "b@example.com", logs[0].To)
}
