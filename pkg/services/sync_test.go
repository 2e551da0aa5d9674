package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SellerHub/models"
	"SellerHub/pkg/cache"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	ml   *fakeML
	svc  *SyncService
	hub  *notify.Hub
	base time.Time
}

func newSyncFixture(t *testing.T) *syncFixture {
	ml := newFakeML()
	ml.nicknames["111"] = "COMPRADOR"
	hub := notify.NewHub(16)
	st := newTestStore(t)
	mem := cache.NewMemory(100)
	t.Cleanup(func() { _ = mem.Close() })
	svc := NewSyncService(ml, st, mem, hub, SyncConfig{})
	return &syncFixture{ml: ml, svc: svc, hub: hub, base: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
}

func drain(ch <-chan notify.Event) []notify.Event {
	var out []notify.Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSyncConversationFirstImport(t *testing.T) {
	f := newSyncFixture(t)
	events, cancel := f.hub.Subscribe()
	defer cancel()

	f.ml.setPack("p1",
		mlMsg("m1", "111", "999", f.base, "Olá, chegou?"),
		mlMsg("m2", "999", "111", f.base.Add(time.Hour), "Sim, hoje"),
		mlMsg("m3", "111", "999", f.base.Add(2*time.Hour), "Obrigado"),
	)

	res, err := f.svc.SyncConversation(context.Background(), "p1", SyncHint{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Fetched)
	assert.Equal(t, 3, res.Inserted)
	assert.Zero(t, res.NewFromBuyer)

	c := res.Conversation
	assert.Equal(t, "111", c.BuyerID)
	assert.Equal(t, "COMPRADOR", c.BuyerNickname)
	assert.Equal(t, "999", c.SellerID)
	assert.Equal(t, 3, c.TotalMessages)
	assert.Equal(t, 2, c.UnreadMessages)
	assert.Equal(t, "Obrigado", c.LastMessageText)
	assert.NotNil(t, c.LastSyncedAt)

	st, err := f.svc.store.GetSyncStatus(context.Background(), models.SyncEntityConversation, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusOK, st.Status)

	assert.Empty(t, drain(events))
}

func TestSyncConversationPublishesNewBuyerMessages(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.ml.setPack("p1", mlMsg("m1", "111", "999", f.base, "Olá"))
	_, err := f.svc.SyncConversation(ctx, "p1", SyncHint{})
	require.NoError(t, err)

	events, cancel := f.hub.Subscribe()
	defer cancel()
	f.ml.setPack("p1",
		mlMsg("m1", "111", "999", f.base, "Olá"),
		mlMsg("m2", "999", "111", f.base.Add(time.Minute), "Oi"),
		mlMsg("m3", "111", "999", f.base.Add(2*time.Minute), "Rastreio?"),
	)
	res, err := f.svc.SyncConversation(ctx, "p1", SyncHint{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 1, res.NewFromBuyer)
	assert.Equal(t, 3, res.Conversation.TotalMessages)

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, notify.EventNewMessage, got[0].Type)

	// nickname came from cache the second time
	assert.EqualValues(t, 1, f.ml.userCalls.Load())
}

func TestSyncConversationRecordsFailure(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.ml.setPack("p1", mlMsg("m1", "111", "999", f.base, "Olá"))
	_, err := f.svc.SyncConversation(ctx, "p1", SyncHint{})
	require.NoError(t, err)

	f.ml.packErr = &mercadolibre.APIError{Status: 500, Message: "internal"}
	_, err = f.svc.SyncConversation(ctx, "p1", SyncHint{})
	require.Error(t, err)
	assert.Equal(t, 500, mercadolibre.StatusCode(err))

	st, err := f.svc.store.GetSyncStatus(ctx, models.SyncEntityConversation, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusError, st.Status)
	assert.Equal(t, 1, st.ErrorCount)

	c, err := f.svc.store.GetConversationByPack(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, c.SyncError, "status 500")
	assert.Equal(t, 1, c.TotalMessages)
}

func TestSyncConversationCoalescesConcurrentCalls(t *testing.T) {
	f := newSyncFixture(t)
	f.ml.packDelay = 100 * time.Millisecond
	f.ml.setPack("p1", mlMsg("m1", "111", "999", f.base, "Olá"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SyncConversation(context.Background(), "p1", SyncHint{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, f.ml.packCalls.Load())
}

func TestSyncConversationWithoutMessageIDIsIdempotent(t *testing.T) {
	f := newSyncFixture(t)
	ctx := context.Background()
	f.ml.setPack("p1", mlMsg("", "111", "999", f.base, "Sem id"), mlMsg("m2", "999", "111", f.base.Add(time.Minute), "Oi"))

	res, err := f.svc.SyncConversation(ctx, "p1", SyncHint{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Conversation.TotalMessages)

	res, err = f.svc.SyncConversation(ctx, "p1", SyncHint{})
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Equal(t, 2, res.Conversation.TotalMessages)
}

func TestSyncConversationValidation(t *testing.T) {
	f := newSyncFixture(t)
	_, err := f.svc.SyncConversation(context.Background(), "  ", SyncHint{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	var disabled *SyncService
	_, err = disabled.SyncConversation(context.Background(), "p1", SyncHint{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func pack(id int64) *int64 { return &id }

func TestSyncRecentGroupsOrdersByPack(t *testing.T) {
	f := newSyncFixture(t)
	events, cancel := f.hub.Subscribe()
	defer cancel()

	f.ml.orders = []mercadolibre.Order{
		{ID: 1, PackID: pack(2000001), Buyer: mercadolibre.OrderBuyer{ID: 111, Nickname: "COMPRADOR"}},
		{ID: 2, PackID: pack(2000001), Buyer: mercadolibre.OrderBuyer{ID: 111, Nickname: "COMPRADOR"}},
		{ID: 3, Buyer: mercadolibre.OrderBuyer{ID: 222, Nickname: "OUTRO"}},
	}
	f.ml.setPack("2000001", mlMsg("m1", "111", "999", f.base, "Olá"))
	f.ml.setPack("3", mlMsg("m2", "222", "999", f.base, "Oi"), mlMsg("m3", "999", "222", f.base.Add(time.Minute), "Oi!"))

	sum, err := f.svc.SyncRecent(context.Background(), SyncOptions{Days: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Orders)
	assert.Equal(t, 2, sum.Conversations)
	assert.Equal(t, 3, sum.Messages)
	assert.Zero(t, sum.Failures)
	assert.EqualValues(t, 2, f.ml.packCalls.Load())

	c, err := f.svc.store.GetConversationByPack(context.Background(), "3")
	require.NoError(t, err)
	assert.Equal(t, "OUTRO", c.BuyerNickname)
	assert.Equal(t, "3", c.OrderID)

	got := drain(events)
	require.NotEmpty(t, got)
	assert.Equal(t, notify.EventSyncCompleted, got[len(got)-1].Type)
}

func TestSyncRecentCountsFailuresAndContinues(t *testing.T) {
	f := newSyncFixture(t)
	f.ml.orders = []mercadolibre.Order{{ID: 1}, {ID: 2}}
	f.ml.packErr = errors.New("connection reset")

	sum, err := f.svc.SyncRecent(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Failures)
	assert.Len(t, sum.Errors, 2)
	assert.Zero(t, sum.Conversations)
}

func TestSyncRecentRejectsOverlap(t *testing.T) {
	f := newSyncFixture(t)
	f.svc.recent.Lock()
	defer f.svc.recent.Unlock()

	_, err := f.svc.SyncRecent(context.Background(), SyncOptions{})
	assert.ErrorIs(t, err, ErrSyncInProgress)
}

func TestHandleMessageNotification(t *testing.T) {
	f := newSyncFixture(t)
	events, cancel := f.hub.Subscribe()
	defer cancel()

	m := mlMsg("abc", "111", "999", f.base, "Comprei ontem")
	m.Resources = []mercadolibre.MessageResource{{ID: "2000002", Name: "packs"}}
	f.ml.messages["abc"] = &m
	f.ml.setPack("2000002", m)

	res, err := f.svc.HandleMessageNotification(context.Background(), "/messages/abc")
	require.NoError(t, err)
	assert.Equal(t, "2000002", res.PackID)
	assert.Equal(t, 1, res.NewFromBuyer)

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, notify.EventNewMessage, got[0].Type)

	_, err = f.svc.HandleMessageNotification(context.Background(), "/messages/")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
