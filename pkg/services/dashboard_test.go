package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"SellerHub/models"
	"SellerHub/pkg/cache"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"
	"SellerHub/pkg/woocommerce"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dashboardFixture struct {
	ml  *fakeML
	woo *fakeWoo
	svc *DashboardService
	hub *notify.Hub
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	base := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	ml := newFakeML()
	ml.orders = []mercadolibre.Order{
		{
			ID: 10, Status: "paid", TotalAmount: 200, CurrencyID: "BRL", DateCreated: base.Add(-time.Hour),
			Buyer: mercadolibre.OrderBuyer{ID: 111, Nickname: "COMPRADOR", FirstName: "Carlos"},
			OrderItems: []mercadolibre.OrderItem{{Quantity: 2, UnitPrice: 100}},
		},
		{
			ID: 11, Status: "cancelled", TotalAmount: 80, CurrencyID: "BRL", DateCreated: base.Add(-48 * time.Hour),
			Buyer: mercadolibre.OrderBuyer{ID: 222, Nickname: "OUTRO"},
		},
	}
	ml.orders[0].OrderItems[0].Item.Title = "Caneca"
	ml.questions = []mercadolibre.Question{{ID: 1, Status: "UNANSWERED"}, {ID: 2, Status: "ANSWERED"}}

	woo := &fakeWoo{orders: []woocommerce.Order{
		{
			ID: 501, Number: "501", Status: "completed", Total: "150.50", Currency: "BRL",
			DateCreated: woocommerce.Time{Time: base},
			Billing:     woocommerce.Address{FirstName: "Ana", LastName: "Souza", Email: "Ana@Example.com"},
			LineItems:   []woocommerce.LineItem{{Name: "Caneca", Quantity: 1, Total: "150.50", ProductID: 3}},
		},
		{
			ID: 502, Number: "502", Status: "processing", Total: "30.00", Currency: "BRL",
			DateCreated: woocommerce.Time{Time: base.Add(-24 * time.Hour)},
			Billing:     woocommerce.Address{FirstName: "Bia", Email: "bia@example.com"},
			LineItems:   []woocommerce.LineItem{{Name: "Chaveiro", Quantity: 3, Total: "30.00", ProductID: 4}},
		},
	}}

	st := newTestStore(t)
	mem := cache.NewMemory(100)
	t.Cleanup(func() { _ = mem.Close() })
	hub := notify.NewHub(16)
	questions := NewQuestionService(ml, mem, hub)
	svc := NewDashboardService(ml, woo, mem, st, questions, hub, DashboardConfig{LookbackDays: 30, CacheTTL: time.Minute})
	svc.now = func() time.Time { return base }
	return &dashboardFixture{ml: ml, woo: woo, svc: svc, hub: hub}
}

func TestOrdersMergesPlatformsNewestFirst(t *testing.T) {
	f := newDashboardFixture(t)
	list, err := f.svc.Orders(context.Background(), OrderQuery{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 4)
	assert.Empty(t, list.Warnings)

	ids := make([]string, len(list.Orders))
	for i, o := range list.Orders {
		ids[i] = o.ID
	}
	assert.Equal(t, []string{"woocommerce:501", "mercadolibre:10", "woocommerce:502", "mercadolibre:11"}, ids)

	woo := list.Orders[0]
	assert.Equal(t, "Ana Souza", woo.CustomerName)
	assert.Equal(t, "ana@example.com", woo.CustomerEmail)
	assert.InDelta(t, 150.50, woo.Total, 0.001)
	assert.Equal(t, StatusCompleted, woo.Status)

	ml := list.Orders[1]
	assert.Equal(t, "Carlos", ml.CustomerName)
	assert.Equal(t, StatusPaid, ml.Status)
	assert.Equal(t, 2, ml.ItemCount)
}

func TestOrdersFilterSearchSortPaginate(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	list, err := f.svc.Orders(ctx, OrderQuery{Platform: PlatformWooCommerce})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)

	list, err = f.svc.Orders(ctx, OrderQuery{Status: "cancelled"})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "11", list.Orders[0].OrderID)

	list, err = f.svc.Orders(ctx, OrderQuery{Search: "chaveiro"})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "502", list.Orders[0].OrderID)

	list, err = f.svc.Orders(ctx, OrderQuery{Sort: "total_desc", Page: 2, PerPage: 1})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, "501", list.Orders[0].OrderID)
	assert.Equal(t, 4, list.TotalPages)
}

func TestOrdersAreCachedUntilRefresh(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	_, err := f.svc.Orders(ctx, OrderQuery{})
	require.NoError(t, err)
	_, err = f.svc.Orders(ctx, OrderQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.ml.orderCalls.Load())
	assert.EqualValues(t, 1, f.woo.orderCalls.Load())

	_, err = f.svc.Orders(ctx, OrderQuery{Refresh: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, f.ml.orderCalls.Load())

	f.svc.Invalidate(ctx)
	_, err = f.svc.Orders(ctx, OrderQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, f.woo.orderCalls.Load())
}

func TestOnePlatformFailingIsAWarning(t *testing.T) {
	f := newDashboardFixture(t)
	f.woo.ordersErr = &woocommerce.APIError{Status: 401, Message: "Consumer key is invalid."}

	list, err := f.svc.Orders(context.Background(), OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 2)
	require.Len(t, list.Warnings, 1)
	assert.Contains(t, list.Warnings[0], "woocommerce")
	assert.Contains(t, list.Warnings[0], "status 401")
}

func TestStats(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	_, err := f.svc.store.UpsertConversation(ctx, models.Conversation{PackID: "p1", SellerID: "999"})
	require.NoError(t, err)

	st, err := f.svc.Stats(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalOrders)
	assert.InDelta(t, 380.50, st.TotalRevenue, 0.001)
	assert.InDelta(t, 126.83, st.AverageOrderValue, 0.001)
	assert.Equal(t, 2, st.OrdersByPlatform[PlatformMercadoLibre])
	assert.InDelta(t, 200, st.RevenueByPlatform[PlatformMercadoLibre], 0.001)
	assert.Equal(t, 1, st.OrdersByStatus[StatusCancelled])
	assert.EqualValues(t, 1, st.Conversations)
	assert.Equal(t, 1, st.UnansweredQuestions)
	assert.Equal(t, 4, st.Customers)
	require.NotEmpty(t, st.TopProducts)
	assert.Equal(t, "Chaveiro", st.TopProducts[0].Name)
	assert.Len(t, st.RecentOrders, 4)
	assert.Empty(t, st.Warnings)
}

func TestCustomersSearch(t *testing.T) {
	f := newDashboardFixture(t)
	list, err := f.svc.Customers(context.Background(), CustomerQuery{Search: "ana"})
	require.NoError(t, err)
	require.Len(t, list.Customers, 1)
	assert.Equal(t, "ana@example.com", list.Customers[0].Email)
	assert.InDelta(t, 150.50, list.Customers[0].TotalSpent, 0.001)
}

func TestGetOrderPerPlatform(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	o, err := f.svc.GetOrder(ctx, PlatformWooCommerce, "501")
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", o.CustomerName)

	o, err = f.svc.GetOrder(ctx, PlatformMercadoLibre, "10")
	require.NoError(t, err)
	assert.Equal(t, "mercadolibre:10", o.ID)

	_, err = f.svc.GetOrder(ctx, PlatformWooCommerce, "abc")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.GetOrder(ctx, "amazon", "1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.GetOrder(ctx, PlatformWooCommerce, "999")
	assert.Equal(t, 404, woocommerce.StatusCode(err))
}

func TestWooNoteAndStatus(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	events, cancel := f.hub.Subscribe()
	defer cancel()

	n, err := f.svc.AddWooNote(ctx, "501", "Enviado pelos Correios", true)
	require.NoError(t, err)
	assert.True(t, n.CustomerNote)
	assert.Equal(t, []int64{501}, f.woo.noteOrders)

	_, err = f.svc.AddWooNote(ctx, "x", "nota", false)
	assert.ErrorIs(t, err, ErrInvalidInput)

	o, err := f.svc.UpdateWooStatus(ctx, "502", "completed")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, o.Status)

	_, err = f.svc.UpdateWooStatus(ctx, "502", "shipped")
	assert.ErrorIs(t, err, ErrInvalidInput)

	got := drain(events)
	require.Len(t, got, 2)
	assert.Equal(t, notify.EventOrderUpdate, got[0].Type)
}

func TestDashboardWithoutPlatforms(t *testing.T) {
	svc := NewDashboardService(nil, nil, nil, nil, nil, nil, DashboardConfig{})
	_, err := svc.Orders(context.Background(), OrderQuery{})
	assert.True(t, errors.Is(err, ErrNotConfigured))

	st, err := svc.Stats(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, st.TotalOrders)

	_, err = svc.Products(context.Background(), ProductQuery{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
