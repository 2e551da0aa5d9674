package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SellerHub/pkg/database"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/store"
	"SellerHub/pkg/woocommerce"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open("sqlite", fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return store.New(db)
}

func mlMsg(id, from, to string, at time.Time, text string) mercadolibre.Message {
	m := mercadolibre.Message{
		ID:     mercadolibre.FlexID(id),
		From:   mercadolibre.Participant{UserID: mercadolibre.FlexID(from)},
		To:     mercadolibre.Participant{UserID: mercadolibre.FlexID(to)},
		Status: "available",
		Text:   text,
	}
	created := at
	m.MessageDate.Created = &created
	return m
}

type sentMessage struct {
	PackID, BuyerID, Text string
}

// fakeML is an in-memory MercadoLibreAPI.
type fakeML struct {
	mu sync.Mutex

	seller    string
	orders    []mercadolibre.Order
	ordersErr error
	packs     map[string][]mercadolibre.Message
	packErr   error
	packDelay time.Duration
	messages  map[string]*mercadolibre.Message
	nicknames map[string]string
	sent      []sentMessage
	sendErr   error
	questions []mercadolibre.Question
	items     map[string]mercadolibre.Item
	answered  []int64

	packCalls   atomic.Int32
	orderCalls  atomic.Int32
	itemCalls   atomic.Int32
	userCalls   atomic.Int32
	questionsQs atomic.Int32
}

func newFakeML() *fakeML {
	return &fakeML{
		seller:    "999",
		packs:     map[string][]mercadolibre.Message{},
		messages:  map[string]*mercadolibre.Message{},
		nicknames: map[string]string{},
		items:     map[string]mercadolibre.Item{},
	}
}

func (f *fakeML) setPack(packID string, msgs ...mercadolibre.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.packs[packID] = msgs
}

func (f *fakeML) ResolveSellerID(context.Context) (string, error) { return f.seller, nil }

func (f *fakeML) SearchAllOrders(_ context.Context, _ mercadolibre.OrderSearchOptions, maxOrders int) ([]mercadolibre.Order, error) {
	f.orderCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	out := f.orders
	if maxOrders > 0 && len(out) > maxOrders {
		out = out[:maxOrders]
	}
	return append([]mercadolibre.Order(nil), out...), nil
}

func (f *fakeML) GetOrder(_ context.Context, id string) (*mercadolibre.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if fmt.Sprint(o.ID) == id {
			o := o
			return &o, nil
		}
	}
	return nil, &mercadolibre.APIError{Status: 404, Message: "order not found"}
}

func (f *fakeML) GetAllPackMessages(ctx context.Context, packID string, _ int) ([]mercadolibre.Message, error) {
	f.packCalls.Add(1)
	if f.packDelay > 0 {
		select {
		case <-time.After(f.packDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.packErr != nil {
		return nil, f.packErr
	}
	return append([]mercadolibre.Message(nil), f.packs[packID]...), nil
}

func (f *fakeML) GetMessage(_ context.Context, id string) (*mercadolibre.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return nil, &mercadolibre.APIError{Status: 404, Message: "message not found"}
}

func (f *fakeML) SendMessage(_ context.Context, packID, buyerID, text string) (*mercadolibre.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentMessage{packID, buyerID, text})
	m := mlMsg(fmt.Sprintf("sent-%d", len(f.sent)), f.seller, buyerID, time.Now(), text)
	f.packs[packID] = append(f.packs[packID], m)
	return &m, nil
}

func (f *fakeML) SearchQuestions(_ context.Context, opts mercadolibre.QuestionSearchOptions) (*mercadolibre.QuestionSearchResult, error) {
	f.questionsQs.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	var match []mercadolibre.Question
	for _, q := range f.questions {
		if opts.Status == "" || strings.EqualFold(q.Status, opts.Status) {
			match = append(match, q)
		}
	}
	total := len(match)
	start := min(opts.Offset, len(match))
	end := len(match)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, len(match))
	}
	return &mercadolibre.QuestionSearchResult{Total: total, Limit: opts.Limit, Questions: match[start:end]}, nil
}

func (f *fakeML) AnswerQuestion(_ context.Context, id int64, text string) (*mercadolibre.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	for _, q := range f.questions {
		if q.ID == id {
			q.Status = "ANSWERED"
			q.Answer = &mercadolibre.Answer{Text: text, Status: "ACTIVE"}
			return &q, nil
		}
	}
	return nil, &mercadolibre.APIError{Status: 404, Message: "question not found"}
}

func (f *fakeML) GetItem(_ context.Context, id string) (*mercadolibre.Item, error) {
	f.itemCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[id]; ok {
		return &it, nil
	}
	return nil, &mercadolibre.APIError{Status: 404, Message: "item not found"}
}

func (f *fakeML) GetUser(_ context.Context, id string) (*mercadolibre.User, error) {
	f.userCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if nick, ok := f.nicknames[id]; ok {
		return &mercadolibre.User{Nickname: nick}, nil
	}
	return nil, &mercadolibre.APIError{Status: 404, Message: "user not found"}
}

// fakeWoo is an in-memory WooCommerceAPI.
type fakeWoo struct {
	mu         sync.Mutex
	orders     []woocommerce.Order
	ordersErr  error
	notes      []woocommerce.OrderNote
	noteOrders []int64
	products   []woocommerce.Product
	orderCalls atomic.Int32
}

func (f *fakeWoo) ListAllOrders(_ context.Context, _ woocommerce.OrderListOptions, maxOrders int) ([]woocommerce.Order, error) {
	f.orderCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return append([]woocommerce.Order(nil), f.orders...), nil
}

func (f *fakeWoo) GetOrder(_ context.Context, id int64) (*woocommerce.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.ID == id {
			o := o
			return &o, nil
		}
	}
	return nil, &woocommerce.APIError{Status: 404, Message: "Invalid ID."}
}

func (f *fakeWoo) UpdateOrderStatus(_ context.Context, id int64, status string) (*woocommerce.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = status
			o := f.orders[i]
			return &o, nil
		}
	}
	return nil, &woocommerce.APIError{Status: 404, Message: "Invalid ID."}
}

func (f *fakeWoo) AddOrderNote(_ context.Context, id int64, note string, customer bool) (*woocommerce.OrderNote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := woocommerce.OrderNote{ID: int64(len(f.notes) + 1), Note: note, CustomerNote: customer}
	f.notes = append(f.notes, n)
	f.noteOrders = append(f.noteOrders, id)
	return &n, nil
}

func (f *fakeWoo) ListProducts(_ context.Context, opts woocommerce.ProductListOptions) (*woocommerce.ProductPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &woocommerce.ProductPage{Products: f.products, Total: len(f.products), TotalPages: 1, Page: max(opts.Page, 1)}, nil
}

var (
	_ MercadoLibreAPI = (*fakeML)(nil)
	_ WooCommerceAPI  = (*fakeWoo)(nil)
)
