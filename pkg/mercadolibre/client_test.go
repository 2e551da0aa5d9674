package mercadolibre

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves both the REST endpoints and /oauth/token. Only tokens
// listed in valid are accepted.
type fakeAPI struct {
	*httptest.Server
	mux          *http.ServeMux
	valid        map[string]bool
	refreshes    atomic.Int32
	apiCalls     atomic.Int32
	refreshValid bool
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{mux: http.NewServeMux(), valid: map[string]bool{}, refreshValid: true}
	f.mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		f.refreshes.Add(1)
		tok := "refreshed-token"
		if f.refreshValid {
			f.valid[tok] = true
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  tok,
			"refresh_token": "TG-next",
			"expires_in":    21600,
		})
	})
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/token" {
			f.apiCalls.Add(1)
			auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !f.valid[auth] {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"message":"invalid access token","error":"not_found","status":401}`))
				return
			}
		}
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeAPI) client(initial string, minInterval time.Duration) (*Client, *TokenManager) {
	tm := NewTokenManager(TokenManagerConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenURL:     f.URL + "/oauth/token",
	}, Token{AccessToken: initial, RefreshToken: "TG-1", ExpiresAt: time.Now().Add(5 * time.Hour)})
	c := NewClient(Config{BaseURL: f.URL, SellerID: "999", MinInterval: minInterval, Tokens: tm})
	return c, tm
}

func TestClientRetriesOnceAfter401(t *testing.T) {
	f := newFakeAPI(t)
	f.mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":999,"nickname":"SELLER"}`)
	})
	c, tm := f.client("expired-token", 0)

	me, err := c.GetMe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SELLER", me.Nickname)
	assert.EqualValues(t, 1, f.refreshes.Load())
	assert.EqualValues(t, 2, f.apiCalls.Load())

	tok, err := tm.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", tok)
}

func TestClientGivesUpAfterSecond401(t *testing.T) {
	f := newFakeAPI(t)
	f.refreshValid = false
	f.mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":999}`)
	})
	c, _ := f.client("expired-token", 0)

	_, err := c.GetMe(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusCode(err))
	assert.Contains(t, err.Error(), "status 401")
	assert.EqualValues(t, 1, f.refreshes.Load())
	assert.EqualValues(t, 2, f.apiCalls.Load())
}

func TestClientMapsAPIErrors(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	f.mux.HandleFunc("/orders/404", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Order not found","error":"not_found","status":404}`)
	})
	c, _ := f.client("good", 0)

	_, err := c.GetOrder(context.Background(), "404")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "mercadolibre: status 404: Order not found", err.Error())
}

func TestSearchOrdersQueryAndPackKey(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	var gotQuery atomic.Value
	f.mux.HandleFunc("/orders/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		_, _ = io.WriteString(w, `{
			"results": [
				{"id": 2000001, "status": "paid", "date_created": "2026-01-05T10:30:00.000-03:00",
				 "total_amount": 1500.5, "currency_id": "ARS", "pack_id": 2000000099,
				 "buyer": {"id": 55, "nickname": "BUYER55", "first_name": "Ana", "last_name": "Diaz"},
				 "order_items": [{"item": {"id": "MLA1", "title": "Mate"}, "quantity": 2, "unit_price": 750.25}]},
				{"id": 2000002, "status": "cancelled", "date_created": "2026-01-04T09:00:00.000-03:00",
				 "total_amount": 10, "currency_id": "ARS", "pack_id": null, "buyer": {"id": 56, "nickname": "B56"}}
			],
			"paging": {"total": 2, "offset": 0, "limit": 50}
		}`)
	})
	c, _ := f.client("good", 0)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := c.SearchOrders(context.Background(), OrderSearchOptions{Status: "paid", From: from, Limit: 500})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"999"}, q["seller"])
	assert.Equal(t, []string{"paid"}, q["order.status"])
	assert.Equal(t, []string{"2026-01-01T00:00:00.000+00:00"}, q["order.date_created.from"])
	assert.Equal(t, []string{"50"}, q["limit"])
	assert.Equal(t, []string{"date_desc"}, q["sort"])

	assert.Equal(t, "2000000099", res.Results[0].PackKey())
	assert.Equal(t, "2000002", res.Results[1].PackKey())
	assert.Equal(t, "Ana Diaz", res.Results[0].Buyer.DisplayName())
	assert.Equal(t, "B56", res.Results[1].Buyer.DisplayName())
}

func TestSearchAllOrdersStopsAtMax(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	f.mux.HandleFunc("/orders/search", func(w http.ResponseWriter, r *http.Request) {
		results := make([]map[string]any, 30)
		for i := range results {
			results[i] = map[string]any{"id": 3000000 + i, "status": "paid"}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": results,
			"paging":  map[string]any{"total": 30, "offset": 0, "limit": 50},
		})
	})
	c, _ := f.client("good", 0)

	orders, err := c.SearchAllOrders(context.Background(), OrderSearchOptions{}, 10)
	require.NoError(t, err)
	assert.Len(t, orders, 10)

	orders, err = c.SearchAllOrders(context.Background(), OrderSearchOptions{}, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 30)
}

func TestGetAllPackMessagesPaginates(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	f.mux.HandleFunc("/messages/packs/777/sellers/999", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "post_sale", r.URL.Query().Get("tag"))
		assert.Equal(t, "false", r.URL.Query().Get("mark_as_read"))
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = io.WriteString(w, `{"paging":{"total":3,"offset":0,"limit":2},"messages":[
				{"id":"m1","from":{"user_id":55},"to":{"user_id":"999"},"text":"hola","status":"available",
				 "message_date":{"created":"2026-01-05T10:00:00.000Z"}},
				{"id":"m2","from":{"user_id":999},"to":{"user_id":55},"text":"buenas","status":"available",
				 "message_date":{"created":"2026-01-05T10:05:00.000Z","read":"2026-01-05T10:06:00.000Z"}}]}`)
		default:
			_, _ = io.WriteString(w, `{"paging":{"total":3,"offset":2,"limit":2},"messages":[
				{"id":"m3","from":{"user_id":55},"to":{"user_id":999},"text":"gracias","status":"available",
				 "message_date":{"received":"2026-01-05T11:00:00.000Z"},
				 "message_moderation":{"status":"clean"},
				 "message_attachments":[{"filename":"a.png"}]}]}`)
		}
	})
	c, _ := f.client("good", 0)

	msgs, err := c.GetAllPackMessages(context.Background(), "777", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, FlexID("55"), msgs[0].From.UserID)
	assert.Equal(t, FlexID("999"), msgs[0].To.UserID)
	assert.Equal(t, time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC), msgs[2].SentAt().UTC())
	assert.Equal(t, "clean", msgs[2].Moderation.Status)
	assert.JSONEq(t, `[{"filename":"a.png"}]`, string(msgs[2].Attachments))
}

func TestSendMessageValidatesAndPosts(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	f.mux.HandleFunc("/messages/packs/777/sellers/999", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]map[string]any
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "999", body["from"]["user_id"])
		assert.Equal(t, "55", body["to"]["user_id"])
		_, _ = io.WriteString(w, `{"id":"new-1","from":{"user_id":999},"to":{"user_id":55},"text":"ya sale","status":"available"}`)
	})
	c, _ := f.client("good", 0)

	_, err := c.SendMessage(context.Background(), "777", "55", strings.Repeat("x", MaxMessageLength+1))
	require.Error(t, err)
	_, err = c.SendMessage(context.Background(), "777", "55", "   ")
	require.Error(t, err)
	assert.EqualValues(t, 0, f.apiCalls.Load())

	m, err := c.SendMessage(context.Background(), "777", "55", " ya sale ")
	require.NoError(t, err)
	assert.Equal(t, FlexID("new-1"), m.ID)
}

func TestClientEnforcesMinimumInterval(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	f.mux.HandleFunc("/items/MLA1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"MLA1","title":"Mate"}`)
	})
	c, _ := f.client("good", 40*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.GetItem(context.Background(), "MLA1")
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestResolveSellerIDFromMe(t *testing.T) {
	f := newFakeAPI(t)
	f.valid["good"] = true
	f.mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":4242,"nickname":"ME"}`)
	})
	tm := NewTokenManager(TokenManagerConfig{}, Token{AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)})
	c := NewClient(Config{BaseURL: f.URL, Tokens: tm})

	id, err := c.ResolveSellerID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4242", id)
	assert.Equal(t, "4242", c.SellerID())
}

func TestFlexIDDecoding(t *testing.T) {
	var v struct {
		A FlexID `json:"a"`
		B FlexID `json:"b"`
		C FlexID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":123456789012,"b":"xyz","c":null}`), &v))
	assert.Equal(t, FlexID("123456789012"), v.A)
	assert.Equal(t, FlexID("xyz"), v.B)
	assert.Equal(t, FlexID(""), v.C)
}
