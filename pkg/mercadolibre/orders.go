package mercadolibre

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

type Order struct {
	ID          int64       `json:"id"`
	Status      string      `json:"status"`
	DateCreated time.Time   `json:"date_created"`
	DateClosed  *time.Time  `json:"date_closed"`
	LastUpdated *time.Time  `json:"last_updated"`
	TotalAmount float64     `json:"total_amount"`
	PaidAmount  float64     `json:"paid_amount"`
	CurrencyID  string      `json:"currency_id"`
	PackID      *int64      `json:"pack_id"`
	Buyer       OrderBuyer  `json:"buyer"`
	Seller      UserRef     `json:"seller"`
	OrderItems  []OrderItem `json:"order_items"`
	Shipping    struct {
		ID int64 `json:"id"`
	} `json:"shipping"`
	Tags []string `json:"tags"`
}

type OrderBuyer struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (b OrderBuyer) DisplayName() string {
	name := b.FirstName
	if b.LastName != "" {
		if name != "" {
			name += " "
		}
		name += b.LastName
	}
	if name == "" {
		return b.Nickname
	}
	return name
}

type UserRef struct {
	ID int64 `json:"id"`
}

type OrderItem struct {
	Item struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		SellerSKU string `json:"seller_sku"`
	} `json:"item"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

// PackKey is the conversation key for the order: the pack id, or the order id
// for orders that were never grouped into a pack.
func (o Order) PackKey() string {
	if o.PackID != nil && *o.PackID != 0 {
		return strconv.FormatInt(*o.PackID, 10)
	}
	return strconv.FormatInt(o.ID, 10)
}

type Paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type OrderSearchResult struct {
	Results []Order `json:"results"`
	Paging  Paging  `json:"paging"`
}

type OrderSearchOptions struct {
	Status string
	From   time.Time
	To     time.Time
	Offset int
	Limit  int // API maximum is 51
	Sort   string
}

const mlDateLayout = "2006-01-02T15:04:05.000-07:00"

func (c *Client) SearchOrders(ctx context.Context, opts OrderSearchOptions) (*OrderSearchResult, error) {
	seller, err := c.ResolveSellerID(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("seller", seller)
	if opts.Status != "" {
		q.Set("order.status", opts.Status)
	}
	if !opts.From.IsZero() {
		q.Set("order.date_created.from", opts.From.Format(mlDateLayout))
	}
	if !opts.To.IsZero() {
		q.Set("order.date_created.to", opts.To.Format(mlDateLayout))
	}
	sort := opts.Sort
	if sort == "" {
		sort = "date_desc"
	}
	q.Set("sort", sort)
	limit := opts.Limit
	if limit <= 0 || limit > 51 {
		limit = 50
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(max(opts.Offset, 0)))

	var res OrderSearchResult
	if err := c.get(ctx, "/orders/search", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SearchAllOrders pages through SearchOrders until maxOrders or the end of results.
func (c *Client) SearchAllOrders(ctx context.Context, opts OrderSearchOptions, maxOrders int) ([]Order, error) {
	var all []Order
	opts.Limit = 50
	for {
		page, err := c.SearchOrders(ctx, opts)
		if err != nil {
			return all, err
		}
		all = append(all, page.Results...)
		opts.Offset += len(page.Results)
		if maxOrders > 0 && len(all) >= maxOrders {
			all = all[:maxOrders]
			break
		}
		if len(page.Results) == 0 || opts.Offset >= page.Paging.Total {
			break
		}
	}
	return all, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	var o Order
	if err := c.get(ctx, "/orders/"+url.PathEscape(orderID), nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
