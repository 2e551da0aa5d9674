package woocommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type OrderListOptions struct {
	Page    int
	PerPage int
	Status  string
	After   time.Time
	Before  time.Time
	Search  string
}

type OrderPage struct {
	Orders     []Order `json:"orders"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Page       int     `json:"page"`
}

func (c *Client) ListOrders(ctx context.Context, opts OrderListOptions) (*OrderPage, error) {
	q := url.Values{}
	page := max(opts.Page, 1)
	perPage := opts.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("orderby", "date")
	q.Set("order", "desc")
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if !opts.After.IsZero() {
		q.Set("after", opts.After.UTC().Format(time.RFC3339))
	}
	if !opts.Before.IsZero() {
		q.Set("before", opts.Before.UTC().Format(time.RFC3339))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}

	var orders []Order
	h, err := c.do(ctx, http.MethodGet, "/orders", q, nil, &orders)
	if err != nil {
		return nil, err
	}
	return &OrderPage{
		Orders:     orders,
		Total:      headerInt(h, "X-WP-Total"),
		TotalPages: headerInt(h, "X-WP-TotalPages"),
		Page:       page,
	}, nil
}

// ListAllOrders walks pages until maxOrders or the last page.
func (c *Client) ListAllOrders(ctx context.Context, opts OrderListOptions, maxOrders int) ([]Order, error) {
	opts.Page = 1
	opts.PerPage = 100
	var all []Order
	for {
		page, err := c.ListOrders(ctx, opts)
		if err != nil {
			return all, err
		}
		all = append(all, page.Orders...)
		if maxOrders > 0 && len(all) >= maxOrders {
			return all[:maxOrders], nil
		}
		if len(page.Orders) == 0 || opts.Page >= page.TotalPages {
			return all, nil
		}
		opts.Page++
	}
}

func (c *Client) GetOrder(ctx context.Context, id int64) (*Order, error) {
	var o Order
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/%d", id), nil, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

var validStatuses = map[string]bool{
	"pending": true, "processing": true, "on-hold": true, "completed": true,
	"cancelled": true, "refunded": true, "failed": true,
}

func (c *Client) UpdateOrderStatus(ctx context.Context, id int64, status string) (*Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid order status %q", status)
	}
	var o Order
	if _, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/orders/%d", id), nil, map[string]string{"status": status}, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// AddOrderNote adds a note to the order. Customer notes are emailed to the
// buyer by WooCommerce itself.
func (c *Client) AddOrderNote(ctx context.Context, id int64, note string, customerNote bool) (*OrderNote, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, fmt.Errorf("note is required")
	}
	body := map[string]any{"note": note, "customer_note": customerNote}
	var n OrderNote
	if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/orders/%d/notes", id), nil, body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
