package woocommerce

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type ProductListOptions struct {
	Page        int
	PerPage     int
	Search      string
	Status      string
	StockStatus string
}

type ProductPage struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	TotalPages int       `json:"total_pages"`
	Page       int       `json:"page"`
}

func (c *Client) ListProducts(ctx context.Context, opts ProductListOptions) (*ProductPage, error) {
	page := max(opts.Page, 1)
	perPage := opts.PerPage
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.StockStatus != "" {
		q.Set("stock_status", opts.StockStatus)
	}

	var products []Product
	h, err := c.do(ctx, http.MethodGet, "/products", q, nil, &products)
	if err != nil {
		return nil, err
	}
	return &ProductPage{
		Products:   products,
		Total:      headerInt(h, "X-WP-Total"),
		TotalPages: headerInt(h, "X-WP-TotalPages"),
		Page:       page,
	}, nil
}

func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
