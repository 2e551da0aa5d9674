package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	PlatformMercadoLibre = "mercadolibre"
	PlatformWooCommerce  = "woocommerce"
)

// Unified order statuses.
const (
	StatusPending    = "pending"
	StatusPaid       = "paid"
	StatusProcessing = "processing"
	StatusOnHold     = "on_hold"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
	StatusFailed     = "failed"
)

var mlStatuses = map[string]string{
	"confirmed":          StatusPending,
	"payment_required":   StatusPending,
	"payment_in_process": StatusPending,
	"partially_paid":     StatusPaid,
	"paid":               StatusPaid,
	"pending_cancel":     StatusCancelled,
	"cancelled":          StatusCancelled,
	"invalid":            StatusCancelled,
	"partially_refunded": StatusRefunded,
}

var wooStatuses = map[string]string{
	"pending":    StatusPending,
	"processing": StatusProcessing,
	"on-hold":    StatusOnHold,
	"completed":  StatusCompleted,
	"cancelled":  StatusCancelled,
	"refunded":   StatusRefunded,
	"failed":     StatusFailed,
}

// NormalizeStatus maps a platform order status onto the unified set.
// Unknown values pass through lowercased.
func NormalizeStatus(platform, raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var table map[string]string
	switch platform {
	case PlatformMercadoLibre:
		table = mlStatuses
	case PlatformWooCommerce:
		table = wooStatuses
	}
	if v, ok := table[s]; ok {
		return v
	}
	return s
}

// countsAsRevenue excludes orders whose money never arrived or went back.
func countsAsRevenue(status string) bool {
	switch status {
	case StatusCancelled, StatusRefunded, StatusFailed:
		return false
	}
	return true
}

type Customer struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Platform     string    `json:"platform"`
	OrderCount   int       `json:"order_count"`
	TotalSpent   float64   `json:"total_spent"`
	AverageOrder float64   `json:"average_order"`
	FirstOrderAt time.Time `json:"first_order_at"`
	LastOrderAt  time.Time `json:"last_order_at"`
}

func customerKey(o UnifiedOrder) string {
	switch {
	case o.CustomerEmail != "":
		return o.Platform + ":" + strings.ToLower(o.CustomerEmail)
	case o.CustomerID != "" && o.CustomerID != "0":
		return o.Platform + ":id:" + o.CustomerID
	default:
		return o.Platform + ":name:" + strings.ToLower(o.CustomerName)
	}
}

// AggregateCustomers groups orders per customer. Every order counts towards
// OrderCount; only revenue statuses add to TotalSpent. Result is sorted by
// TotalSpent, highest first.
func AggregateCustomers(orders []UnifiedOrder) []Customer {
	byKey := make(map[string]*Customer)
	var keys []string
	for _, o := range orders {
		k := customerKey(o)
		c, ok := byKey[k]
		if !ok {
			c = &Customer{ID: k, Name: o.CustomerName, Email: o.CustomerEmail, Platform: o.Platform}
			byKey[k] = c
			keys = append(keys, k)
		}
		c.OrderCount++
		if countsAsRevenue(o.Status) {
			c.TotalSpent += o.Total
		}
		if c.Name == "" {
			c.Name = o.CustomerName
		}
		if c.FirstOrderAt.IsZero() || o.CreatedAt.Before(c.FirstOrderAt) {
			c.FirstOrderAt = o.CreatedAt
		}
		if o.CreatedAt.After(c.LastOrderAt) {
			c.LastOrderAt = o.CreatedAt
			if o.CustomerName != "" {
				c.Name = o.CustomerName
			}
		}
	}

	out := make([]Customer, 0, len(keys))
	for _, k := range keys {
		c := byKey[k]
		c.TotalSpent = roundCents(c.TotalSpent)
		if c.OrderCount > 0 {
			c.AverageOrder = roundCents(c.TotalSpent / float64(c.OrderCount))
		}
		out = append(out, *c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalSpent != out[j].TotalSpent {
			return out[i].TotalSpent > out[j].TotalSpent
		}
		return out[i].LastOrderAt.After(out[j].LastOrderAt)
	})
	return out
}

func roundCents(v float64) float64 {
	if v < 0 {
		return -roundCents(-v)
	}
	return float64(int64(v*100+0.5)) / 100
}

// FormatMessageDate renders t relative to now for thread lists.
func FormatMessageDate(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 48*time.Hour:
		return "yesterday"
	case d < 7*24*time.Hour:
		return t.Weekday().String()
	case t.Year() == now.Year():
		return t.Format("Jan 2")
	default:
		return t.Format("Jan 2, 2006")
	}
}

type PageInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Paginate slices items for a 1-based page. Out-of-range pages return an empty slice.
func Paginate[T any](items []T, page, perPage int) ([]T, PageInfo) {
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 200 {
		perPage = 200
	}
	if page <= 0 {
		page = 1
	}
	info := PageInfo{Page: page, PerPage: perPage, Total: len(items)}
	info.TotalPages = (len(items) + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start >= len(items) {
		return []T{}, info
	}
	end := min(start+perPage, len(items))
	return items[start:end], info
}
