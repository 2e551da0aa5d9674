package woocommerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const wcTimeLayout = "2006-01-02T15:04:05"

// Time decodes WooCommerce "*_gmt" timestamps, which carry no zone suffix.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" || string(b) == `""` {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		t.Time = parsed.UTC()
		return nil
	}
	parsed, err := time.ParseInLocation(wcTimeLayout, s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Money parses the decimal strings WooCommerce uses for amounts.
type Money string

func (m Money) Float() float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(string(m)), 64)
	return f
}

type Address struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

type LineItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Total     Money   `json:"total"`
	SKU       string  `json:"sku"`
	Price     float64 `json:"price"`
}

type Order struct {
	ID                 int64      `json:"id"`
	Number             string     `json:"number"`
	Status             string     `json:"status"`
	Currency           string     `json:"currency"`
	Total              Money      `json:"total"`
	CustomerID         int64      `json:"customer_id"`
	CustomerNote       string     `json:"customer_note"`
	PaymentMethodTitle string     `json:"payment_method_title"`
	DateCreated        Time       `json:"date_created_gmt"`
	DateModified       Time       `json:"date_modified_gmt"`
	DatePaid           Time       `json:"date_paid_gmt"`
	Billing            Address    `json:"billing"`
	Shipping           Address    `json:"shipping"`
	LineItems          []LineItem `json:"line_items"`
}

func (o Order) TotalAmount() float64 {
	return o.Total.Float()
}

type OrderNote struct {
	ID           int64  `json:"id"`
	Note         string `json:"note"`
	CustomerNote bool   `json:"customer_note"`
	DateCreated  Time   `json:"date_created_gmt"`
}

type Product struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Permalink     string  `json:"permalink"`
	Status        string  `json:"status"`
	SKU           string  `json:"sku"`
	Price         Money   `json:"price"`
	RegularPrice  Money   `json:"regular_price"`
	SalePrice     Money   `json:"sale_price"`
	StockStatus   string  `json:"stock_status"`
	StockQuantity *int    `json:"stock_quantity"`
	TotalSales    FlexInt `json:"total_sales"`
	Images        []struct {
		Src string `json:"src"`
	} `json:"images"`
}

// FlexInt accepts numbers or numeric strings; total_sales changed type across versions.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}
