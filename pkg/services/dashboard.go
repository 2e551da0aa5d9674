package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"SellerHub/pkg/cache"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"
	"SellerHub/pkg/store"
	"SellerHub/pkg/woocommerce"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type UnifiedItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku,omitempty"`
	Quantity  int     `json:"quantity"`
	Total     float64 `json:"total"`
}

// UnifiedOrder is an order from either platform in one shape.
type UnifiedOrder struct {
	ID            string        `json:"id"` // platform:order_id
	Platform      string        `json:"platform"`
	OrderID       string        `json:"order_id"`
	Number        string        `json:"number"`
	Status        string        `json:"status"`
	RawStatus     string        `json:"raw_status"`
	CustomerID    string        `json:"customer_id,omitempty"`
	CustomerName  string        `json:"customer_name"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency"`
	CreatedAt     time.Time     `json:"created_at"`
	PackID        string        `json:"pack_id,omitempty"`
	Items         []UnifiedItem `json:"items"`
	ItemCount     int           `json:"item_count"`
}

func fromMercadoLibre(o mercadolibre.Order) UnifiedOrder {
	id := strconv.FormatInt(o.ID, 10)
	u := UnifiedOrder{
		ID:           PlatformMercadoLibre + ":" + id,
		Platform:     PlatformMercadoLibre,
		OrderID:      id,
		Number:       id,
		Status:       NormalizeStatus(PlatformMercadoLibre, o.Status),
		RawStatus:    o.Status,
		CustomerName: o.Buyer.DisplayName(),
		Total:        o.TotalAmount,
		Currency:     o.CurrencyID,
		CreatedAt:    o.DateCreated,
		PackID:       o.PackKey(),
	}
	if o.Buyer.ID != 0 {
		u.CustomerID = strconv.FormatInt(o.Buyer.ID, 10)
	}
	for _, it := range o.OrderItems {
		u.Items = append(u.Items, UnifiedItem{
			ProductID: it.Item.ID,
			Name:      it.Item.Title,
			SKU:       it.Item.SellerSKU,
			Quantity:  it.Quantity,
			Total:     roundCents(it.UnitPrice * float64(it.Quantity)),
		})
		u.ItemCount += it.Quantity
	}
	return u
}

func fromWooCommerce(o woocommerce.Order) UnifiedOrder {
	id := strconv.FormatInt(o.ID, 10)
	u := UnifiedOrder{
		ID:            PlatformWooCommerce + ":" + id,
		Platform:      PlatformWooCommerce,
		OrderID:       id,
		Number:        firstNonEmpty(o.Number, id),
		Status:        NormalizeStatus(PlatformWooCommerce, o.Status),
		RawStatus:     o.Status,
		CustomerName:  o.Billing.FullName(),
		CustomerEmail: strings.ToLower(strings.TrimSpace(o.Billing.Email)),
		Total:         o.TotalAmount(),
		Currency:      o.Currency,
		CreatedAt:     o.DateCreated.Time,
	}
	if o.CustomerID != 0 {
		u.CustomerID = strconv.FormatInt(o.CustomerID, 10)
	}
	if u.CustomerName == "" {
		u.CustomerName = firstNonEmpty(o.Shipping.FullName(), u.CustomerEmail, "Guest")
	}
	for _, it := range o.LineItems {
		u.Items = append(u.Items, UnifiedItem{
			ProductID: strconv.FormatInt(it.ProductID, 10),
			Name:      it.Name,
			SKU:       it.SKU,
			Quantity:  it.Quantity,
			Total:     it.Total.Float(),
		})
		u.ItemCount += it.Quantity
	}
	return u
}

type DashboardConfig struct {
	LookbackDays int
	MaxOrders    int
	CacheTTL     time.Duration
}

// DashboardService combines both platforms into one order list.
type DashboardService struct {
	ml        MercadoLibreAPI
	woo       WooCommerceAPI
	cache     cache.Store
	store     *store.Store
	questions *QuestionService
	hub       *notify.Hub
	cfg       DashboardConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewDashboardService(ml MercadoLibreAPI, woo WooCommerceAPI, c cache.Store, st *store.Store, questions *QuestionService, hub *notify.Hub, cfg DashboardConfig) *DashboardService {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.MaxOrders <= 0 {
		cfg.MaxOrders = 500
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &DashboardService{
		ml:        ml,
		woo:       woo,
		cache:     c,
		store:     st,
		questions: questions,
		hub:       hub,
		cfg:       cfg,
		log:       logger.Component("dashboard"),
		now:       time.Now,
	}
}

func (d *DashboardService) cacheKey(platform string) string {
	return "orders:" + platform + ":" + strconv.Itoa(d.cfg.LookbackDays)
}

func (d *DashboardService) mlOrders(ctx context.Context, refresh bool) ([]mercadolibre.Order, error) {
	key := d.cacheKey(PlatformMercadoLibre)
	var orders []mercadolibre.Order
	if !refresh && d.cache != nil && cache.GetJSON(ctx, d.cache, key, &orders) == nil {
		return orders, nil
	}
	orders, err := d.ml.SearchAllOrders(ctx, mercadolibre.OrderSearchOptions{
		From: d.now().AddDate(0, 0, -d.cfg.LookbackDays),
	}, d.cfg.MaxOrders)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if err := cache.SetJSON(ctx, d.cache, key, orders, d.cfg.CacheTTL); err != nil {
			d.log.Warn().Err(err).Msg("cache mercadolibre orders failed")
		}
	}
	return orders, nil
}

func (d *DashboardService) wooOrders(ctx context.Context, refresh bool) ([]woocommerce.Order, error) {
	key := d.cacheKey(PlatformWooCommerce)
	var orders []woocommerce.Order
	if !refresh && d.cache != nil && cache.GetJSON(ctx, d.cache, key, &orders) == nil {
		return orders, nil
	}
	orders, err := d.woo.ListAllOrders(ctx, woocommerce.OrderListOptions{
		After: d.now().AddDate(0, 0, -d.cfg.LookbackDays),
	}, d.cfg.MaxOrders)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if err := cache.SetJSON(ctx, d.cache, key, orders, d.cfg.CacheTTL); err != nil {
			d.log.Warn().Err(err).Msg("cache woocommerce orders failed")
		}
	}
	return orders, nil
}

// fetchAll loads both platforms concurrently. A failing platform becomes a
// warning; only context cancellation is an error.
func (d *DashboardService) fetchAll(ctx context.Context, refresh bool) ([]UnifiedOrder, []string, error) {
	if d.ml == nil && d.woo == nil {
		return nil, nil, ErrNotConfigured
	}
	var (
		mu       sync.Mutex
		all      []UnifiedOrder
		warnings []string
	)
	warn := func(platform string, err error) {
		d.log.Warn().Err(err).Str("platform", platform).Msg("order fetch failed")
		mu.Lock()
		warnings = append(warnings, fmt.Sprintf("%s: %v", platform, err))
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	if d.ml != nil {
		g.Go(func() error {
			orders, err := d.mlOrders(gctx, refresh)
			if err != nil {
				warn(PlatformMercadoLibre, err)
				return nil
			}
			mu.Lock()
			for _, o := range orders {
				all = append(all, fromMercadoLibre(o))
			}
			mu.Unlock()
			return nil
		})
	}
	if d.woo != nil {
		g.Go(func() error {
			orders, err := d.wooOrders(gctx, refresh)
			if err != nil {
				warn(PlatformWooCommerce, err)
				return nil
			}
			mu.Lock()
			for _, o := range orders {
				all = append(all, fromWooCommerce(o))
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	sort.Strings(warnings)
	return all, warnings, nil
}

type OrderQuery struct {
	Platform string
	Status   string
	Search   string
	Sort     string // date_desc (default), date_asc, total_desc, total_asc
	Page     int
	PerPage  int
	Refresh  bool
}

type OrderList struct {
	Orders []UnifiedOrder `json:"orders"`
	PageInfo
	Warnings []string `json:"warnings,omitempty"`
}

func matchesOrder(o UnifiedOrder, q OrderQuery, term string) bool {
	if q.Platform != "" && q.Platform != "all" && o.Platform != q.Platform {
		return false
	}
	if q.Status != "" && q.Status != "all" && o.Status != q.Status && o.RawStatus != q.Status {
		return false
	}
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(o.CustomerName), term) ||
		strings.Contains(o.CustomerEmail, term) ||
		strings.Contains(o.OrderID, term) ||
		strings.Contains(strings.ToLower(o.Number), term) {
		return true
	}
	for _, it := range o.Items {
		if strings.Contains(strings.ToLower(it.Name), term) {
			return true
		}
	}
	return false
}

func sortOrders(orders []UnifiedOrder, by string) {
	var less func(a, b UnifiedOrder) bool
	switch by {
	case "date_asc":
		less = func(a, b UnifiedOrder) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "total_desc":
		less = func(a, b UnifiedOrder) bool { return a.Total > b.Total }
	case "total_asc":
		less = func(a, b UnifiedOrder) bool { return a.Total < b.Total }
	default:
		less = func(a, b UnifiedOrder) bool { return a.CreatedAt.After(b.CreatedAt) }
	}
	sort.SliceStable(orders, func(i, j int) bool { return less(orders[i], orders[j]) })
}

func (d *DashboardService) Orders(ctx context.Context, q OrderQuery) (*OrderList, error) {
	all, warnings, err := d.fetchAll(ctx, q.Refresh)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	q.Status = strings.ToLower(strings.TrimSpace(q.Status))
	filtered := make([]UnifiedOrder, 0, len(all))
	for _, o := range all {
		if matchesOrder(o, q, term) {
			filtered = append(filtered, o)
		}
	}
	sortOrders(filtered, q.Sort)
	page, info := Paginate(filtered, q.Page, q.PerPage)
	return &OrderList{Orders: page, PageInfo: info, Warnings: warnings}, nil
}

// GetOrder fetches one order live from its platform.
func (d *DashboardService) GetOrder(ctx context.Context, platform, id string) (*UnifiedOrder, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("order id is required")
	}
	switch platform {
	case PlatformMercadoLibre:
		if d.ml == nil {
			return nil, ErrNotConfigured
		}
		o, err := d.ml.GetOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		u := fromMercadoLibre(*o)
		return &u, nil
	case PlatformWooCommerce:
		if d.woo == nil {
			return nil, ErrNotConfigured
		}
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, invalid("order id must be numeric")
		}
		o, err := d.woo.GetOrder(ctx, n)
		if err != nil {
			return nil, err
		}
		u := fromWooCommerce(*o)
		return &u, nil
	default:
		return nil, invalid("unknown platform %q", platform)
	}
}

type ProductStat struct {
	Name     string  `json:"name"`
	Platform string  `json:"platform"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

type Stats struct {
	TotalRevenue        float64            `json:"total_revenue"`
	TotalOrders         int                `json:"total_orders"`
	AverageOrderValue   float64            `json:"average_order_value"`
	OrdersByPlatform    map[string]int     `json:"orders_by_platform"`
	RevenueByPlatform   map[string]float64 `json:"revenue_by_platform"`
	OrdersByStatus      map[string]int     `json:"orders_by_status"`
	TopProducts         []ProductStat      `json:"top_products"`
	RecentOrders        []UnifiedOrder     `json:"recent_orders"`
	Customers           int                `json:"customers"`
	Conversations       int64              `json:"conversations"`
	UnreadConversations int64              `json:"unread_conversations"`
	UnansweredQuestions int                `json:"unanswered_questions"`
	LookbackDays        int                `json:"lookback_days"`
	Warnings            []string           `json:"warnings,omitempty"`
}

// ComputeStats derives dashboard figures from orders. Revenue, average and
// top products ignore cancelled, refunded and failed orders.
func ComputeStats(orders []UnifiedOrder) Stats {
	st := Stats{
		OrdersByPlatform:  map[string]int{},
		RevenueByPlatform: map[string]float64{},
		OrdersByStatus:    map[string]int{},
	}
	products := map[string]*ProductStat{}
	paid := 0
	for _, o := range orders {
		st.TotalOrders++
		st.OrdersByPlatform[o.Platform]++
		st.OrdersByStatus[o.Status]++
		if !countsAsRevenue(o.Status) {
			continue
		}
		paid++
		st.TotalRevenue += o.Total
		st.RevenueByPlatform[o.Platform] += o.Total
		for _, it := range o.Items {
			key := o.Platform + ":" + strings.ToLower(it.Name)
			p, ok := products[key]
			if !ok {
				p = &ProductStat{Name: it.Name, Platform: o.Platform}
				products[key] = p
			}
			p.Quantity += it.Quantity
			p.Revenue += it.Total
		}
	}
	st.TotalRevenue = roundCents(st.TotalRevenue)
	for k, v := range st.RevenueByPlatform {
		st.RevenueByPlatform[k] = roundCents(v)
	}
	if paid > 0 {
		st.AverageOrderValue = roundCents(st.TotalRevenue / float64(paid))
	}
	for _, p := range products {
		p.Revenue = roundCents(p.Revenue)
		st.TopProducts = append(st.TopProducts, *p)
	}
	sort.Slice(st.TopProducts, func(i, j int) bool {
		a, b := st.TopProducts[i], st.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.Name < b.Name
	})
	if len(st.TopProducts) > 5 {
		st.TopProducts = st.TopProducts[:5]
	}
	recent := make([]UnifiedOrder, len(orders))
	copy(recent, orders)
	sortOrders(recent, "date_desc")
	if len(recent) > 5 {
		recent = recent[:5]
	}
	st.RecentOrders = recent
	st.Customers = len(AggregateCustomers(orders))
	return st
}

func (d *DashboardService) Stats(ctx context.Context, refresh bool) (*Stats, error) {
	all, warnings, err := d.fetchAll(ctx, refresh)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}
	st := ComputeStats(all)
	st.LookbackDays = d.cfg.LookbackDays
	st.Warnings = warnings

	if d.store != nil {
		if total, unread, err := d.store.CountConversations(ctx); err == nil {
			st.Conversations, st.UnreadConversations = total, unread
		} else {
			st.Warnings = append(st.Warnings, "conversations: "+err.Error())
		}
	}
	if d.questions != nil && d.ml != nil {
		if n, err := d.questions.Unanswered(ctx); err == nil {
			st.UnansweredQuestions = n
		} else {
			st.Warnings = append(st.Warnings, "questions: "+err.Error())
		}
	}
	return &st, nil
}

type CustomerQuery struct {
	Platform string
	Search   string
	Page     int
	PerPage  int
	Refresh  bool
}

type CustomerList struct {
	Customers []Customer `json:"customers"`
	PageInfo
	Warnings []string `json:"warnings,omitempty"`
}

func (d *DashboardService) Customers(ctx context.Context, q CustomerQuery) (*CustomerList, error) {
	all, warnings, err := d.fetchAll(ctx, q.Refresh)
	if err != nil {
		return nil, err
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	var out []Customer
	for _, c := range AggregateCustomers(all) {
		if q.Platform != "" && q.Platform != "all" && c.Platform != q.Platform {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(c.Name), term) && !strings.Contains(c.Email, term) {
			continue
		}
		out = append(out, c)
	}
	page, info := Paginate(out, q.Page, q.PerPage)
	return &CustomerList{Customers: page, PageInfo: info, Warnings: warnings}, nil
}

type ProductQuery struct {
	Search      string
	StockStatus string
	Page        int
	PerPage     int
}

func (d *DashboardService) Products(ctx context.Context, q ProductQuery) (*woocommerce.ProductPage, error) {
	if d.woo == nil {
		return nil, ErrNotConfigured
	}
	return d.woo.ListProducts(ctx, woocommerce.ProductListOptions{
		Page:        q.Page,
		PerPage:     q.PerPage,
		Search:      strings.TrimSpace(q.Search),
		StockStatus: q.StockStatus,
	})
}

// Invalidate drops cached order lists so the next read goes upstream.
func (d *DashboardService) Invalidate(ctx context.Context) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Del(ctx, d.cacheKey(PlatformMercadoLibre), d.cacheKey(PlatformWooCommerce)); err != nil {
		d.log.Warn().Err(err).Msg("invalidate order cache failed")
	}
}

func (d *DashboardService) wooOrderID(id string) (int64, error) {
	if d.woo == nil {
		return 0, ErrNotConfigured
	}
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, invalid("order id must be a positive number")
	}
	return n, nil
}

// AddWooNote relays a note to a WooCommerce order. Customer notes are
// emailed to the buyer by the shop.
func (d *DashboardService) AddWooNote(ctx context.Context, id, note string, customerNote bool) (*woocommerce.OrderNote, error) {
	n, err := d.wooOrderID(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(note) == "" {
		return nil, invalid("note is required")
	}
	out, err := d.woo.AddOrderNote(ctx, n, note, customerNote)
	if err != nil {
		return nil, err
	}
	d.hub.Publish(notify.Event{
		Type:     notify.EventOrderUpdate,
		Platform: PlatformWooCommerce,
		Data:     map[string]any{"order_id": id, "note_id": out.ID, "customer_note": customerNote},
	})
	return out, nil
}

func (d *DashboardService) UpdateWooStatus(ctx context.Context, id, status string) (*UnifiedOrder, error) {
	n, err := d.wooOrderID(id)
	if err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if _, ok := wooStatuses[status]; !ok {
		return nil, invalid("unknown status %q", status)
	}
	o, err := d.woo.UpdateOrderStatus(ctx, n, status)
	if err != nil {
		return nil, err
	}
	d.Invalidate(ctx)
	u := fromWooCommerce(*o)
	d.hub.Publish(notify.Event{Type: notify.EventOrderUpdate, Platform: PlatformWooCommerce, Data: u})
	return &u, nil
}

// HandleOrderNotification reacts to an order webhook from either platform.
func (d *DashboardService) HandleOrderNotification(ctx context.Context, platform, resource string) {
	d.Invalidate(ctx)
	id := resource
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		id = resource[i+1:]
	}
	data := map[string]any{"order_id": id}
	if u, err := d.GetOrder(ctx, platform, id); err == nil {
		data["order"] = u
	} else {
		d.log.Debug().Err(err).Str("platform", platform).Str("order_id", id).Msg("order lookup after notification failed")
	}
	d.hub.Publish(notify.Event{Type: notify.EventOrderUpdate, Platform: platform, Data: data})
}
