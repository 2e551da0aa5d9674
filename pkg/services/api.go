package services

import (
	"context"

	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/woocommerce"
)

// MercadoLibreAPI is the part of *mercadolibre.Client the services depend on.
type MercadoLibreAPI interface {
	ResolveSellerID(ctx context.Context) (string, error)
	SearchAllOrders(ctx context.Context, opts mercadolibre.OrderSearchOptions, maxOrders int) ([]mercadolibre.Order, error)
	GetOrder(ctx context.Context, orderID string) (*mercadolibre.Order, error)
	GetAllPackMessages(ctx context.Context, packID string, pageSize int) ([]mercadolibre.Message, error)
	GetMessage(ctx context.Context, messageID string) (*mercadolibre.Message, error)
	SendMessage(ctx context.Context, packID, buyerID, text string) (*mercadolibre.Message, error)
	SearchQuestions(ctx context.Context, opts mercadolibre.QuestionSearchOptions) (*mercadolibre.QuestionSearchResult, error)
	AnswerQuestion(ctx context.Context, questionID int64, text string) (*mercadolibre.Question, error)
	GetItem(ctx context.Context, itemID string) (*mercadolibre.Item, error)
	GetUser(ctx context.Context, userID string) (*mercadolibre.User, error)
}

// WooCommerceAPI is the part of *woocommerce.Client the services depend on.
type WooCommerceAPI interface {
	ListAllOrders(ctx context.Context, opts woocommerce.OrderListOptions, maxOrders int) ([]woocommerce.Order, error)
	GetOrder(ctx context.Context, id int64) (*woocommerce.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (*woocommerce.Order, error)
	AddOrderNote(ctx context.Context, id int64, note string, customerNote bool) (*woocommerce.OrderNote, error)
	ListProducts(ctx context.Context, opts woocommerce.ProductListOptions) (*woocommerce.ProductPage, error)
}

var (
	_ MercadoLibreAPI = (*mercadolibre.Client)(nil)
	_ WooCommerceAPI  = (*woocommerce.Client)(nil)
)
