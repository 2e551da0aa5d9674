package mercadolibre

import (
	"context"
	"fmt"
	"net/url"
)

type User struct {
	ID        int64  `json:"id"`
	Nickname  string `json:"nickname"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	CountryID string `json:"country_id"`
	SiteID    string `json:"site_id"`
}

type Item struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Currency  string  `json:"currency_id"`
	Permalink string  `json:"permalink"`
	Thumbnail string  `json:"thumbnail"`
	Status    string  `json:"status"`
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	var u User
	if err := c.get(ctx, "/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetItem(ctx context.Context, itemID string) (*Item, error) {
	if itemID == "" {
		return nil, fmt.Errorf("item id is required")
	}
	var it Item
	if err := c.get(ctx, "/items/"+url.PathEscape(itemID), nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}
