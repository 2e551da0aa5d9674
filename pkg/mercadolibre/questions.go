package mercadolibre

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const MaxAnswerLength = 2000

type Question struct {
	ID          int64     `json:"id"`
	SellerID    int64     `json:"seller_id"`
	ItemID      string    `json:"item_id"`
	Text        string    `json:"text"`
	Status      string    `json:"status"`
	DateCreated time.Time `json:"date_created"`
	From        UserRef   `json:"from"`
	Answer      *Answer   `json:"answer"`
}

type Answer struct {
	Text        string     `json:"text"`
	Status      string     `json:"status"`
	DateCreated *time.Time `json:"date_created"`
}

type QuestionSearchResult struct {
	Total     int        `json:"total"`
	Limit     int        `json:"limit"`
	Questions []Question `json:"questions"`
}

type QuestionSearchOptions struct {
	Status string // UNANSWERED, ANSWERED, ...
	ItemID string
	Offset int
	Limit  int
}

func (c *Client) SearchQuestions(ctx context.Context, opts QuestionSearchOptions) (*QuestionSearchResult, error) {
	seller, err := c.ResolveSellerID(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("seller_id", seller)
	q.Set("api_version", "4")
	q.Set("sort_fields", "date_created")
	q.Set("sort_types", "DESC")
	if opts.Status != "" {
		q.Set("status", strings.ToUpper(opts.Status))
	}
	if opts.ItemID != "" {
		q.Set("item", opts.ItemID)
	}
	limit := opts.Limit
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(max(opts.Offset, 0)))

	var res QuestionSearchResult
	if err := c.get(ctx, "/questions/search", q, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AnswerQuestion(ctx context.Context, questionID int64, text string) (*Question, error) {
	text = strings.TrimSpace(text)
	if questionID <= 0 {
		return nil, fmt.Errorf("question id is required")
	}
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	if len([]rune(text)) > MaxAnswerLength {
		return nil, fmt.Errorf("answer exceeds %d characters", MaxAnswerLength)
	}
	body := map[string]any{"question_id": questionID, "text": text}
	var q Question
	if err := c.post(ctx, "/answers", nil, body, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
