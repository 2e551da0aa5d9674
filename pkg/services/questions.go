package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"SellerHub/pkg/cache"
	"SellerHub/pkg/logger"
	"SellerHub/pkg/mercadolibre"
	"SellerHub/pkg/notify"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type QuestionService struct {
	ml      MercadoLibreAPI
	cache   cache.Store
	hub     *notify.Hub
	itemTTL time.Duration
	log     zerolog.Logger
	now     func() time.Time
}

func NewQuestionService(ml MercadoLibreAPI, c cache.Store, hub *notify.Hub) *QuestionService {
	return &QuestionService{
		ml:      ml,
		cache:   c,
		hub:     hub,
		itemTTL: 6 * time.Hour,
		log:     logger.Component("questions"),
		now:     time.Now,
	}
}

type QuestionView struct {
	mercadolibre.Question
	ItemTitle     string `json:"item_title"`
	ItemPermalink string `json:"item_permalink,omitempty"`
	CreatedAgo    string `json:"created_ago"`
}

type QuestionList struct {
	Questions []QuestionView `json:"questions"`
	PageInfo
}

type QuestionQuery struct {
	Status  string
	ItemID  string
	Page    int
	PerPage int
}

func (s *QuestionService) List(ctx context.Context, q QuestionQuery) (*QuestionList, error) {
	if s.ml == nil {
		return nil, ErrNotConfigured
	}
	page := max(q.Page, 1)
	perPage := q.PerPage
	if perPage <= 0 || perPage > 50 {
		perPage = 20
	}
	res, err := s.ml.SearchQuestions(ctx, mercadolibre.QuestionSearchOptions{
		Status: q.Status,
		ItemID: q.ItemID,
		Offset: (page - 1) * perPage,
		Limit:  perPage,
	})
	if err != nil {
		return nil, err
	}

	items := s.items(ctx, res.Questions)
	now := s.now()
	out := &QuestionList{
		Questions: make([]QuestionView, 0, len(res.Questions)),
		PageInfo:  PageInfo{Page: page, PerPage: perPage, Total: res.Total, TotalPages: (res.Total + perPage - 1) / perPage},
	}
	for _, qu := range res.Questions {
		v := QuestionView{Question: qu, CreatedAgo: FormatMessageDate(qu.DateCreated, now)}
		if it, ok := items[qu.ItemID]; ok {
			v.ItemTitle = it.Title
			v.ItemPermalink = it.Permalink
		}
		out.Questions = append(out.Questions, v)
	}
	return out, nil
}

// items resolves listing titles for the questions, four lookups at a time.
// Lookup failures leave the title empty.
func (s *QuestionService) items(ctx context.Context, qs []mercadolibre.Question) map[string]mercadolibre.Item {
	var (
		mu  sync.Mutex
		out = make(map[string]mercadolibre.Item)
	)
	seen := make(map[string]bool)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, q := range qs {
		id := q.ItemID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			it, ok := s.item(gctx, id)
			if ok {
				mu.Lock()
				out[id] = it
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *QuestionService) item(ctx context.Context, id string) (mercadolibre.Item, bool) {
	key := "ml:item:" + id
	var it mercadolibre.Item
	if s.cache != nil {
		if err := cache.GetJSON(ctx, s.cache, key, &it); err == nil {
			return it, true
		}
	}
	got, err := s.ml.GetItem(ctx, id)
	if err != nil {
		s.log.Debug().Err(err).Str("item_id", id).Msg("item lookup failed")
		return mercadolibre.Item{}, false
	}
	if s.cache != nil {
		_ = cache.SetJSON(ctx, s.cache, key, got, s.itemTTL)
	}
	return *got, true
}

func (s *QuestionService) Answer(ctx context.Context, questionID int64, text string) (*mercadolibre.Question, error) {
	text = strings.TrimSpace(text)
	switch {
	case questionID <= 0:
		return nil, invalid("question id is required")
	case text == "":
		return nil, invalid("answer text is required")
	case len([]rune(text)) > mercadolibre.MaxAnswerLength:
		return nil, invalid("answer exceeds %d characters", mercadolibre.MaxAnswerLength)
	}
	if s.ml == nil {
		return nil, ErrNotConfigured
	}
	q, err := s.ml.AnswerQuestion(ctx, questionID, text)
	if err != nil {
		return nil, err
	}
	s.hub.Publish(notify.Event{
		Type:     notify.EventQuestionAnswered,
		Platform: PlatformMercadoLibre,
		Data:     map[string]any{"question_id": questionID, "item_id": q.ItemID},
	})
	return q, nil
}

// HandleQuestionNotification forwards a "questions" webhook to subscribers.
func (s *QuestionService) HandleQuestionNotification(resource string) {
	id := resource
	if i := strings.LastIndex(resource, "/"); i >= 0 {
		id = resource[i+1:]
	}
	s.hub.Publish(notify.Event{
		Type:     notify.EventNewQuestion,
		Platform: PlatformMercadoLibre,
		Data:     map[string]any{"question_id": id, "resource": resource},
	})
}

// Unanswered returns how many questions wait for an answer.
func (s *QuestionService) Unanswered(ctx context.Context) (int, error) {
	if s.ml == nil {
		return 0, ErrNotConfigured
	}
	res, err := s.ml.SearchQuestions(ctx, mercadolibre.QuestionSearchOptions{Status: "UNANSWERED", Limit: 1})
	if err != nil {
		return 0, err
	}
	return res.Total, nil
}
