package feeds

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/zundacast/zundacast/internal/domain"
	"github.com/zundacast/zundacast/internal/logger"
	"github.com/zundacast/zundacast/internal/storage"
)

// Parser retrieves and parses one syndication feed.
type Parser interface {
	ParseURL(ctx context.Context, url string) (*gofeed.Feed, error)
}

// gofeedParser adapts gofeed.Parser to the Parser interface.
type gofeedParser struct {
	parser *gofeed.Parser
}

func (g *gofeedParser) ParseURL(ctx context.Context, url string) (*gofeed.Feed, error) {
	return g.parser.ParseURLWithContext(url, ctx)
}

// jst is the broadcast timezone; entry dates are compared in it.
var jst = time.FixedZone("JST", 9*60*60)

// Collector walks the configured feeds and produces the flat article list the
// rest of the pipeline consumes.
type Collector struct {
	parser    Parser
	store     storage.Store
	todayOnly bool
	now       func() time.Time
	log       logger.Logger
}

// CollectorOptions tunes collection behavior.
type CollectorOptions struct {
	// TodayOnly drops entries whose published/updated date is not today (JST).
	TodayOnly bool
	// Store, when set, skips links already processed by a previous run.
	Store storage.Store
}

// NewCollector builds a collector. A nil parser gets the gofeed default.
func NewCollector(parser Parser, opts CollectorOptions, log logger.Logger) *Collector {
	if parser == nil {
		parser = &gofeedParser{parser: gofeed.NewParser()}
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Collector{
		parser:    parser,
		store:     opts.Store,
		todayOnly: opts.TodayOnly,
		now:       time.Now,
		log:       log,
	}
}

// Collect fetches every configured feed and returns the union of entries in
// per-feed then per-entry order. A failing feed contributes zero entries; an
// entry is included only when it carries a non-empty summary.
func (c *Collector) Collect(ctx context.Context, sources []Feed) []domain.Article {
	var articles []domain.Article

	for _, src := range sources {
		feed, err := c.parser.ParseURL(ctx, src.URL)
		if err != nil {
			c.log.WarnObj("feed fetch failed", "feed_error", map[string]any{
				"feed_id": src.ID,
				"url":     src.URL,
				"error":   err.Error(),
			})
			continue
		}

		collected := 0
		for _, item := range feed.Items {
			art, ok := c.buildArticle(src, item)
			if !ok {
				continue
			}
			articles = append(articles, art)
			collected++
		}

		c.log.InfoObj("feed collected", "feed_result", map[string]any{
			"feed_id":  src.ID,
			"entries":  len(feed.Items),
			"included": collected,
		})
	}

	return articles
}

// buildArticle converts a feed item into an Article, applying the summary,
// date, and seen-link policies.
func (c *Collector) buildArticle(src Feed, item *gofeed.Item) (domain.Article, bool) {
	if item == nil {
		return domain.Article{}, false
	}

	summary := strings.TrimSpace(item.Description)
	if summary == "" {
		return domain.Article{}, false
	}

	if c.todayOnly && !c.publishedToday(item) {
		return domain.Article{}, false
	}

	link := strings.TrimSpace(item.Link)
	if c.store != nil && link != "" {
		seen, err := c.store.SeenLink(link)
		if err != nil {
			c.log.WarnObj("seen-link lookup failed", "storage_error", map[string]any{
				"feed_id": src.ID,
				"link":    link,
				"error":   err.Error(),
			})
		} else if seen {
			return domain.Article{}, false
		}
		if err := c.store.MarkLink(link); err != nil {
			c.log.WarnObj("seen-link mark failed", "storage_error", map[string]any{
				"feed_id": src.ID,
				"link":    link,
				"error":   err.Error(),
			})
		}
	}

	return domain.Article{
		Title:   strings.TrimSpace(item.Title),
		Link:    link,
		Summary: summary,
		Source:  src.Name,
	}, true
}

// publishedToday reports whether the item's published (or updated) date falls
// on today's date in JST. Items without either date are excluded.
func (c *Collector) publishedToday(item *gofeed.Item) bool {
	var entryDate *time.Time
	if item.PublishedParsed != nil {
		entryDate = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		entryDate = item.UpdatedParsed
	}
	if entryDate == nil {
		return false
	}

	ey, em, ed := entryDate.In(jst).Date()
	ty, tm, td := c.now().In(jst).Date()
	return ey == ty && em == tm && ed == td
}
