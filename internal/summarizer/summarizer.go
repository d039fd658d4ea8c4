package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/zundacast/zundacast/internal/domain"
	"github.com/zundacast/zundacast/internal/llm"
	"github.com/zundacast/zundacast/internal/logger"
	"github.com/zundacast/zundacast/pkg/httpclient"
)

const (
	// minArticleRunes is the shortest extracted body worth summarizing;
	// anything shorter falls back to the feed summary.
	minArticleRunes = 100
	// maxArticleRunes bounds the text submitted to the model.
	maxArticleRunes  = 15000
	truncationMarker = "..."

	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

const batchInstruction = `以下の記事を、ラジオ放送で紹介するための要約にしてください。
- 要約は5-7分で読み上げられる量にしてください（約1000-1500字程度）。
- 記事の主要なポイント、なぜこの話題が重要なのか、読者にとってのメリットを含めてください。
- 具体的なデータや数字、例があれば含めてください。
- 専門用語は簡単に説明してください。

記事は複数あります。summaries には、記事と同じ順番で1件ずつ要約を入れてください。`

// batchSchema constrains the model to one summary string per article,
// positionally aligned with the inputs.
const batchSchema = `{
  "type": "object",
  "properties": {
    "summaries": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "summary": {"type": "string"}
        },
        "required": ["summary"]
      }
    }
  },
  "required": ["summaries"]
}`

// Result records how an article's AISummary was produced. Fallback is true
// when the feed summary was reused; Reason names the failure path.
type Result struct {
	Article  domain.Article
	Fallback bool
	Reason   string
}

// Articles flattens results back into the article list, order preserved.
func Articles(results []Result) []domain.Article {
	out := make([]domain.Article, len(results))
	for i, r := range results {
		out[i] = r.Article
	}
	return out
}

// batchInput is one qualifying article prepared for the model call.
type batchInput struct {
	Title string
	Link  string
	Text  string
}

type batchItem struct {
	Summary string `json:"summary"`
}

type batchReply struct {
	Summaries []batchItem `json:"summaries"`
}

// Summarizer fetches article pages, extracts their body text, and asks the
// model for broadcast-style summaries in one batched structured call.
type Summarizer struct {
	client httpclient.Client
	llm    llm.Client
	log    logger.Logger
}

// New builds a summarizer over the given HTTP and model clients.
func New(client httpclient.Client, llmClient llm.Client, log logger.Logger) *Summarizer {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Summarizer{client: client, llm: llmClient, log: log}
}

// Summarize produces one Result per input article, order preserved. Articles
// whose page cannot be fetched or whose extracted text is too short fall back
// to the feed summary without a model call; the rest are summarized in a
// single batched call, falling back individually when the batch comes up
// short and collectively when it fails outright.
func (s *Summarizer) Summarize(ctx context.Context, articles []domain.Article) []Result {
	results := make([]Result, len(articles))
	var inputs []batchInput
	var positions []int

	for i, art := range articles {
		page := s.fetchPage(ctx, art.Link)
		if len(page) == 0 {
			results[i] = fallbackResult(art, "page fetch failed")
			continue
		}

		text := ExtractText(page, art.Link)
		if runeLen(text) < minArticleRunes {
			results[i] = fallbackResult(art, "article text too short")
			continue
		}

		inputs = append(inputs, batchInput{
			Title: art.Title,
			Link:  art.Link,
			Text:  Truncate(text, maxArticleRunes),
		})
		positions = append(positions, i)
		results[i] = Result{Article: art}
	}

	if len(inputs) == 0 {
		return results
	}

	summaries, err := s.summarizeBatch(inputs)
	if err != nil {
		s.log.ErrorObj("batch summarization failed", "batch_error", map[string]any{
			"articles": len(inputs),
			"error":    err.Error(),
		})
		for _, pos := range positions {
			results[pos] = fallbackResult(results[pos].Article, "batch summarization failed")
		}
		return results
	}

	for j, pos := range positions {
		if j < len(summaries) && strings.TrimSpace(summaries[j]) != "" {
			art := results[pos].Article
			art.AISummary = summaries[j]
			results[pos] = Result{Article: art}
		} else {
			results[pos] = fallbackResult(results[pos].Article, "missing batch result")
		}
	}

	return results
}

// fetchPage retrieves the raw article page with a browser-like user agent.
// Any network or status failure yields an empty body.
func (s *Summarizer) fetchPage(ctx context.Context, url string) []byte {
	if strings.TrimSpace(url) == "" {
		return nil
	}

	resp, err := s.client.Get(ctx, url, map[string]string{"User-Agent": browserUserAgent})
	if err != nil {
		s.log.WarnObj("article fetch failed", "fetch_error", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return nil
	}
	if resp.StatusCode() != http.StatusOK {
		s.log.WarnObj("article fetch returned non-200", "fetch_error", map[string]any{
			"url":    url,
			"status": resp.StatusCode(),
		})
		return nil
	}
	return resp.Body()
}

// summarizeBatch issues one structured model call covering every qualifying
// article and returns the summaries in input order.
func (s *Summarizer) summarizeBatch(inputs []batchInput) ([]string, error) {
	var b strings.Builder
	b.WriteString(batchInstruction)
	for i, in := range inputs {
		fmt.Fprintf(&b, "\n\n## 記事%d\n記事タイトル: %s\n記事ソース: %s\n\n記事本文:\n%s", i+1, in.Title, in.Link, in.Text)
	}

	raw, err := s.llm.InvokeStructured("", b.String(), batchSchema)
	if err != nil {
		return nil, err
	}

	var reply batchReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("decode batch reply: %w", err)
	}

	out := make([]string, 0, len(reply.Summaries))
	for _, item := range reply.Summaries {
		out = append(out, item.Summary)
	}
	return out, nil
}

func fallbackResult(art domain.Article, reason string) Result {
	art.AISummary = art.Summary
	return Result{Article: art, Fallback: true, Reason: reason}
}

// Truncate caps text at max runes, appending the truncation marker when the
// text was cut.
func Truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + truncationMarker
}

func runeLen(s string) int { return len([]rune(s)) }
