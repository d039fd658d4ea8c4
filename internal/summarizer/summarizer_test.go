package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/zundacast/zundacast/internal/domain"
	"github.com/zundacast/zundacast/pkg/httpclient"
)

// fakeResponse implements httpclient.Response.
type fakeResponse struct {
	body   []byte
	status int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.status }

// fakeHTTP serves canned pages keyed by URL.
type fakeHTTP struct {
	pages  map[string]string
	status map[string]int
	errs   map[string]error
}

func (f *fakeHTTP) Get(_ context.Context, url string, _ map[string]string) (httpclient.Response, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	status := f.status[url]
	if status == 0 {
		status = http.StatusOK
	}
	return fakeResponse{body: []byte(f.pages[url]), status: status}, nil
}

func (f *fakeHTTP) Post(_ context.Context, _ string, _ map[string]string, _ []byte, _ map[string]string) (httpclient.Response, error) {
	return nil, errors.New("unexpected post")
}

// fakeLLM returns a preset structured reply and records calls.
type fakeLLM struct {
	reply string
	err   error
	calls int
	user  string
}

func (f *fakeLLM) Invoke(_, _ string) (string, error) {
	return "", errors.New("unexpected invoke")
}

func (f *fakeLLM) InvokeStructured(_, user, _ string) (string, error) {
	f.calls++
	f.user = user
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// page wraps body text in enough HTML for extraction to find it.
func page(text string) string {
	return fmt.Sprintf("<html><body><article>%s</article></body></html>", text)
}

func longText(n int) string {
	return strings.Repeat("あ", n)
}

func TestSummarizeBatchesLongArticles(t *testing.T) {
	client := &fakeHTTP{pages: map[string]string{
		"https://a.example.com/1": page(longText(200)),
		"https://a.example.com/2": page(longText(300)),
	}}
	llmClient := &fakeLLM{reply: `{"summaries":[{"summary":"要約その1"},{"summary":"要約その2"}]}`}

	s := New(client, llmClient, nil)
	results := s.Summarize(context.Background(), []domain.Article{
		{Title: "一本目", Link: "https://a.example.com/1", Summary: "feed1"},
		{Title: "二本目", Link: "https://a.example.com/2", Summary: "feed2"},
	})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Fallback || results[1].Fallback {
		t.Fatalf("expected model summaries, got fallbacks %#v", results)
	}
	if results[0].Article.AISummary != "要約その1" || results[1].Article.AISummary != "要約その2" {
		t.Fatalf("unexpected summaries %#v", results)
	}
	if llmClient.calls != 1 {
		t.Fatalf("expected a single batched call, got %d", llmClient.calls)
	}
	if !strings.Contains(llmClient.user, "## 記事1") || !strings.Contains(llmClient.user, "## 記事2") {
		t.Fatalf("batch prompt missing article sections:\n%s", llmClient.user)
	}
}

func TestSummarizeShortArticleFallsBackWithoutModelCall(t *testing.T) {
	client := &fakeHTTP{pages: map[string]string{
		"https://a.example.com/1": page("短い本文"),
	}}
	llmClient := &fakeLLM{}

	s := New(client, llmClient, nil)
	results := s.Summarize(context.Background(), []domain.Article{
		{Title: "t", Link: "https://a.example.com/1", Summary: "フィード要約"},
	})

	if len(results) != 1 || !results[0].Fallback {
		t.Fatalf("expected fallback result, got %#v", results)
	}
	if results[0].Article.AISummary != "フィード要約" {
		t.Fatalf("fallback should reuse feed summary, got %q", results[0].Article.AISummary)
	}
	if results[0].Reason != "article text too short" {
		t.Fatalf("unexpected reason %q", results[0].Reason)
	}
	if llmClient.calls != 0 {
		t.Fatalf("model should not be called when nothing qualifies")
	}
}

func TestSummarizeFetchFailureFallsBack(t *testing.T) {
	client := &fakeHTTP{
		errs:   map[string]error{"https://a.example.com/1": errors.New("timeout")},
		status: map[string]int{"https://a.example.com/2": http.StatusForbidden},
		pages:  map[string]string{"https://a.example.com/2": page(longText(200))},
	}
	llmClient := &fakeLLM{}

	s := New(client, llmClient, nil)
	results := s.Summarize(context.Background(), []domain.Article{
		{Title: "err", Link: "https://a.example.com/1", Summary: "s1"},
		{Title: "403", Link: "https://a.example.com/2", Summary: "s2"},
	})

	for i, r := range results {
		if !r.Fallback || r.Reason != "page fetch failed" {
			t.Fatalf("result %d should be a fetch fallback, got %#v", i, r)
		}
	}
	if llmClient.calls != 0 {
		t.Fatalf("model should not be called")
	}
}

func TestSummarizeBatchFailureFallsBackAllQualifying(t *testing.T) {
	client := &fakeHTTP{pages: map[string]string{
		"https://a.example.com/1": page(longText(200)),
		"https://a.example.com/2": page("短い"),
	}}
	llmClient := &fakeLLM{err: errors.New("model down")}

	s := New(client, llmClient, nil)
	results := s.Summarize(context.Background(), []domain.Article{
		{Title: "long", Link: "https://a.example.com/1", Summary: "s1"},
		{Title: "short", Link: "https://a.example.com/2", Summary: "s2"},
	})

	if results[0].Reason != "batch summarization failed" {
		t.Fatalf("expected batch failure fallback, got %#v", results[0])
	}
	if results[0].Article.AISummary != "s1" {
		t.Fatalf("fallback should reuse feed summary, got %q", results[0].Article.AISummary)
	}
	if results[1].Reason != "article text too short" {
		t.Fatalf("short article reason should be preserved, got %#v", results[1])
	}
}

func TestSummarizeShortBatchReplyFallsBackPositionally(t *testing.T) {
	client := &fakeHTTP{pages: map[string]string{
		"https://a.example.com/1": page(longText(200)),
		"https://a.example.com/2": page(longText(200)),
	}}
	llmClient := &fakeLLM{reply: `{"summaries":[{"summary":"先頭だけ"}]}`}

	s := New(client, llmClient, nil)
	results := s.Summarize(context.Background(), []domain.Article{
		{Title: "one", Link: "https://a.example.com/1", Summary: "s1"},
		{Title: "two", Link: "https://a.example.com/2", Summary: "s2"},
	})

	if results[0].Fallback || results[0].Article.AISummary != "先頭だけ" {
		t.Fatalf("first result should use the batch summary, got %#v", results[0])
	}
	if !results[1].Fallback || results[1].Reason != "missing batch result" {
		t.Fatalf("second result should fall back, got %#v", results[1])
	}
	if results[1].Article.AISummary != "s2" {
		t.Fatalf("fallback should reuse feed summary, got %q", results[1].Article.AISummary)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc", 5); got != "abc" {
		t.Fatalf("short text should pass through, got %q", got)
	}
	got := Truncate(longText(20), 10)
	if got != longText(10)+"..." {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestSummarizeTruncatesLongBodies(t *testing.T) {
	client := &fakeHTTP{pages: map[string]string{
		"https://a.example.com/1": page(longText(maxArticleRunes + 500)),
	}}
	llmClient := &fakeLLM{reply: `{"summaries":[{"summary":"ok"}]}`}

	s := New(client, llmClient, nil)
	s.Summarize(context.Background(), []domain.Article{
		{Title: "huge", Link: "https://a.example.com/1", Summary: "s"},
	})

	if !strings.Contains(llmClient.user, truncationMarker) {
		t.Fatalf("expected truncated body with marker in prompt")
	}
	if strings.Contains(llmClient.user, longText(maxArticleRunes+1)) {
		t.Fatalf("prompt contains more than the truncation limit")
	}
}

func TestArticlesFlattensResults(t *testing.T) {
	results := []Result{
		{Article: domain.Article{Title: "a"}},
		{Article: domain.Article{Title: "b"}, Fallback: true},
	}
	arts := Articles(results)
	if len(arts) != 2 || arts[0].Title != "a" || arts[1].Title != "b" {
		t.Fatalf("unexpected articles %#v", arts)
	}
}
