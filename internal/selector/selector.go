package selector

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zundacast/zundacast/internal/domain"
	"github.com/zundacast/zundacast/internal/llm"
)

// Package selector implements the relevance filter stage: one model call over
// the full article list, replied to as comma-separated 1-based indices.

const interestPrompt = `あなたはAIに関連する情報を収集するためのAIアシスタントです。以下のニュースリストの中から、私の関心に合致するものだけを選んでください。

# 関心のある分野
- AI技術の最新動向
- AIの活用事例
- AIに関連する法規制、ガバナンス

# ニュースリスト
%s

# 出力フォーマット
関心のあるニュースの番号をカンマ区切りで挙げてください（例：1,3,5）
関連するニュースがない場合、「なし」と答えてください。`

// Filter asks the model which articles match the interest rubric and returns
// that subset. Non-numeric or out-of-range reply tokens are dropped silently;
// a reply with no numeric tokens (e.g. なし) yields an empty result. A model
// failure here aborts the run.
func Filter(client llm.Client, articles []domain.Article) ([]domain.Article, error) {
	if len(articles) == 0 {
		return nil, nil
	}

	reply, err := client.Invoke("", buildPrompt(articles))
	if err != nil {
		return nil, fmt.Errorf("relevance filter: %w", err)
	}

	selected := make([]domain.Article, 0, len(articles))
	for _, idx := range ParseIndices(reply, len(articles)) {
		selected = append(selected, articles[idx])
	}
	return selected, nil
}

// buildPrompt renders the numbered article list into the interest rubric.
func buildPrompt(articles []domain.Article) string {
	entries := make([]string, 0, len(articles))
	for i, art := range articles {
		entries = append(entries, fmt.Sprintf("%d. タイトル: %s\n　　要約: %s", i+1, art.Title, art.Summary))
	}
	return fmt.Sprintf(interestPrompt, strings.Join(entries, "\n\n"))
}

// ParseIndices extracts valid zero-based positions from a comma-separated
// reply of 1-based indices. Tokens that do not parse as integers or lie
// outside [1, n] are dropped. Duplicate indices are preserved.
func ParseIndices(reply string, n int) []int {
	var out []int
	for _, token := range strings.Split(reply, ",") {
		token = strings.TrimSpace(token)
		idx, err := strconv.Atoi(token)
		if err != nil {
			continue
		}
		if idx < 1 || idx > n {
			continue
		}
		out = append(out, idx-1)
	}
	return out
}
