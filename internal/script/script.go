package script

import (
	"fmt"
	"strings"
	"time"

	"github.com/zundacast/zundacast/internal/domain"
	"github.com/zundacast/zundacast/internal/llm"
)

// Package script turns the summarized article list into one narration text
// through a single persona-fixed model call. The model's reply is the final
// script; no post-processing is applied.

const systemPrompt = `あなたは「ずんだもんAIポッドキャスト」のAIアシスタントです。
AIやテクノロジーに関するトレンド記事を紹介するラジオ番組を制作しています。
ずんだもんキャラクターの口調で、わかりやすく楽しい内容を心がけてください。`

const userPromptFormat = `あなたは「ずんだもんAIポッドキャスト」のAIラジオの番組原稿を作成するアシスタントです。
今日の放送（%s（%s））のラジオ原稿を作成してください。

番組情報:
- パーソナリティ: ずんだもん
- 内容: AIやテクノロジーに関するトレンド記事の紹介
- スタイル: 親しみやすく、初心者にもわかりやすい説明

以下の内容を含めて原稿を作成してください:
1. オープニング（挨拶、今日の番組内容紹介）
2. 記事紹介コーナー（各記事の要約と解説）
3. エンディング（まとめ、次回予告、お別れの挨拶）

原稿はずんだもんキャラクターの口調で書いてください。語尾には「〜のだ」「〜なのだ」を使います。
また、「記事1: タイトル」のように明確に記事の区切りを示してください。

記事情報:
%s`

var jst = time.FixedZone("JST", 9*60*60)

var japaneseWeekdays = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// Generate produces the narration script for today's broadcast. A model
// failure aborts the run; there is no fallback script.
func Generate(client llm.Client, articles []domain.Article, now time.Time) (string, error) {
	local := now.In(jst)
	dateStr := local.Format("2006年01月02日")
	weekday := japaneseWeekdays[int(local.Weekday())]

	entries := make([]string, 0, len(articles))
	for i, art := range articles {
		summary := art.AISummary
		if summary == "" {
			summary = art.Summary
		}
		entries = append(entries, fmt.Sprintf("記事%d: %s\n%s", i+1, art.Title, summary))
	}

	prompt := fmt.Sprintf(userPromptFormat, dateStr, weekday, strings.Join(entries, "\n\n"))

	text, err := client.Invoke(systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("generate script: %w", err)
	}
	return text, nil
}
