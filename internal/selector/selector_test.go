package selector

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zundacast/zundacast/internal/domain"
)

// fakeLLM returns a preset reply and records prompts.
type fakeLLM struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeLLM) Invoke(_, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) InvokeStructured(_, user, _ string) (string, error) {
	return f.Invoke("", user)
}

func TestParseIndices(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		n     int
		want  []int
	}{
		{name: "plain", reply: "1,3", n: 3, want: []int{0, 2}},
		{name: "spaces", reply: " 2 , 3 ", n: 3, want: []int{1, 2}},
		{name: "invalid tokens dropped", reply: "1,3,abc,9", n: 3, want: []int{0, 2}},
		{name: "none marker", reply: "なし", n: 3, want: nil},
		{name: "zero and negative", reply: "0,-1,2", n: 3, want: []int{1}},
		{name: "duplicates preserved", reply: "2,2", n: 3, want: []int{1, 1}},
		{name: "empty reply", reply: "", n: 3, want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseIndices(tc.reply, tc.n)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ParseIndices(%q, %d) = %v, want %v", tc.reply, tc.n, got, tc.want)
			}
		})
	}
}

func TestFilterSelectsRepliedArticles(t *testing.T) {
	articles := []domain.Article{
		{Title: "AIの規制動向", Summary: "概要1"},
		{Title: "料理レシピ", Summary: "概要2"},
		{Title: "LLMの活用事例", Summary: "概要3"},
	}

	client := &fakeLLM{reply: "1,3"}
	selected, err := Filter(client, articles)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if len(selected) != 2 {
		t.Fatalf("expected 2 selected, got %d", len(selected))
	}
	if selected[0].Title != "AIの規制動向" || selected[1].Title != "LLMの活用事例" {
		t.Fatalf("unexpected selection %#v", selected)
	}
}

func TestFilterPromptContainsNumberedArticles(t *testing.T) {
	articles := []domain.Article{
		{Title: "タイトルA", Summary: "要約A"},
		{Title: "タイトルB", Summary: "要約B"},
	}

	client := &fakeLLM{reply: "なし"}
	if _, err := Filter(client, articles); err != nil {
		t.Fatalf("Filter: %v", err)
	}

	if len(client.prompts) != 1 {
		t.Fatalf("expected one model call, got %d", len(client.prompts))
	}
	prompt := client.prompts[0]
	for _, want := range []string{"1. タイトル: タイトルA", "2. タイトル: タイトルB", "要約: 要約A"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestFilterEmptyInputSkipsModelCall(t *testing.T) {
	client := &fakeLLM{reply: "1"}
	selected, err := Filter(client, nil)
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	if selected != nil {
		t.Fatalf("expected nil selection, got %#v", selected)
	}
	if len(client.prompts) != 0 {
		t.Fatalf("model should not be called for empty input")
	}
}

func TestFilterPropagatesModelError(t *testing.T) {
	client := &fakeLLM{err: errors.New("api down")}
	if _, err := Filter(client, []domain.Article{{Title: "t", Summary: "s"}}); err == nil {
		t.Fatalf("expected error from model failure")
	}
}
