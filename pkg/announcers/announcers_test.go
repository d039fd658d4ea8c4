package announcers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadRegistryYAML(t *testing.T) {
	path := writeTempFile(t, "announcers.yaml", `
announcers:
  - id: hook
    type: http
    http:
      url: https://example.com/hook
  - id: queue
    type: sqs
    enabled: false
    sqs:
      uri: https://sqs.ap-northeast-1.amazonaws.com/1/q
      region: ap-northeast-1
`)

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 2 {
		t.Fatalf("expected 2 announcers, got %d", len(reg.All()))
	}

	enabled := reg.Enabled()
	if len(enabled) != 1 || enabled[0].ID != "hook" {
		t.Fatalf("expected only the enabled announcer, got %#v", enabled)
	}

	hook, ok := reg.ByID("hook")
	if !ok {
		t.Fatalf("hook announcer missing")
	}
	if hook.HTTP.Method != "POST" {
		t.Fatalf("method should default to POST, got %q", hook.HTTP.Method)
	}
	if hook.HTTP.TimeoutSeconds != httpDefaultTimeoutSeconds {
		t.Fatalf("timeout should default, got %d", hook.HTTP.TimeoutSeconds)
	}
}

func TestLoadRegistryMissingFileYieldsEmptyRegistry(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(reg.All()) != 0 || len(reg.Enabled()) != 0 {
		t.Fatalf("expected empty registry, got %#v", reg.All())
	}
}

func TestLoadRegistryValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "duplicate id",
			content: "announcers:\n  - id: a\n    type: http\n    http:\n      url: https://x\n  - id: a\n    type: http\n    http:\n      url: https://y\n",
			wantErr: "duplicate",
		},
		{
			name:    "missing type",
			content: "announcers:\n  - id: a\n",
			wantErr: "type is required",
		},
		{
			name:    "sqs without region",
			content: "announcers:\n  - id: a\n    type: sqs\n    sqs:\n      uri: https://q\n",
			wantErr: "sqs.region is required",
		},
		{
			name:    "http without url",
			content: "announcers:\n  - id: a\n    type: http\n    http: {}\n",
			wantErr: "http.url is required",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeTempFile(t, "announcers.yaml", tc.content)
			_, err := LoadRegistry(path)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

// fakeAnnouncer records events and can fail.
type fakeAnnouncer struct {
	mu     sync.Mutex
	id     string
	err    error
	events []Event
}

func (f *fakeAnnouncer) ID() string   { return f.id }
func (f *fakeAnnouncer) Type() string { return "fake" }
func (f *fakeAnnouncer) Announce(_ context.Context, evt Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.err
}

func TestFanoutCountsSuccessesAndJoinsErrors(t *testing.T) {
	ok := &fakeAnnouncer{id: "ok"}
	bad := &fakeAnnouncer{id: "bad", err: errors.New("boom")}
	fan := NewFanout([]Announcer{ok, bad, nil})

	if fan.Size() != 2 {
		t.Fatalf("nil announcers should be dropped, size %d", fan.Size())
	}

	evt := NewEvent(3, "3. ずんだもんAIラジオ", "_posts/2025-06-15-3.md", "audio/episode.wav", "12:34")
	n, err := fan.Announce(context.Background(), evt)
	if n != 1 {
		t.Fatalf("expected 1 success, got %d", n)
	}
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected joined error naming the failing announcer, got %v", err)
	}
	if len(ok.events) != 1 || ok.events[0].Episode != 3 {
		t.Fatalf("event not delivered: %#v", ok.events)
	}
}

func TestFanoutEmpty(t *testing.T) {
	n, err := NewFanout(nil).Announce(context.Background(), Event{})
	if n != 0 || err != nil {
		t.Fatalf("empty fanout should be a no-op, got %d, %v", n, err)
	}
}

func TestHTTPAnnouncerDeliversEvent(t *testing.T) {
	var mu sync.Mutex
	var received Event
	var header http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		json.Unmarshal(body, &received)
		header = r.Header.Clone()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ann, err := newHTTPAnnouncer(context.Background(), AnnouncerConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPAnnouncerConfig{
			URL:     srv.URL,
			Method:  "POST",
			Headers: map[string]string{"X-Token": "secret"},
		},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPAnnouncer: %v", err)
	}

	evt := NewEvent(7, "7. ずんだもんAIラジオ", "_posts/2025-06-15-7.md", "audio/episode.wav", "10:00")
	if err := ann.Announce(context.Background(), evt); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Episode != 7 || received.Title != "7. ずんだもんAIラジオ" {
		t.Fatalf("unexpected payload %#v", received)
	}
	if header.Get("X-Token") != "secret" {
		t.Fatalf("custom header missing")
	}
	if !strings.Contains(header.Get("Content-Type"), "application/json") {
		t.Fatalf("unexpected content type %q", header.Get("Content-Type"))
	}
}

func TestHTTPAnnouncerReportsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ann, err := newHTTPAnnouncer(context.Background(), AnnouncerConfig{
		ID:   "hook",
		Type: TypeHTTP,
		HTTP: &HTTPAnnouncerConfig{URL: srv.URL, Method: "POST"},
	}, nil)
	if err != nil {
		t.Fatalf("newHTTPAnnouncer: %v", err)
	}

	err = ann.Announce(context.Background(), Event{})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

// fakeSQS captures sent messages.
type fakeSQS struct {
	inputs []*awssqs.SendMessageInput
	err    error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *awssqs.SendMessageInput, _ ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &awssqs.SendMessageOutput{}, nil
}

func TestSQSAnnouncerSendsMessage(t *testing.T) {
	client := &fakeSQS{}
	ann := &sqsAnnouncer{
		id:       "queue",
		typ:      TypeSQS,
		queueURL: "https://sqs.ap-northeast-1.amazonaws.com/1/q",
		client:   client,
		log:      ensureLogger(nil),
	}

	evt := NewEvent(2, "2. ずんだもんAIラジオ", "_posts/2025-06-15-2.md", "audio/episode.wav", "08:15")
	if err := ann.Announce(context.Background(), evt); err != nil {
		t.Fatalf("Announce: %v", err)
	}

	if len(client.inputs) != 1 {
		t.Fatalf("expected one message, got %d", len(client.inputs))
	}
	in := client.inputs[0]
	if *in.QueueUrl != ann.queueURL {
		t.Fatalf("unexpected queue url %q", *in.QueueUrl)
	}

	var sent Event
	if err := json.Unmarshal([]byte(*in.MessageBody), &sent); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if sent.Episode != 2 || sent.AudioPath != "audio/episode.wav" {
		t.Fatalf("unexpected message %#v", sent)
	}

	attr, ok := in.MessageAttributes["episode"]
	if !ok || *attr.StringValue != "2" {
		t.Fatalf("episode attribute missing or wrong: %#v", in.MessageAttributes)
	}
}

func TestSQSAnnouncerPropagatesSendFailure(t *testing.T) {
	ann := &sqsAnnouncer{
		id:       "queue",
		typ:      TypeSQS,
		queueURL: "https://q",
		client:   &fakeSQS{err: errors.New("throttled")},
		log:      ensureLogger(nil),
	}
	if err := ann.Announce(context.Background(), Event{}); err == nil {
		t.Fatalf("expected send error")
	}
}

func TestBuildAllRejectsUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []AnnouncerConfig{
		{ID: "x", Type: "carrier-pigeon"},
	}, nil)
	if err == nil || !strings.Contains(err.Error(), "carrier-pigeon") {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}
