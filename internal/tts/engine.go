package tts

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zundacast/zundacast/pkg/httpclient"
)

const (
	// DefaultSpeakerID selects the ずんだもん voice.
	DefaultSpeakerID = 1

	defaultEngineURL     = "http://localhost:50021"
	defaultEngineTimeout = 120 * time.Second
)

// LineSynthesizer turns one line of text into audio bytes.
type LineSynthesizer interface {
	SynthesizeLine(ctx context.Context, text string) ([]byte, error)
}

// Engine talks to a VOICEVOX-compatible speech service: one call to build the
// synthesis-parameter document for a line, a second to render audio from it.
type Engine struct {
	baseURL string
	speaker int
	client  httpclient.Client
}

// NewEngine builds a speech engine client. Empty baseURL and zero speaker get
// the defaults; a nil client gets a resty client with the engine timeout.
func NewEngine(baseURL string, speaker int, client httpclient.Client) *Engine {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultEngineURL
	}
	if speaker <= 0 {
		speaker = DefaultSpeakerID
	}
	if client == nil {
		client = httpclient.NewRestyClient(defaultEngineTimeout)
	}
	return &Engine{baseURL: baseURL, speaker: speaker, client: client}
}

// SynthesizeLine requests the synthesis-parameter document for the line, then
// the synthesized audio for that document.
func (e *Engine) SynthesizeLine(ctx context.Context, text string) ([]byte, error) {
	speaker := strconv.Itoa(e.speaker)

	queryResp, err := e.client.Post(ctx, e.baseURL+"/audio_query", map[string]string{
		"text":    text,
		"speaker": speaker,
	}, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("audio query: %w", err)
	}
	if queryResp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("audio query returned status %d", queryResp.StatusCode())
	}

	synthResp, err := e.client.Post(ctx, e.baseURL+"/synthesis", map[string]string{
		"speaker": speaker,
	}, queryResp.Body(), map[string]string{"Content-Type": "application/json"})
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	if synthResp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("synthesis returned status %d", synthResp.StatusCode())
	}

	return synthResp.Body(), nil
}
