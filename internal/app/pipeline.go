package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zundacast/zundacast/internal/config"
	"github.com/zundacast/zundacast/internal/feeds"
	"github.com/zundacast/zundacast/internal/llm"
	"github.com/zundacast/zundacast/internal/logger"
	"github.com/zundacast/zundacast/internal/publisher"
	"github.com/zundacast/zundacast/internal/script"
	"github.com/zundacast/zundacast/internal/selector"
	"github.com/zundacast/zundacast/internal/storage"
	"github.com/zundacast/zundacast/internal/summarizer"
	"github.com/zundacast/zundacast/internal/tts"
	"github.com/zundacast/zundacast/pkg/announcers"
	"github.com/zundacast/zundacast/pkg/httpclient"
)

// Pipeline wires the six stages together and executes full broadcast runs:
// collect, filter, summarize, script, synthesize, publish. Stages run
// strictly forward with no feedback loops.
type Pipeline struct {
	cfg         *config.Config
	feedReg     *feeds.Registry
	collector   *feeds.Collector
	llmClient   llm.Client
	summarizer  *summarizer.Summarizer
	synthesizer *tts.Synthesizer
	publisher   *publisher.Publisher
	fanout      *announcers.Fanout
	store       storage.Store
	runInterval time.Duration
	log         logger.Logger
}

// NewPipeline builds a pipeline runtime from config files.
func NewPipeline(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	feedReg, err := feeds.LoadRegistry(cfg.FeedsFile)
	if err != nil {
		return nil, fmt.Errorf("load feeds registry: %w", err)
	}
	feedList := feedReg.All()
	feedIDs := make([]string, 0, len(feedList))
	for _, f := range feedList {
		feedIDs = append(feedIDs, f.ID)
	}
	log.InfoObj("feeds registry loaded", "feeds_meta", map[string]any{
		"count": len(feedIDs),
		"ids":   feedIDs,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		LinkTTL:         cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	llmClient, err := llm.NewAnthropic(cfg)
	if err != nil {
		return nil, fmt.Errorf("init language model client: %w", err)
	}

	announcerReg, err := announcers.LoadRegistry(cfg.AnnouncersFile)
	if err != nil {
		return nil, fmt.Errorf("load announcers registry: %w", err)
	}
	annClients, err := announcers.BuildAll(ctx, announcers.DefaultRegistry(), announcerReg.Enabled(), log)
	if err != nil {
		return nil, fmt.Errorf("build announcers: %w", err)
	}
	fanout := announcers.NewFanout(annClients)
	if fanout.Size() > 0 {
		log.InfoObj("announcers registry loaded", "announcers_meta", map[string]any{
			"count": fanout.Size(),
		})
	}

	pageClient := httpclient.NewRestyClient(cfg.FetchTimeout)
	engine := tts.NewEngine(cfg.VoicevoxURL, cfg.VoicevoxSpeaker, nil)
	runner := tts.ExecRunner{}

	return &Pipeline{
		cfg:     cfg,
		feedReg: feedReg,
		collector: feeds.NewCollector(nil, feeds.CollectorOptions{
			TodayOnly: cfg.TodayOnly,
			Store:     store,
		}, log),
		llmClient:   llmClient,
		summarizer:  summarizer.New(pageClient, llmClient, log),
		synthesizer: tts.NewSynthesizer(engine, runner, log),
		publisher:   publisher.New(cfg.PostsDir, cfg.AudioDir, runner, log),
		fanout:      fanout,
		store:       store,
		runInterval: cfg.RunInterval,
		log:         log,
	}, nil
}

// Run executes one pipeline pass, then repeats on the configured interval
// until the context is cancelled. A zero interval runs once.
func (p *Pipeline) Run(ctx context.Context) error {
	if p == nil || p.collector == nil {
		return fmt.Errorf("pipeline is not initialized")
	}
	defer p.closeStore()

	if err := p.runOnce(ctx); err != nil {
		if p.runInterval <= 0 {
			return err
		}
		p.log.ErrorObj("pipeline run failed", "error", err)
	}

	if p.runInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(p.runInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.InfoObj("pipeline loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := p.runOnce(ctx); err != nil {
				p.log.ErrorObj("scheduled pipeline run failed", "error", err)
			}
		}
	}
}

// runOnce performs one full collect-to-publish pass.
func (p *Pipeline) runOnce(ctx context.Context) error {
	start := time.Now()
	sources := p.feedReg.All()
	p.log.InfoObj("pipeline run started", "run_meta", map[string]any{
		"feeds_count": len(sources),
		"started_at":  start.UTC(),
	})

	articles := p.collector.Collect(ctx, sources)
	p.log.InfoObj("articles collected", "collect_result", map[string]any{
		"articles": len(articles),
	})
	if len(articles) == 0 {
		p.log.WarnObj("no articles collected; skipping run", "feeds_count", len(sources))
		return nil
	}

	selected, err := selector.Filter(p.llmClient, articles)
	if err != nil {
		return err
	}
	p.log.InfoObj("articles filtered", "filter_result", map[string]any{
		"selected": len(selected),
		"of":       len(articles),
	})
	if len(selected) == 0 {
		p.log.InfoObj("no relevant articles today; skipping run", "articles", len(articles))
		return nil
	}

	results := p.summarizer.Summarize(ctx, selected)
	fallbacks := 0
	for _, r := range results {
		if r.Fallback {
			fallbacks++
		}
	}
	p.log.InfoObj("articles summarized", "summarize_result", map[string]any{
		"articles":  len(results),
		"fallbacks": fallbacks,
	})

	narration, err := script.Generate(p.llmClient, summarizer.Articles(results), time.Now())
	if err != nil {
		return err
	}

	scriptPath := p.cfg.ScriptOutput
	if err := writeScript(scriptPath, narration); err != nil {
		p.log.WarnObj("script write failed", "script_error", err.Error())
		scriptPath = ""
	}

	audioPath, err := p.synthesizer.Run(ctx, narration, p.cfg.AudioOutput)
	if err != nil {
		return fmt.Errorf("speech synthesis: %w", err)
	}

	post, err := p.publisher.Publish(ctx, publisher.Request{
		Title:      p.cfg.EpisodeTitle,
		AudioPath:  audioPath,
		ScriptPath: scriptPath,
	})
	if err != nil {
		return fmt.Errorf("publish episode: %w", err)
	}

	p.announce(ctx, post)

	p.log.InfoObj("pipeline run completed", "run_meta", map[string]any{
		"episode":    post.Episode,
		"post":       post.Path,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// announce notifies downstream sinks about the published episode.
// Announce failures never fail the run.
func (p *Pipeline) announce(ctx context.Context, post *publisher.Post) {
	if p.fanout.Size() == 0 {
		return
	}
	evt := announcers.NewEvent(post.Episode, post.FrontMatter.Title, post.Path, post.AudioPath, post.Duration)
	if _, err := p.fanout.Announce(ctx, evt); err != nil {
		p.log.ErrorObj("episode announce failed", "announce_error", err.Error())
	}
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (p *Pipeline) closeStore() {
	if p == nil || p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		p.log.ErrorObj("storage close failed", "error", err)
	}
}

func writeScript(path, narration string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(narration), 0o644)
}
