package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zundacast/zundacast/internal/app"
	"github.com/zundacast/zundacast/internal/config"
	"github.com/zundacast/zundacast/internal/feeds"
	"github.com/zundacast/zundacast/internal/logger"
	"github.com/zundacast/zundacast/internal/publisher"
	"github.com/zundacast/zundacast/internal/tts"
)

var debugMode bool

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zundacast",
		Short: "AI radio pipeline: collect tech articles, narrate them, publish episodes",
		Long: `zundacast runs a broadcast pipeline that collects articles from tech
news feeds, filters and summarizes them with a language model, generates a
narration script, synthesizes speech through a VOICEVOX engine, and publishes
the episode as a dated post with its audio file.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	cmd.AddCommand(runCmd())
	cmd.AddCommand(collectCmd())
	cmd.AddCommand(synthesizeCmd())
	cmd.AddCommand(publishCmd())
	return cmd
}

// setup loads config and initializes the logger shared by all subcommands.
func setup() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if debugMode {
		level = "debug"
	}
	log, err := logger.Init(level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline once, or on a loop when run_interval_seconds is set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pipeline, err := app.NewPipeline(ctx, cfg, log)
			if err != nil {
				return err
			}
			return pipeline.Run(ctx)
		},
	}
}

func collectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Fetch configured feeds and print the collected articles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			reg, err := feeds.LoadRegistry(cfg.FeedsFile)
			if err != nil {
				return fmt.Errorf("load feeds registry: %w", err)
			}

			collector := feeds.NewCollector(nil, feeds.CollectorOptions{TodayOnly: cfg.TodayOnly}, log)
			articles := collector.Collect(cmd.Context(), reg.All())
			for i, a := range articles {
				fmt.Printf("%d. [%s] %s\n   %s\n", i+1, a.Source, a.Title, a.Link)
			}
			fmt.Printf("%d articles collected\n", len(articles))
			return nil
		},
	}
}

func synthesizeCmd() *cobra.Command {
	var scriptPath, outputPath string

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Synthesize an audio file from an existing narration script",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			script, err := os.ReadFile(scriptPath)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			if outputPath == "" {
				outputPath = cfg.AudioOutput
			}

			engine := tts.NewEngine(cfg.VoicevoxURL, cfg.VoicevoxSpeaker, nil)
			synth := tts.NewSynthesizer(engine, tts.ExecRunner{}, log)

			path, err := synth.Run(cmd.Context(), string(script), outputPath)
			if err != nil {
				return err
			}
			fmt.Println("audio written to", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&scriptPath, "script", "", "path to the narration script (required)")
	cmd.Flags().StringVar(&outputPath, "output", "", "output audio path (defaults to audio_output)")
	_ = cmd.MarkFlagRequired("script")
	return cmd
}

func publishCmd() *cobra.Command {
	var req publisher.Request

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish an episode post from an existing audio file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer logger.Close()

			if req.Title == "" {
				req.Title = cfg.EpisodeTitle
			}

			pub := publisher.New(cfg.PostsDir, cfg.AudioDir, tts.ExecRunner{}, log)
			post, err := pub.Publish(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("episode %d published: %s (%s)\n", post.Episode, post.Path, post.Duration)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.AudioPath, "audio", "", "path to the episode audio file (required)")
	cmd.Flags().StringVar(&req.ScriptPath, "script", "", "path to the narration script used for links and description")
	cmd.Flags().StringVar(&req.Title, "title", "", "episode title (defaults to episode_title)")
	cmd.Flags().StringVar(&req.Description, "description", "", "episode description override")
	cmd.Flags().IntVar(&req.Episode, "episode", 0, "explicit episode number (0 derives it)")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}
