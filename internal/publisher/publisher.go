package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zundacast/zundacast/internal/logger"
)

// Package publisher writes the dated episode post (YAML front matter + body)
// and relocates the audio asset into the publishing directory.

// CommandRunner abstracts external tool invocation so tests can fake ffprobe.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

const (
	fallbackDuration    = "00:00"
	descriptionMaxRunes = 150
	actorID             = "zundamon"
	postLayout          = "article"
)

var jst = time.FixedZone("JST", 9*60*60)

var (
	reDigits = regexp.MustCompile(`(\d+)`)
	reLink   = regexp.MustCompile(`(.*?)(https?://\S+)`)
)

// FrontMatter is the structured metadata block prefixed to a post.
type FrontMatter struct {
	ActorIDs      []string `yaml:"actor_ids"`
	AudioFilePath string   `yaml:"audio_file_path"`
	AudioFileSize int64    `yaml:"audio_file_size"`
	Date          string   `yaml:"date"`
	Description   string   `yaml:"description"`
	Duration      string   `yaml:"duration"`
	Layout        string   `yaml:"layout"`
	Title         string   `yaml:"title"`
}

// Request carries the publish inputs. AudioPath is required; everything else
// is derived when absent.
type Request struct {
	Title       string
	AudioPath   string
	ScriptPath  string
	Description string
	Episode     int // 0 derives the episode number
}

// Post describes the written episode.
type Post struct {
	Path        string
	Episode     int
	AudioPath   string
	Duration    string
	FrontMatter FrontMatter
}

// Publisher writes episode posts into the posts directory and audio files
// into the audio directory.
//
// The episode number derivation scans existing post filenames; it is a
// read-then-write with no locking, so a single publishing writer per site is
// assumed. Concurrent publishes on the same date can collide.
type Publisher struct {
	postsDir string
	audioDir string
	runner   CommandRunner
	now      func() time.Time
	log      logger.Logger
}

// New builds a publisher writing into the given directories.
func New(postsDir, audioDir string, runner CommandRunner, log logger.Logger) *Publisher {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Publisher{
		postsDir: postsDir,
		audioDir: audioDir,
		runner:   runner,
		now:      time.Now,
		log:      log,
	}
}

// Publish creates the episode post and copies the audio asset into place.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Post, error) {
	if strings.TrimSpace(req.AudioPath) == "" {
		return nil, fmt.Errorf("audio path is required")
	}

	if err := os.MkdirAll(p.postsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create posts directory: %w", err)
	}
	if err := os.MkdirAll(p.audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}

	audioBase := filepath.Base(req.AudioPath)
	audioDest := filepath.Join(p.audioDir, audioBase)
	if !sameFile(req.AudioPath, audioDest) {
		if err := copyFile(req.AudioPath, audioDest); err != nil {
			p.log.ErrorObj("audio copy failed", "publish_error", map[string]any{
				"source": req.AudioPath,
				"dest":   audioDest,
				"error":  err.Error(),
			})
			audioDest = req.AudioPath
		}
	}

	episode := p.episodeNumber(req)
	script := p.readScript(req.ScriptPath)
	now := p.now().In(jst)

	fm := FrontMatter{
		ActorIDs:      []string{actorID},
		AudioFilePath: fmt.Sprintf("/%s/%s", filepath.Base(p.audioDir), audioBase),
		AudioFileSize: fileSize(req.AudioPath),
		Date:          now.Format("2006-01-02 15:04:05 -0700"),
		Description:   p.description(req, script, episode),
		Duration:      p.duration(ctx, req.AudioPath),
		Layout:        postLayout,
		Title:         fmt.Sprintf("%d. %s", episode, req.Title),
	}

	postPath := filepath.Join(p.postsDir, fmt.Sprintf("%s-%d.md", now.Format("2006-01-02"), episode))
	if err := writePost(postPath, fm, ExtractLinks(script)); err != nil {
		return nil, err
	}

	p.log.InfoObj("episode post created", "publish_result", map[string]any{
		"post":    postPath,
		"episode": episode,
		"audio":   audioDest,
	})

	return &Post{
		Path:        postPath,
		Episode:     episode,
		AudioPath:   audioDest,
		Duration:    fm.Duration,
		FrontMatter: fm,
	}, nil
}

// episodeNumber resolves the sequence number: explicit argument, digits in
// the audio filename, max existing episode in the posts directory plus one,
// then 1.
func (p *Publisher) episodeNumber(req Request) int {
	if req.Episode > 0 {
		return req.Episode
	}

	if m := reDigits.FindString(filepath.Base(req.AudioPath)); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			return n
		}
	}

	maxEpisode := 0
	entries, err := os.ReadDir(p.postsDir)
	if err != nil {
		p.log.WarnObj("could not scan posts directory", "publish_warning", map[string]any{
			"dir":   p.postsDir,
			"error": err.Error(),
		})
		return 1
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		// Episode number is the trailing number in YYYY-MM-DD-<ep>.md.
		all := reDigits.FindAllString(name, -1)
		if len(all) == 0 {
			continue
		}
		if n, err := strconv.Atoi(all[len(all)-1]); err == nil && n > maxEpisode {
			maxEpisode = n
		}
	}
	return maxEpisode + 1
}

// duration probes the audio length via ffprobe and formats it as MM:SS,
// defaulting to 00:00 on any failure.
func (p *Publisher) duration(ctx context.Context, audioPath string) string {
	if p.runner == nil {
		return fallbackDuration
	}

	out, err := p.runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		audioPath,
	)
	if err != nil {
		p.log.WarnObj("could not determine audio duration", "publish_warning", map[string]any{
			"audio": audioPath,
			"error": err.Error(),
		})
		return fallbackDuration
	}

	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		p.log.WarnObj("unexpected ffprobe output", "publish_warning", map[string]any{
			"audio":  audioPath,
			"output": strings.TrimSpace(string(out)),
		})
		return fallbackDuration
	}

	return fmt.Sprintf("%02d:%02d", int(seconds)/60, int(seconds)%60)
}

// description resolves the episode description: explicit argument, the first
// three non-empty non-heading script lines truncated to 150 runes, then a
// canned sentence.
func (p *Publisher) description(req Request, script string, episode int) string {
	if strings.TrimSpace(req.Description) != "" {
		return req.Description
	}

	if script != "" {
		var lines []string
		for _, line := range strings.Split(script, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
			if len(lines) == 3 {
				break
			}
		}
		if len(lines) > 0 {
			joined := []rune(strings.Join(lines, " "))
			if len(joined) > descriptionMaxRunes {
				joined = joined[:descriptionMaxRunes]
			}
			return string(joined) + "..."
		}
	}

	return fmt.Sprintf("ずんだもんがAIやテクノロジーのトレンド記事を紹介する第%d回目の放送です。", episode)
}

// readScript loads the script file best-effort; missing or unreadable files
// yield an empty script.
func (p *Publisher) readScript(scriptPath string) string {
	if strings.TrimSpace(scriptPath) == "" {
		return ""
	}
	raw, err := os.ReadFile(scriptPath)
	if err != nil {
		p.log.WarnObj("could not read script file", "publish_warning", map[string]any{
			"script": scriptPath,
			"error":  err.Error(),
		})
		return ""
	}
	return string(raw)
}

// ExtractLinks scans script lines for http(s) URLs and renders them as
// markdown bullets, best-effort.
func ExtractLinks(script string) []string {
	var links []string
	for _, line := range strings.Split(script, "\n") {
		if !strings.Contains(line, "http://") && !strings.Contains(line, "https://") {
			continue
		}
		m := reLink.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[1])
		url := strings.TrimSpace(m[2])
		if title != "" {
			links = append(links, fmt.Sprintf("- [%s](%s)", title, url))
		} else {
			links = append(links, "- "+url)
		}
	}
	return links
}

// writePost serializes the front matter and optional links section.
func writePost(postPath string, fm FrontMatter, links []string) error {
	meta, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("marshal front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(meta)
	b.WriteString("---\n\n")
	if len(links) > 0 {
		b.WriteString("## 関連リンク\n\n")
		b.WriteString(strings.Join(links, "\n"))
		b.WriteString("\n\n")
	}

	if err := os.WriteFile(postPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write post: %w", err)
	}
	return nil
}

// fileSize stats the audio file, returning 0 on failure.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
