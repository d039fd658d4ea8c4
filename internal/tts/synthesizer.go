package tts

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zundacast/zundacast/internal/logger"
)

// CommandRunner abstracts external tool invocation so tests can fake ffmpeg.
// Run returns the tool's standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands through os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), fmt.Errorf("%s: %w: %s", name, err, snippet(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

// Synthesizer converts a narration script into one audio file: every
// non-empty line is synthesized on its own, and the per-line segments are
// joined losslessly with ffmpeg. A failing line is skipped; the run fails
// only when no line yields audio or the concatenation itself fails.
type Synthesizer struct {
	engine LineSynthesizer
	runner CommandRunner
	log    logger.Logger
}

// NewSynthesizer builds a synthesizer over the given engine. A nil runner
// gets the exec-backed default.
func NewSynthesizer(engine LineSynthesizer, runner CommandRunner, log logger.Logger) *Synthesizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Synthesizer{engine: engine, runner: runner, log: log}
}

// Run synthesizes the script into outputPath and returns the path written.
func (s *Synthesizer) Run(ctx context.Context, script, outputPath string) (string, error) {
	lines := splitLines(script)
	if len(lines) == 0 {
		return "", fmt.Errorf("script contains no text to synthesize")
	}

	s.log.InfoObj("speech synthesis starting", "synthesis_meta", map[string]any{
		"lines":  len(lines),
		"output": outputPath,
	})

	tempDir, err := os.MkdirTemp("", "zundacast-tts-")
	if err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	segments := s.synthesizeLines(ctx, lines, tempDir)
	if len(segments) == 0 {
		return "", fmt.Errorf("no lines were synthesized")
	}

	if err := s.concat(ctx, segments, tempDir, outputPath); err != nil {
		s.log.ErrorObj("audio concatenation failed", "concat_error", map[string]any{
			"segments": len(segments),
			"error":    err.Error(),
		})
		return "", err
	}

	s.log.InfoObj("speech synthesis completed", "synthesis_result", map[string]any{
		"lines_synthesized": len(segments),
		"lines_skipped":     len(lines) - len(segments),
		"output":            outputPath,
	})
	return outputPath, nil
}

// synthesizeLines walks the lines in order, persisting each line's audio to a
// per-line file. Lines failing either engine call are logged and omitted.
func (s *Synthesizer) synthesizeLines(ctx context.Context, lines []string, tempDir string) []string {
	var segments []string
	for i, line := range lines {
		s.log.DebugObj("querying line synthesis parameters", "line_state", map[string]any{
			"line":  i + 1,
			"total": len(lines),
		})

		audio, err := s.engine.SynthesizeLine(ctx, line)
		if err != nil {
			s.log.ErrorObj("line synthesis failed", "line_error", map[string]any{
				"line":  i + 1,
				"error": err.Error(),
			})
			continue
		}

		s.log.DebugObj("saving synthesized line", "line_state", map[string]any{
			"line": i + 1,
		})

		segment := filepath.Join(tempDir, fmt.Sprintf("line_%04d.wav", i))
		if err := os.WriteFile(segment, audio, 0o644); err != nil {
			s.log.ErrorObj("line audio write failed", "line_error", map[string]any{
				"line":  i + 1,
				"error": err.Error(),
			})
			continue
		}
		segments = append(segments, segment)
	}
	return segments
}

// concat joins the segments into outputPath via ffmpeg stream copy, creating
// the output directory when needed.
func (s *Synthesizer) concat(ctx context.Context, segments []string, tempDir, outputPath string) error {
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	manifest := filepath.Join(tempDir, "concat_list.txt")
	var list strings.Builder
	for _, seg := range segments {
		fmt.Fprintf(&list, "file '%s'\n", seg)
	}
	if err := os.WriteFile(manifest, []byte(list.String()), 0o644); err != nil {
		return fmt.Errorf("write concat manifest: %w", err)
	}

	args := []string{"-f", "concat", "-safe", "0", "-i", manifest, "-c", "copy", "-y", outputPath}
	if _, err := s.runner.Run(ctx, "ffmpeg", args...); err != nil {
		return fmt.Errorf("concat segments: %w", err)
	}
	return nil
}

// splitLines breaks the script on newlines, trimming and dropping blanks.
func splitLines(script string) []string {
	var out []string
	for _, line := range strings.Split(script, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
