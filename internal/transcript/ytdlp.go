package transcript

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// YtDlpFetcher downloads auto-generated English subtitles with the yt-dlp binary.
type YtDlpFetcher struct {
	Binary string
	// TempDir is where the per-call scratch directory is created; empty means os.TempDir.
	TempDir string

	run func(ctx context.Context, name string, args ...string) error
}

// NewYtDlpFetcher returns a fetcher using binary, or "yt-dlp" from PATH when empty.
func NewYtDlpFetcher(binary string) *YtDlpFetcher {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlpFetcher{Binary: binary, run: runCommand}
}

// Available reports whether the binary can be found.
func (f *YtDlpFetcher) Available() bool {
	_, err := exec.LookPath(f.Binary)
	return err == nil
}

func (f *YtDlpFetcher) Name() string { return "yt-dlp" }

func (f *YtDlpFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	dir, err := os.MkdirTemp(f.TempDir, "ytdlp-")
	if err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "sub-"+uuid.NewString())
	args := []string{
		"--write-auto-sub",
		"--sub-lang", "en",
		"--skip-download",
		"--sub-format", "vtt",
		"-o", out,
		WatchURL(videoID),
	}
	run := f.run
	if run == nil {
		run = runCommand
	}
	if err := run(ctx, f.Binary, args...); err != nil {
		return "", err
	}

	data, err := os.ReadFile(out + ".en.vtt")
	if err != nil {
		return "", fmt.Errorf("no subtitle file produced: %w", err)
	}
	return ParseVTT(string(data)), nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		return fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return nil
}

var (
	vttTiming = regexp.MustCompile(`^\d{2}:\d{2}`)
	vttCueNum = regexp.MustCompile(`^\d+$`)
	vttTag    = regexp.MustCompile(`<[^>]+>`)
)

// ParseVTT flattens a WebVTT subtitle file into running text. Header, timing and
// cue-number lines are dropped, inline tags removed, and the rolling duplicates of
// auto-generated captions collapsed.
func ParseVTT(vtt string) string {
	var out []string
	prev := ""
	for _, line := range strings.Split(strings.ReplaceAll(vtt, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "",
			strings.HasPrefix(trimmed, "WEBVTT"),
			strings.HasPrefix(trimmed, "Kind:"),
			strings.HasPrefix(trimmed, "Language:"),
			strings.HasPrefix(trimmed, "NOTE"),
			vttTiming.MatchString(trimmed),
			vttCueNum.MatchString(trimmed):
			continue
		}
		text := strings.TrimSpace(vttTag.ReplaceAllString(trimmed, ""))
		if text == "" || text == prev {
			continue
		}
		out = append(out, text)
		prev = text
	}
	return strings.Join(out, " ")
}
