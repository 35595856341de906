package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// AudioFormat is the target container/codec for extracted audio.
type AudioFormat string

const (
	FormatMP3  AudioFormat = "mp3"
	FormatFLAC AudioFormat = "flac"
	FormatWAV  AudioFormat = "wav"
	FormatAAC  AudioFormat = "aac"
)

// Lossless reports whether the format ignores the bitrate setting.
func (f AudioFormat) Lossless() bool {
	return f == FormatFLAC || f == FormatWAV
}

// Valid reports whether f is one of the supported formats.
func (f AudioFormat) Valid() bool {
	switch f {
	case FormatMP3, FormatFLAC, FormatWAV, FormatAAC:
		return true
	}
	return false
}

// Job describes one download-and-transcode invocation for a single video.
type Job struct {
	URL       string
	VideoID   string
	OutputDir string
	Format    AudioFormat
	Quality   int // kbps, ignored for lossless formats
}

// Callbacks receive typed events parsed from the external process output.
// Nil members are allowed and skipped.
type Callbacks struct {
	OnProgress     func(videoID string, pct float64)
	OnStatusChange func(videoID, status string)
	OnError        func(videoID, message string)
	OnDone         func(videoID string)
}

func (c Callbacks) progress(id string, pct float64) {
	if c.OnProgress != nil {
		c.OnProgress(id, pct)
	}
}

func (c Callbacks) statusChange(id, status string) {
	if c.OnStatusChange != nil {
		c.OnStatusChange(id, status)
	}
}

func (c Callbacks) errored(id, msg string) {
	if c.OnError != nil {
		c.OnError(id, msg)
	}
}

func (c Callbacks) done(id string) {
	if c.OnDone != nil {
		c.OnDone(id)
	}
}

// ErrCancelled is returned when a job was stopped by its context, either
// before the process started or while it was running.
var ErrCancelled = errors.New("download cancelled")

// JobFailedError reports a non-zero process exit. Message is already
// translated for end users.
type JobFailedError struct {
	Message string
}

func (e *JobFailedError) Error() string {
	return e.Message
}

// SpawnError reports that the external process could not be started at all
// (missing executable, permissions).
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return "spawn failed: " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// Runner supervises one external download process per Run call.
type Runner struct {
	tool *Tool
	log  *slog.Logger
}

// NewRunner returns a Runner invoking the given Tool.
func NewRunner(tool *Tool, log *slog.Logger) *Runner {
	return &Runner{tool: tool, log: log}
}

// Run downloads one video into job.OutputDir, streaming parsed progress
// through cb. Cancellation via ctx kills the child process and is reported
// as ErrCancelled; a genuine failure is reported as *JobFailedError with a
// translated message.
func (r *Runner) Run(ctx context.Context, job Job, cb Callbacks) error {
	// Never spawn if cancellation already fired.
	if ctx.Err() != nil {
		return ErrCancelled
	}

	cb.statusChange(job.VideoID, "downloading")

	cmd := exec.Command(r.tool.YtDlp, r.buildArgs(job)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cb.errored(job.VideoID, err.Error())
		return &SpawnError{Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cb.errored(job.VideoID, err.Error())
		return &SpawnError{Err: err}
	}

	if err := cmd.Start(); err != nil {
		cb.errored(job.VideoID, err.Error())
		return &SpawnError{Err: err}
	}

	// Kill the child when the session is cancelled. The watcher exits once
	// the process has been waited on.
	waited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := cmd.Process.Kill(); err != nil {
				r.log.Debug("kill after cancel", slog.String("video_id", job.VideoID), slog.String("error", err.Error()))
			}
		case <-waited:
		}
	}()

	var stderrBuf strings.Builder
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			line := sc.Text()
			if pct, ok := ExtractProgress(line); ok {
				cb.progress(job.VideoID, pct)
			}
			if IsConvertingMarker(line) {
				cb.statusChange(job.VideoID, "converting")
			}
		}
	}()

	go func() {
		defer wg.Done()
		sc := bufio.NewScanner(stderr)
		for sc.Scan() {
			line := sc.Text()
			stderrBuf.WriteString(line)
			stderrBuf.WriteString("\n")
			// Progress can land on stderr depending on tool version.
			if pct, ok := ExtractProgress(line); ok {
				cb.progress(job.VideoID, pct)
			}
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()
	close(waited)

	if ctx.Err() != nil {
		return ErrCancelled
	}

	if waitErr == nil {
		cb.progress(job.VideoID, 100)
		cb.done(job.VideoID)
		return nil
	}

	raw := strings.TrimSpace(stderrBuf.String())
	if raw == "" {
		raw = fmt.Sprintf("yt-dlp exited: %v", waitErr)
	}
	msg := FriendlyError(raw)
	cb.errored(job.VideoID, msg)
	return &JobFailedError{Message: msg}
}

// buildArgs assembles the download invocation: audio extraction only,
// line-buffered progress, title-derived filenames in the output dir.
func (r *Runner) buildArgs(job Job) []string {
	args := []string{
		"-x",
		"--audio-format", string(job.Format),
	}
	if !job.Format.Lossless() {
		args = append(args, "--audio-quality", fmt.Sprintf("%dK", job.Quality))
	}
	args = append(args,
		"--ffmpeg-location", r.tool.Ffmpeg,
		"-o", filepath.Join(job.OutputDir, "%(title)s.%(ext)s"),
		"--no-warnings",
		"--newline",
		job.URL,
	)
	return args
}
