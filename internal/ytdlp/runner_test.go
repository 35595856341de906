package ytdlp

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder collects callback invocations in order.
type recorder struct {
	mu       sync.Mutex
	statuses []string
	progress []float64
	errors   []string
	done     []string
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnProgress: func(_ string, pct float64) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.progress = append(r.progress, pct)
		},
		OnStatusChange: func(_ string, status string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.statuses = append(r.statuses, status)
		},
		OnError: func(_ string, msg string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errors = append(r.errors, msg)
		},
		OnDone: func(id string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.done = append(r.done, id)
		},
	}
}

// writeStub writes an executable shell script standing in for yt-dlp.
func writeStub(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp-stub")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func stubRunnerWith(t *testing.T, script string) (*Runner, *recorder) {
	t.Helper()
	tool := &Tool{YtDlp: writeStub(t, script), Ffmpeg: "ffmpeg"}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRunner(tool, log), &recorder{}
}

func testJob(dir string) Job {
	return Job{
		URL:       "https://www.youtube.com/watch?v=abc",
		VideoID:   "abc",
		OutputDir: dir,
		Format:    FormatMP3,
		Quality:   128,
	}
}

func TestRunner_success(t *testing.T) {
	r, rec := stubRunnerWith(t, `
echo "[download]  10.0% of 3.50MiB"
echo "[download]  55.5% of 3.50MiB"
echo "[ExtractAudio] Destination: song.mp3"
exit 0
`)

	err := r.Run(context.Background(), testJob(t.TempDir()), rec.callbacks())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(rec.statuses) < 2 || rec.statuses[0] != "downloading" || rec.statuses[1] != "converting" {
		t.Errorf("expected downloading then converting, got %v", rec.statuses)
	}
	if len(rec.progress) == 0 || rec.progress[len(rec.progress)-1] != 100 {
		t.Errorf("final progress should be 100, got %v", rec.progress)
	}
	if len(rec.done) != 1 || rec.done[0] != "abc" {
		t.Errorf("expected one done callback for abc, got %v", rec.done)
	}
	if len(rec.errors) != 0 {
		t.Errorf("unexpected error callbacks: %v", rec.errors)
	}
}

func TestRunner_failure_translates_stderr(t *testing.T) {
	r, rec := stubRunnerWith(t, `
echo "ERROR: HTTP Error 404: Not Found" >&2
exit 1
`)

	err := r.Run(context.Background(), testJob(t.TempDir()), rec.callbacks())
	var failed *JobFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected *JobFailedError, got %v", err)
	}
	want := "Content not found. The video or playlist may have been deleted."
	if failed.Message != want {
		t.Errorf("message = %q, want %q", failed.Message, want)
	}
	if len(rec.errors) != 1 || rec.errors[0] != want {
		t.Errorf("OnError should carry the translated message, got %v", rec.errors)
	}
	if len(rec.done) != 0 {
		t.Errorf("no done callback on failure, got %v", rec.done)
	}
}

func TestRunner_cancelled_before_start(t *testing.T) {
	r, rec := stubRunnerWith(t, `echo should-not-run; exit 0`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Run(ctx, testJob(t.TempDir()), rec.callbacks())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	// The process was never spawned, so no callbacks at all.
	if len(rec.statuses) != 0 || len(rec.progress) != 0 {
		t.Errorf("no callbacks expected before spawn, got statuses=%v progress=%v", rec.statuses, rec.progress)
	}
}

func TestRunner_cancelled_during_run(t *testing.T) {
	r, rec := stubRunnerWith(t, `
echo "[download]   5.0% of 3.50MiB"
exec sleep 10
`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := r.Run(ctx, testJob(t.TempDir()), rec.callbacks())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled after mid-run cancel, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("cancellation should kill the process promptly, took %v", time.Since(start))
	}
	if len(rec.errors) != 0 {
		t.Errorf("cancellation must not be reported as a video error, got %v", rec.errors)
	}
}

func TestRunner_spawn_failure(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRunner(&Tool{YtDlp: filepath.Join(t.TempDir(), "does-not-exist"), Ffmpeg: "ffmpeg"}, log)
	rec := &recorder{}

	err := r.Run(context.Background(), testJob(t.TempDir()), rec.callbacks())
	var spawn *SpawnError
	if !errors.As(err, &spawn) {
		t.Fatalf("expected *SpawnError, got %v", err)
	}
	if len(rec.errors) != 1 {
		t.Errorf("OnError should fire once with the raw spawn failure, got %v", rec.errors)
	}
}

func TestRunner_buildArgs(t *testing.T) {
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	r := NewRunner(&Tool{YtDlp: "yt-dlp", Ffmpeg: "ffmpeg"}, log)

	t.Run("lossy includes quality", func(t *testing.T) {
		args := strings.Join(r.buildArgs(Job{URL: "u", VideoID: "v", OutputDir: "/tmp/x", Format: FormatMP3, Quality: 192}), " ")
		if !strings.Contains(args, "--audio-format mp3") || !strings.Contains(args, "--audio-quality 192K") {
			t.Errorf("mp3 args: %v", args)
		}
		if !strings.Contains(args, "--newline") || !strings.Contains(args, "%(title)s.%(ext)s") {
			t.Errorf("missing progress/output flags: %v", args)
		}
	})

	t.Run("lossless omits quality", func(t *testing.T) {
		args := strings.Join(r.buildArgs(Job{URL: "u", VideoID: "v", OutputDir: "/tmp/x", Format: FormatFLAC, Quality: 320}), " ")
		if strings.Contains(args, "--audio-quality") {
			t.Errorf("flac must not carry audio-quality: %v", args)
		}
	})
}
