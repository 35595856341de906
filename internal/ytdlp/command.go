package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Tool holds the resolved paths to the external yt-dlp and ffmpeg executables.
// All external invocations (metadata dumps, downloads, health probes) go
// through a Tool so tests can point it at stub binaries.
type Tool struct {
	YtDlp  string
	Ffmpeg string
}

// NewTool returns a Tool using the given executable paths. An empty path is
// resolved by looking for a bundled binary under ./bin first, then falling
// back to the bare command name so the system PATH is consulted.
func NewTool(ytdlpPath, ffmpegPath string) *Tool {
	if ytdlpPath == "" {
		ytdlpPath = locateBinary("yt-dlp")
	}
	if ffmpegPath == "" {
		ffmpegPath = locateBinary("ffmpeg")
	}
	return &Tool{YtDlp: ytdlpPath, Ffmpeg: ffmpegPath}
}

// locateBinary prefers a bundled binary in ./bin relative to the working
// directory; otherwise the bare name is returned for PATH lookup.
func locateBinary(name string) string {
	binName := name
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	local := filepath.Join("bin", binName)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return name
}

// errOutputTruncated marks command output that exceeded the caller's buffer
// bound. The copy aborts, which also tears down the child via closed pipes.
var errOutputTruncated = errors.New("command output exceeded buffer limit")

// limitedWriter writes through to buf until max bytes have been written,
// then fails.
type limitedWriter struct {
	buf *bytes.Buffer
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if int64(w.buf.Len())+int64(len(p)) > w.max {
		return 0, errOutputTruncated
	}
	return w.buf.Write(p)
}

// runCmdFunc abstracts a run-to-completion command invocation with a bounded
// stdout buffer. The Resolver uses it so tests can inject canned output.
type runCmdFunc func(ctx context.Context, maxOutput int64, name string, args ...string) ([]byte, error)

// runCommand executes name with args and returns its stdout, holding at most
// maxOutput bytes of it in memory. On a non-zero exit the captured stderr is
// folded into the returned error so callers can translate it.
func runCommand(ctx context.Context, maxOutput int64, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{buf: &stdout, max: maxOutput}
	cmd.Stderr = &limitedWriter{buf: &stderr, max: maxOutput}

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, stderr.String())
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
