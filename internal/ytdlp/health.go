package ytdlp

import (
	"context"
	"strings"
	"time"
)

const versionProbeTimeout = 5 * time.Second

// DependencyStatus reports availability of one external executable.
type DependencyStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
}

// Health summarizes whether the external toolchain is usable.
type Health struct {
	Ready  bool             `json:"ready"`
	YtDlp  DependencyStatus `json:"ytdlp"`
	Ffmpeg DependencyStatus `json:"ffmpeg"`
}

// CheckDependencies probes yt-dlp and ffmpeg with short version invocations.
func (t *Tool) CheckDependencies(ctx context.Context) Health {
	ytdlp := probeVersion(ctx, t.YtDlp, "--version")
	ffmpeg := probeVersion(ctx, t.Ffmpeg, "-version")
	return Health{
		Ready:  ytdlp.Available && ffmpeg.Available,
		YtDlp:  ytdlp,
		Ffmpeg: ffmpeg,
	}
}

func probeVersion(ctx context.Context, name string, arg string) DependencyStatus {
	ctx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	out, err := runCommand(ctx, 1<<20, name, arg)
	if err != nil {
		return DependencyStatus{Available: false}
	}
	version, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return DependencyStatus{Available: true, Version: version}
}
