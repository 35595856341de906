package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

// progressRe matches yt-dlp's download progress marker, e.g.
// "[download]  42.7% of 3.5MiB at ...".
var progressRe = regexp.MustCompile(`\[download\]\s+([\d.]+)%`)

// ExtractProgress reports the download percentage found in a chunk of yt-dlp
// output, if any. It is stateless and may be called on partial chunks; a
// marker split across chunks is simply not matched.
func ExtractProgress(chunk string) (float64, bool) {
	m := progressRe.FindStringSubmatch(chunk)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

// IsConvertingMarker reports whether a chunk of yt-dlp output contains a
// post-processing phase marker, meaning the download finished and audio
// extraction/transcoding has begun.
func IsConvertingMarker(chunk string) bool {
	return strings.Contains(chunk, "[ExtractAudio]") || strings.Contains(chunk, "[PostProcessor]")
}
