package ytdlp

import (
	"regexp"
	"strings"
)

const genericFetchError = "Something went wrong while fetching this URL. Please check the link and try again."

// errorRule maps a set of lowercase substrings in raw yt-dlp output to a
// short human-readable message. Rules are checked in order; the first match
// wins, so more specific rules must come before broader ones.
type errorRule struct {
	substrings []string
	message    string
}

var errorRules = []errorRule{
	{
		substrings: []string{"playlist does not exist"},
		message:    "This playlist doesn't exist. It may be private or the link may be wrong.",
	},
	{
		substrings: []string{"private video", "sign in to confirm your age", "login required"},
		message:    "This video is private or age-restricted and can't be accessed.",
	},
	{
		substrings: []string{"video unavailable", "this video is unavailable"},
		message:    "This video is unavailable. It may have been removed or region-locked.",
	},
	{
		substrings: []string{"is not a valid url", "unsupported url"},
		message:    "This URL isn't recognized. Please paste a valid YouTube video or playlist link.",
	},
	{
		substrings: []string{"no video formats found", "requested format not available"},
		message:    "No downloadable formats were found for this video.",
	},
	{
		substrings: []string{"http error 403", "forbidden"},
		message:    "Access denied by YouTube. The content may be restricted.",
	},
	{
		substrings: []string{"http error 404", "not found"},
		message:    "Content not found. The video or playlist may have been deleted.",
	},
	{
		substrings: []string{"http error 429", "too many requests"},
		message:    "Too many requests. YouTube is rate-limiting you — try again later.",
	},
	{
		substrings: []string{"unable to download webpage", "urlopen error", "network"},
		message:    "Network error. Check your internet connection and try again.",
	},
	{
		substrings: []string{"copyright"},
		message:    "This video can't be downloaded due to a copyright claim.",
	},
}

var (
	errorLineRe  = regexp.MustCompile(`(?i)ERROR:\s*(.+)`)
	bracketTagRe = regexp.MustCompile(`\[[\w:]+\]\s*[\w-]+:\s*`)
)

// FriendlyError turns raw yt-dlp diagnostic output into a short message fit
// for end users. Known failure modes are matched by substring rules; failing
// that, the first ERROR: line is extracted (with its leading extractor tag
// stripped) if it is reasonably short; otherwise a generic fallback is used.
func FriendlyError(raw string) string {
	s := strings.ToLower(raw)

	for _, rule := range errorRules {
		for _, sub := range rule.substrings {
			if strings.Contains(s, sub) {
				return rule.message
			}
		}
	}

	if m := errorLineRe.FindStringSubmatch(raw); m != nil {
		cleaned := m[1]
		if loc := bracketTagRe.FindStringIndex(cleaned); loc != nil {
			cleaned = cleaned[:loc[0]] + cleaned[loc[1]:]
		}
		cleaned = strings.TrimSpace(cleaned)
		if len(cleaned) > 0 && len(cleaned) < 200 {
			return cleaned
		}
	}

	return genericFetchError
}
