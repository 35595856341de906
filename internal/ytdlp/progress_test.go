package ytdlp

import "testing"

func TestExtractProgress(t *testing.T) {
	cases := []struct {
		name  string
		chunk string
		want  float64
		ok    bool
	}{
		{"typical line", "[download]  42.7% of 3.50MiB at 1.2MiB/s ETA 00:02", 42.7, true},
		{"whole number", "[download] 100% of 3.50MiB in 00:03", 100, true},
		{"start of download", "[download]   0.0% of ~10.00MiB", 0, true},
		{"embedded in chunk", "noise before\n[download]  7.3% of x\nnoise after", 7.3, true},
		{"no marker", "[ExtractAudio] Destination: song.mp3", 0, false},
		{"destination line", "[download] Destination: /tmp/song.webm", 0, false},
		{"empty", "", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ExtractProgress(tc.chunk)
			if ok != tc.ok || got != tc.want {
				t.Errorf("ExtractProgress(%q) = (%v, %v), want (%v, %v)", tc.chunk, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestIsConvertingMarker(t *testing.T) {
	cases := []struct {
		chunk string
		want  bool
	}{
		{"[ExtractAudio] Destination: song.mp3", true},
		{"[PostProcessor] running", true},
		{"[download]  42.7% of 3.50MiB", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsConvertingMarker(tc.chunk); got != tc.want {
			t.Errorf("IsConvertingMarker(%q) = %v, want %v", tc.chunk, got, tc.want)
		}
	}
}
