package orchestrator

import (
	"archive/zip"
	"compress/flate"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// audioExtensions are the file extensions recognized as downloaded audio
// during the finalization scan.
var audioExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".wav":  true,
	".aac":  true,
	".m4a":  true,
}

// zipCompressionLevel is a moderate flate level: archives of already
// compressed audio gain little from level 9.
const zipCompressionLevel = 5

var (
	nonAlnumRe    = regexp.MustCompile(`[^a-z0-9]+`)
	underscoresRe = regexp.MustCompile(`_+`)
	// stripMarks removes combining marks after NFD decomposition, folding
	// accented characters to their base letter.
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
)

// Slugify normalizes free text into a filesystem-safe token: accents folded
// to base letters, lowercased, runs of non-alphanumerics collapsed to a
// single underscore, leading/trailing underscores trimmed. The result may be
// empty; callers must supply their own fallback.
func Slugify(text string) string {
	folded, _, err := transform.String(stripMarks, text)
	if err != nil {
		folded = text
	}
	s := strings.ToLower(folded)
	s = nonAlnumRe.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	return underscoresRe.ReplaceAllString(s, "_")
}

// collectAudioFiles returns the names (not paths) of recognized audio files
// directly inside dir, sorted for deterministic archive ordering.
func collectAudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if audioExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// buildArchive writes a zip named zipName into dir containing the given
// files (names relative to dir) and returns the archive's full path.
func buildArchive(dir, zipName string, files []string) (string, error) {
	zipPath := filepath.Join(dir, zipName)

	out, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, zipCompressionLevel)
	})

	for _, name := range files {
		if err := addToArchive(zw, filepath.Join(dir, name), name); err != nil {
			zw.Close()
			return "", fmt.Errorf("archive %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return zipPath, nil
}

func addToArchive(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
