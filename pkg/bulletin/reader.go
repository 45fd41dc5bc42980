// Package bulletin reads the dated news-bulletin text files produced by the
// upstream pipeline. Bulletins are plain UTF-8 files named YYYY-MM-DD.txt in
// a single directory; this package only locates, loads, and sanity-checks
// them — producing bulletin text is upstream's job.
package bulletin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gobwas/glob"

	"github.com/ttngo/bulletincast/pkg/dateutil"
)

// MinLength is the minimum number of characters a bulletin must contain to
// be worth a browser run. Anything shorter is almost certainly a truncated
// or failed upstream write.
const MinLength = 50

// bulletinPattern matches dated bulletin filenames.
var bulletinPattern = glob.MustCompile("????-??-??.txt")

// Reader loads bulletins from a directory.
type Reader struct {
	dir string
}

// NewReader creates a reader over the given bulletin directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// Path returns the expected bulletin path for a date.
func (r *Reader) Path(date time.Time) string {
	return filepath.Join(r.dir, date.Format(dateutil.Layout)+".txt")
}

// Read loads and validates the bulletin for the given date.
func (r *Reader) Read(date time.Time) (string, error) {
	path := r.Path(date)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no bulletin for %s (expected %s)", date.Format(dateutil.Layout), path)
		}
		return "", fmt.Errorf("failed to read bulletin %s: %w", path, err)
	}

	text := strings.TrimSpace(string(data))
	if err := Validate(text); err != nil {
		return "", fmt.Errorf("bulletin %s: %w", path, err)
	}
	return text, nil
}

// Latest returns the most recent bulletin text and its date.
func (r *Reader) Latest() (string, time.Time, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to list bulletin directory %s: %w", r.dir, err)
	}

	var dates []time.Time
	for _, entry := range entries {
		if entry.IsDir() || !bulletinPattern.Match(entry.Name()) {
			continue
		}
		date, err := time.ParseInLocation(dateutil.Layout, strings.TrimSuffix(entry.Name(), ".txt"), time.Local)
		if err != nil {
			continue // dated-looking name that is not a date
		}
		dates = append(dates, date)
	}

	if len(dates) == 0 {
		return "", time.Time{}, fmt.Errorf("no bulletins found in %s", r.dir)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	text, err := r.Read(dates[0])
	if err != nil {
		return "", time.Time{}, err
	}
	return text, dates[0], nil
}

// Validate sanity-checks bulletin text before any browser work starts.
func Validate(text string) error {
	if text == "" {
		return fmt.Errorf("bulletin is empty")
	}
	if utf8.RuneCountInString(text) < MinLength {
		return fmt.Errorf("bulletin too short: %d characters (minimum %d)", utf8.RuneCountInString(text), MinLength)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("bulletin is not valid UTF-8")
	}
	return nil
}
