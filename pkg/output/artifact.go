// Package output handles the generated audio artifact on the local
// filesystem: waiting for the browser download to land, verifying the file
// is a plausible WAV, placing it at its dated destination, and cleaning up
// partial files so a failed run never leaves a corrupt artifact behind.
package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/ttngo/bulletincast/pkg/logging"
)

// minArtifactSize is the smallest plausible synthesized audio file.
const minArtifactSize = 1000

// partialPattern matches in-progress Chromium downloads.
var partialPattern = glob.MustCompile("*.crdownload")

// wavPattern matches completed audio downloads.
var wavPattern = glob.MustCompile("*.wav")

// ArtifactMissingError indicates the expected download never appeared.
type ArtifactMissingError struct {
	Dir      string
	Filename string
	Err      error
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("artifact %s did not appear in %s: %v", e.Filename, e.Dir, e.Err)
}

func (e *ArtifactMissingError) Unwrap() error { return e.Err }

func (e *ArtifactMissingError) Retryable() bool { return true }

// ArtifactCorruptError indicates the downloaded file failed verification.
type ArtifactCorruptError struct {
	Path   string
	Reason string
}

func (e *ArtifactCorruptError) Error() string {
	return fmt.Sprintf("artifact %s failed verification: %s", e.Path, e.Reason)
}

func (e *ArtifactCorruptError) Retryable() bool { return true }

// WaitForDownload blocks until filename exists in dir as a complete
// download, or the timeout elapses. Completion means the file is present
// and non-empty with no matching .crdownload partial next to it. The
// directory is watched with fsnotify; a ticker covers filesystems where
// inotify events do not fire.
func WaitForDownload(ctx context.Context, dir, filename string, timeout, interval time.Duration) (string, error) {
	log := logging.ForComponent("output")
	log.Infof("waiting up to %s for download of %s in %s", timeout, filename, dir)

	if path, ok := downloadComplete(dir, filename); ok {
		return path, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if werr := watcher.Add(dir); werr != nil {
			log.Debugf("could not watch %s: %v", dir, werr)
		}
	} else {
		log.Debugf("fsnotify unavailable, polling only: %v", err)
		watcher = nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var events chan fsnotify.Event
	if watcher != nil {
		events = watcher.Events
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", &ArtifactMissingError{
				Dir:      dir,
				Filename: filename,
				Err:      fmt.Errorf("download timeout after %s", timeout),
			}
		case ev := <-events:
			if partialPattern.Match(filepath.Base(ev.Name)) {
				log.Debugf("download in progress: %s", filepath.Base(ev.Name))
				continue
			}
			if path, ok := downloadComplete(dir, filename); ok {
				return path, nil
			}
		case <-ticker.C:
			if path, ok := downloadComplete(dir, filename); ok {
				return path, nil
			}
		}
	}
}

func downloadComplete(dir, filename string) (string, bool) {
	path := filepath.Join(dir, filename)

	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	if _, err := os.Stat(path + ".crdownload"); err == nil {
		return "", false
	}
	return path, true
}

// VerifyWAV checks that the file at path is a plausible WAV artifact:
// present, at least minArtifactSize bytes, and carrying a RIFF/WAVE header.
func VerifyWAV(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ArtifactCorruptError{Path: path, Reason: fmt.Sprintf("stat failed: %v", err)}
	}
	if info.Size() == 0 {
		return &ArtifactCorruptError{Path: path, Reason: "file is empty"}
	}
	if info.Size() < minArtifactSize {
		return &ArtifactCorruptError{Path: path, Reason: fmt.Sprintf("file too small: %d bytes", info.Size())}
	}

	f, err := os.Open(path)
	if err != nil {
		return &ArtifactCorruptError{Path: path, Reason: fmt.Sprintf("open failed: %v", err)}
	}
	defer f.Close()

	header := make([]byte, 12)
	if _, err := io.ReadFull(f, header); err != nil {
		return &ArtifactCorruptError{Path: path, Reason: fmt.Sprintf("header read failed: %v", err)}
	}
	if !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return &ArtifactCorruptError{Path: path, Reason: "not a RIFF/WAVE file"}
	}

	return nil
}

// Place moves a verified download to its dated destination
// <dir>/<date>.wav, creating the directory if needed.
func Place(src, dir, date string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	dst := DatedPath(dir, date)
	if src == dst {
		return dst, nil
	}

	if err := os.Rename(src, dst); err != nil {
		// downloads may land on a different filesystem
		if cerr := copyFile(src, dst); cerr != nil {
			return "", fmt.Errorf("failed to place artifact: %w", cerr)
		}
		os.Remove(src)
	}
	return dst, nil
}

// DatedPath returns the destination path for a given date.
func DatedPath(dir, date string) string {
	return filepath.Join(dir, date+".wav")
}

// ExistsVerified reports whether a verified artifact already exists for the
// date. Used to skip the whole run when the work is already done.
func ExistsVerified(dir, date string) (string, bool) {
	path := DatedPath(dir, date)
	if err := VerifyWAV(path); err != nil {
		return "", false
	}
	return path, true
}

// CleanupPartial removes any file at the dated destination. Called on
// failure paths so no partial artifact survives a failed run.
func CleanupPartial(dir, date string) error {
	path := DatedPath(dir, date)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove partial artifact: %w", err)
	}
	return nil
}

// StrayDownloads lists completed .wav files in the download directory that
// are not the dated artifact, for diagnostics after a missing download.
func StrayDownloads(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && wavPattern.Match(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	return names
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dst)
		return err
	}
	return out.Close()
}
