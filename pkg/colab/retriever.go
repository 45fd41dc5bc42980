package colab

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/output"
	"github.com/ttngo/bulletincast/pkg/poll"
)

// RetrieverOptions configures a Retriever.
type RetrieverOptions struct {
	// RemoteAudioPath is the notebook-side path of the generated audio
	RemoteAudioPath string

	// DownloadDir is where the browser saves downloads
	DownloadDir string

	// MarkerTimeout bounds waiting for the generation-complete marker
	MarkerTimeout time.Duration

	// DownloadTimeout bounds waiting for the download to land on disk
	DownloadTimeout time.Duration

	// CheckInterval is the polling interval for marker and download
	CheckInterval time.Duration
}

// Retriever gets the generated audio out of the notebook: confirm the
// generation-complete marker, trigger the download, wait for the file and
// verify it.
type Retriever struct {
	surface Surface
	waiter  *poll.Waiter
	opts    RetrieverOptions
	log     *logging.Logger
}

// NewRetriever creates a retriever. A nil clock uses real time.
func NewRetriever(surface Surface, clock poll.Clock, opts RetrieverOptions) *Retriever {
	return &Retriever{
		surface: surface,
		waiter:  poll.NewWaiter(clock),
		opts:    opts,
		log:     logging.ForComponent("retriever"),
	}
}

// Retrieve returns the local path of the verified downloaded artifact.
func (r *Retriever) Retrieve(ctx context.Context, plan *ExecutionPlan) (string, error) {
	if err := r.waitForMarker(ctx, plan.InjectionIndex); err != nil {
		return "", err
	}

	r.log.Infof("triggering download of %s", r.opts.RemoteAudioPath)
	if err := r.surface.TriggerDownload(ctx, r.opts.RemoteAudioPath); err != nil {
		return "", &output.ArtifactMissingError{
			Dir:      r.opts.DownloadDir,
			Filename: path.Base(r.opts.RemoteAudioPath),
			Err:      err,
		}
	}

	filename := path.Base(r.opts.RemoteAudioPath)
	localPath, err := output.WaitForDownload(ctx, r.opts.DownloadDir, filename, r.opts.DownloadTimeout, r.opts.CheckInterval)
	if err != nil {
		if strays := output.StrayDownloads(r.opts.DownloadDir); len(strays) > 0 {
			r.log.Warnf("download of %s missing, directory contains: %s", filename, strings.Join(strays, ", "))
		}
		return "", err
	}

	if err := output.VerifyWAV(localPath); err != nil {
		return "", err
	}

	r.log.Infof("artifact downloaded and verified: %s", localPath)
	return localPath, nil
}

// waitForMarker confirms the injected cell printed the completion marker.
// The cells have already finished by the time this runs, so the marker
// should be present almost immediately; the wait covers output rendering lag.
func (r *Retriever) waitForMarker(ctx context.Context, index int) error {
	err := r.waiter.Until(ctx, r.opts.CheckInterval, r.opts.MarkerTimeout, func(ctx context.Context) (bool, error) {
		out, oerr := r.surface.CellOutput(ctx, index)
		if oerr != nil {
			r.log.Debugf("output check failed: %v", oerr)
			return false, nil
		}
		return strings.Contains(out, markerComplete), nil
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			r.log.Errorf("generation marker not found after %s", r.opts.MarkerTimeout)
			return &GenerationIncompleteError{Waited: r.opts.MarkerTimeout}
		}
		return err
	}
	r.log.Infof("generation complete marker found")
	return nil
}
