// Package pipeline orchestrates a full synthesis run: open a browser
// session, authenticate against the hosted notebook, attach a runtime,
// execute the cell plan with the bulletin text injected, and bring the
// generated audio home to its dated path. Each attempt owns its session
// end to end; a retry starts from a completely fresh one.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ttngo/bulletincast/pkg/colab"
	"github.com/ttngo/bulletincast/pkg/config"
	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/output"
	"github.com/ttngo/bulletincast/pkg/poll"
	"github.com/ttngo/bulletincast/pkg/retry"
)

// Runner drives synthesis runs for dated bulletins.
type Runner struct {
	cfg    *config.Config
	opener Opener
	clock  poll.Clock
	log    *logging.Logger
}

// NewRunner creates a runner. A nil clock uses real time.
func NewRunner(cfg *config.Config, opener Opener, clock poll.Clock) *Runner {
	if clock == nil {
		clock = poll.SystemClock{}
	}
	return &Runner{
		cfg:    cfg,
		opener: opener,
		clock:  clock,
		log:    logging.ForComponent("pipeline"),
	}
}

// Run synthesizes the bulletin text into <output_dir>/<date>.wav and
// returns the artifact path. If a verified artifact already exists for the
// date the run is skipped entirely. On final failure any partial artifact
// at the dated path is removed.
func (r *Runner) Run(ctx context.Context, date, text string) (string, error) {
	if path, ok := output.ExistsVerified(r.cfg.Paths.OutputDir, date); ok {
		r.log.Infof("artifact for %s already exists at %s, skipping", date, path)
		return path, nil
	}

	if text == "" {
		return "", fmt.Errorf("bulletin text for %s is empty", date)
	}

	policy := retry.Policy{
		MaxAttempts:       r.cfg.Retry.MaxAttempts,
		BaseDelay:         r.cfg.Retry.BaseDelay.Std(),
		BackoffMultiplier: r.cfg.Retry.BackoffMultiplier,
		MaxDelay:          r.cfg.Retry.MaxDelay.Std(),
	}
	coordinator := retry.NewCoordinator(policy, r.clock, r.log)

	var artifact string
	err := coordinator.Run(ctx, func(ctx context.Context, attempt int) error {
		path, aerr := r.attempt(ctx, attempt, date, text)
		if aerr != nil {
			return aerr
		}
		artifact = path
		return nil
	})
	if err != nil {
		if cerr := output.CleanupPartial(r.cfg.Paths.OutputDir, date); cerr != nil {
			r.log.Warnf("partial artifact cleanup failed: %v", cerr)
		}
		return "", err
	}

	r.log.Infof("run for %s complete: %s", date, artifact)
	return artifact, nil
}

// attempt runs one complete session lifecycle. The session opened here is
// closed here, whatever happens in between.
func (r *Runner) attempt(ctx context.Context, attempt int, date, text string) (string, error) {
	start := r.clock.Now()
	stage := func(s Stage, err error) error {
		return &StageError{Stage: s, Attempt: attempt, Elapsed: r.clock.Now().Sub(start), Err: err}
	}

	r.log.Infof("attempt %d: opening browser session", attempt)
	session, err := r.opener.Open(ctx)
	if err != nil {
		return "", stage(StageLaunch, err)
	}
	defer session.Close()

	fail := func(s Stage, err error) error {
		r.captureFailure(session, date, attempt, s)
		return stage(s, err)
	}

	surface := session.Surface()

	auth := colab.NewAuthManager(surface, r.clock, colab.AuthOptions{
		Method:             string(r.cfg.Auth.Method),
		CookiesFile:        r.cfg.Auth.CookiesFile,
		NotebookURL:        r.cfg.Notebook.URL,
		ValidationTimeout:  r.cfg.Timeouts.AuthValidation.Std(),
		InteractiveTimeout: r.cfg.Timeouts.InteractiveAuth.Std(),
		CheckInterval:      r.cfg.Timeouts.CheckInterval.Std(),
	})
	if err := auth.Authenticate(ctx); err != nil {
		return "", fail(StageAuth, err)
	}

	controller := colab.NewController(surface, r.clock, colab.ControllerOptions{
		PageLoadTimeout: r.cfg.Timeouts.PageLoad.Std(),
		RuntimeTimeout:  r.cfg.Timeouts.RuntimeConnect.Std(),
		CheckInterval:   r.cfg.Timeouts.CheckInterval.Std(),
	})
	if err := controller.Connect(ctx); err != nil {
		return "", fail(StageRuntime, err)
	}

	// the plan is rebuilt per attempt so no task state leaks across retries
	plan, err := colab.NewPlan(r.cfg.Notebook.Cells, r.cfg.Notebook.InputCellIndex)
	if err != nil {
		return "", stage(StageExecute, err)
	}

	engine := colab.NewEngine(surface, r.clock, colab.EngineOptions{
		CellTimeout:       r.cfg.Timeouts.CellExecution.Std(),
		GenerationTimeout: r.cfg.Timeouts.Generation.Std(),
		CheckInterval:     r.cfg.Timeouts.CheckInterval.Std(),
		TextVariable:      r.cfg.Notebook.TextVariable,
		RemoteAudioPath:   r.cfg.Notebook.RemoteAudioPath,
		Generation: colab.GenerationParams{
			NumStep:       r.cfg.Generation.NumStep,
			Speed:         r.cfg.Generation.Speed,
			RemoveLongSil: r.cfg.Generation.RemoveLongSil,
			MaxDuration:   r.cfg.Generation.MaxDuration,
		},
	})
	if err := engine.Execute(ctx, plan, text); err != nil {
		return "", fail(StageExecute, err)
	}

	retriever := colab.NewRetriever(surface, r.clock, colab.RetrieverOptions{
		RemoteAudioPath: r.cfg.Notebook.RemoteAudioPath,
		DownloadDir:     session.DownloadDir(),
		MarkerTimeout:   r.cfg.Timeouts.Generation.Std(),
		DownloadTimeout: r.cfg.Timeouts.Download.Std(),
		CheckInterval:   r.cfg.Timeouts.CheckInterval.Std(),
	})
	local, err := retriever.Retrieve(ctx, plan)
	if err != nil {
		return "", fail(StageRetrieve, err)
	}

	artifact, err := output.Place(local, r.cfg.Paths.OutputDir, date)
	if err != nil {
		return "", fail(StagePlace, err)
	}

	elapsed := r.clock.Now().Sub(start)
	r.log.Infof("attempt %d succeeded in %s", attempt, elapsed.Round(time.Second))
	return artifact, nil
}

// captureFailure takes a best-effort screenshot into the log directory.
func (r *Runner) captureFailure(session Session, date string, attempt int, s Stage) {
	dir, err := logging.GetLogDirectory()
	if err != nil {
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("failure-%s-attempt%d-%s.png", date, attempt, s))
	if err := session.Screenshot(path); err != nil {
		r.log.Debugf("failure screenshot skipped: %v", err)
		return
	}
	r.log.Infof("failure screenshot saved to %s", path)
}
