package colab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ttngo/bulletincast/pkg/logging"
	"github.com/ttngo/bulletincast/pkg/poll"
)

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	// PageLoadTimeout bounds waiting for the notebook shell to render
	PageLoadTimeout time.Duration

	// RuntimeTimeout bounds runtime attachment. Runtime allocation is a
	// cold-start-prone external resource, so this is much larger than
	// the page-load timeout.
	RuntimeTimeout time.Duration

	// CheckInterval is the runtime state polling interval
	CheckInterval time.Duration
}

// Controller brings the notebook page from freshly-authenticated to
// runtime-attached. An explicit denial signal short-circuits instead of
// waiting out the full runtime timeout.
type Controller struct {
	surface Surface
	waiter  *poll.Waiter
	opts    ControllerOptions
	log     *logging.Logger
}

// NewController creates a controller. A nil clock uses real time.
func NewController(surface Surface, clock poll.Clock, opts ControllerOptions) *Controller {
	return &Controller{
		surface: surface,
		waiter:  poll.NewWaiter(clock),
		opts:    opts,
		log:     logging.ForComponent("controller"),
	}
}

// Connect waits for the notebook page to be ready, then attaches a runtime.
func (c *Controller) Connect(ctx context.Context) error {
	c.log.Infof("waiting for notebook to load (timeout %s)", c.opts.PageLoadTimeout)
	if err := c.surface.WaitReady(ctx, c.opts.PageLoadTimeout); err != nil {
		return fmt.Errorf("notebook failed to load: %w", err)
	}
	c.log.Infof("notebook loaded")

	state, err := c.surface.RuntimeState(ctx)
	if err != nil {
		return fmt.Errorf("runtime state check failed: %w", err)
	}
	if state == RuntimeConnected {
		c.log.Infof("runtime already connected")
		return nil
	}

	c.log.Infof("requesting runtime (timeout %s)", c.opts.RuntimeTimeout)
	if err := c.surface.RequestRuntime(ctx); err != nil {
		return &RuntimeUnavailableError{Err: fmt.Errorf("runtime request failed: %w", err)}
	}

	err = c.waiter.Until(ctx, c.opts.CheckInterval, c.opts.RuntimeTimeout, func(ctx context.Context) (bool, error) {
		state, serr := c.surface.RuntimeState(ctx)
		if serr != nil {
			c.log.Debugf("runtime state check failed: %v", serr)
			return false, nil
		}
		switch state {
		case RuntimeConnected:
			return true, nil
		case RuntimeDenied:
			return false, &RuntimeUnavailableError{
				Denied: true,
				Err:    fmt.Errorf("service refused runtime allocation"),
			}
		default:
			return false, nil
		}
	})
	if err != nil {
		var unavailable *RuntimeUnavailableError
		if errors.As(err, &unavailable) {
			c.log.Errorf("runtime allocation denied")
			return err
		}
		if errors.Is(err, poll.ErrTimeout) {
			c.log.Errorf("runtime did not connect within %s", c.opts.RuntimeTimeout)
			return &RuntimeUnavailableError{Err: err}
		}
		return err
	}

	c.log.Infof("runtime connected")
	return nil
}
