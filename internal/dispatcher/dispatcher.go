package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
)

// Dispatcher executes requests against a Registry.
type Dispatcher struct {
	registry *Registry
	config   Config
	metrics  *Metrics
	log      *logrus.Entry
}

// New creates a dispatcher for the commands in registry.
func New(registry *Registry, config Config) *Dispatcher {
	d := &Dispatcher{registry: registry, config: config, log: config.Logger}
	if d.log == nil {
		d.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.EnableMetrics {
		d.metrics = NewMetrics()
	}
	return d
}

// Dispatch runs the command named by req. Every failure is returned as a
// *CommandError.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	start := time.Now()
	err := d.dispatch(ctx, req)
	if d.metrics != nil {
		d.metrics.RecordDispatch(req.Name, time.Since(start), err)
	}
	if err != nil {
		return &CommandError{Command: req.Name, Err: err}
	}
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, req Request) error {
	cmd, ok := d.registry.Get(req.Name)
	if !ok {
		return ErrUnknownCommand
	}
	if n := len(req.Args); n < cmd.MinArgs || n > cmd.MaxArgs {
		if cmd.MinArgs == cmd.MaxArgs {
			return fmt.Errorf("%w: got %d, want %d", ErrArity, n, cmd.MinArgs)
		}
		return fmt.Errorf("%w: got %d, want %d to %d", ErrArity, n, cmd.MinArgs, cmd.MaxArgs)
	}
	if d.config.RecoverFromPanic {
		return d.executeWithRecovery(ctx, cmd, req)
	}
	return cmd.Handle(ctx, req.Args)
}

func (d *Dispatcher) executeWithRecovery(ctx context.Context, cmd Command, req Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"command": req.Name,
				"panic":   r,
				"stack":   string(debug.Stack()),
			}).Error("command handler panicked")
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return cmd.Handle(ctx, req.Args)
}

// Registry returns the command registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Metrics returns the metrics collector, or nil when disabled.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}
