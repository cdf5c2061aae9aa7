package dispatcher

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"exportwatch/internal/scanner"
	"exportwatch/internal/watcher"
)

// Reconcile feeds one created event for every file already present in the
// monitored roots. Admitted files are moved concurrently, so a locked file
// does not hold up the rest. Roots that cannot be listed are logged and
// skipped; their errors are returned joined once every other root has been
// processed. The returned count is the number of files handed to the
// pipeline.
func (d *Dispatcher) Reconcile(ctx context.Context) (int, error) {
	var errs []error
	var entries []scanner.FileEntry

	for _, root := range d.roots {
		files, err := scanner.List(root, scanner.Options{Ignore: d.filter.ShouldIgnore})
		if err != nil {
			d.logger.Warn("cannot list monitored root", "root", root, "error", err)
			errs = append(errs, err)
			continue
		}
		entries = append(entries, files...)
	}
	d.metrics.RecordReconciled(len(entries))
	d.logger.Info("startup reconciliation", "roots", len(d.roots), "files", len(entries))

	var pending errgroup.Group
	handled := 0
	for _, f := range entries {
		if err := ctx.Err(); err != nil {
			pending.Wait()
			return handled, err
		}
		d.dispatch(ctx, &pending, watcher.Event{Path: f.FullPath, Kind: watcher.Created, ObservedAt: d.now()})
		handled++
	}
	pending.Wait()
	return handled, errors.Join(errs...)
}

// Run consumes src with one worker per root until ctx is cancelled or every
// root's channel is closed, reconciling the roots alongside. Each admitted
// event is processed on its own goroutine; the in-flight claim keeps a path
// from being moved twice.
func (d *Dispatcher) Run(ctx context.Context, src watcher.Source) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if _, err := d.Reconcile(ctx); err != nil && ctx.Err() == nil {
			d.logger.Warn("reconciliation incomplete", "error", err)
		}
		return nil
	})

	for _, root := range d.roots {
		events := src.Events(root)
		if events == nil {
			d.logger.Warn("no event stream for root", "root", root)
			continue
		}
		g.Go(func() error {
			return d.work(ctx, root, events)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) work(ctx context.Context, root string, events <-chan watcher.Event) error {
	d.logger.Debug("worker started", "root", root)

	var pending errgroup.Group
	for {
		select {
		case <-ctx.Done():
			return pending.Wait()
		case ev, ok := <-events:
			if !ok {
				return pending.Wait()
			}
			d.dispatch(ctx, &pending, ev)
		}
	}
}

// dispatch admits ev on the calling goroutine, which keeps debounce
// decisions in arrival order, and processes it on g.
func (d *Dispatcher) dispatch(ctx context.Context, g *errgroup.Group, ev watcher.Event) {
	ev, _, ok := d.admit(ev)
	if !ok {
		return
	}
	g.Go(func() error {
		d.process(ctx, ev)
		return nil
	})
}
