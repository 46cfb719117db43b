package engine

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/visual"
)

// LiveStats counts the work of a real-time replay.
type LiveStats struct {
	Frames   int
	Samples  uint64
	Computed uint64
	Dropped  uint64
}

// Play replays trace in real time. Events are delivered on their own
// goroutine at the trace frame rate while a FrameLoop coalesces them, as
// they would be in a browser. onFrame, if set, sees the states after each
// fed frame.
func Play(ctx context.Context, spec *director.Article, baseDir string, trace Trace, fps int, logger *zap.Logger, onFrame func([]visual.State)) (*LiveStats, error) {
	loop := scroll.NewFrameLoop(fps)
	rt, err := NewArticle(spec, baseDir, loop, logger)
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	if err := rt.MountAll(ctx); err != nil {
		return nil, err
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	stats := &LiveStats{}
	g.Go(func() error {
		defer stopLoop()
		ticker := time.NewTicker(time.Second / time.Duration(max(fps, 1)))
		defer ticker.Stop()

		for _, points := range trace {
			select {
			case <-gctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			for _, pt := range points {
				rt.Scroll(pt.ScrollY, pt.Viewport)
			}
			stats.Frames++
			if onFrame != nil {
				onFrame(rt.States())
			}
		}

		// let the loop run the frames still requested
		deadline := time.After(time.Second)
		for loop.Pending() > 0 {
			select {
			case <-gctx.Done():
				return ctx.Err()
			case <-deadline:
				return nil
			case <-ticker.C:
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, c := range rt.mounted() {
		s := c.TrackerStats()
		stats.Samples += s.Samples
		stats.Computed += s.Computed
		stats.Dropped += s.Dropped
	}
	return stats, nil
}
