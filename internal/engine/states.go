package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/visual"
)

// FrameStates is the state of every section after one frame.
type FrameStates struct {
	Frame   int            `yaml:"frame"`
	ScrollY float64        `yaml:"scroll_y"`
	States  []visual.State `yaml:"states"`
}

// StateDump is the YAML document written by the states command.
type StateDump struct {
	Article  string            `yaml:"article"`
	Viewport director.Viewport `yaml:"viewport"`
	Frames   []FrameStates     `yaml:"frames"`
}

// DumpStates steps the article through trace and keeps every nth frame
// and the last one.
func DumpStates(ctx context.Context, spec *director.Article, baseDir string, trace Trace, every int, logger *zap.Logger) (*StateDump, error) {
	if every < 1 {
		every = 1
	}

	sched := scroll.NewManualScheduler()
	rt, err := NewArticle(spec, baseDir, sched, logger)
	if err != nil {
		return nil, err
	}
	defer rt.Close()
	if err := rt.MountAll(ctx); err != nil {
		return nil, err
	}

	dump := &StateDump{Article: spec.Title, Viewport: spec.Viewport}
	var y float64
	for i, points := range trace {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, pt := range points {
			rt.Scroll(pt.ScrollY, pt.Viewport)
			y = pt.ScrollY
		}
		sched.Flush()

		if i%every == 0 || i == len(trace)-1 {
			dump.Frames = append(dump.Frames, FrameStates{Frame: i, ScrollY: y, States: rt.States()})
		}
	}
	return dump, nil
}
