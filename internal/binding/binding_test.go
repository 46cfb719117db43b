package binding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ivlev/scrollviz/internal/dataset"
	"github.com/ivlev/scrollviz/internal/visual"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	id    string
	attrs map[string]visual.Value
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) SetAttr(name string, v visual.Value) {
	if r.attrs == nil {
		r.attrs = make(map[string]visual.Value)
	}
	r.attrs[name] = v
}

func sampleState(cx float64) visual.State {
	return visual.State{
		Phase: "morph",
		Elements: map[string]visual.Params{
			"dot":   {"cx": visual.Number(cx), "fill": visual.MustHex("#43cbff")},
			"label": {"text": visual.Text("Software Developers")},
		},
	}
}

func TestApply(t *testing.T) {
	dot := &recorder{id: "dot"}
	orphan := &recorder{id: "not-in-state"}

	n := Apply(sampleState(120), []Target{dot, orphan})
	assert.Equal(t, 1, n)
	assert.Equal(t, 120.0, dot.attrs["cx"].Num)
	assert.Equal(t, "#43cbff", dot.attrs["fill"].String())
	assert.Nil(t, orphan.attrs)
}

func TestApplyWithoutTargetsIsNoop(t *testing.T) {
	assert.Equal(t, 0, Apply(sampleState(1), nil))
	assert.Equal(t, 0, Apply(visual.State{}, []Target{}))
}

func TestHubDeliversToSubscribers(t *testing.T) {
	hub := NewHub(2)
	a := hub.OnHover("dot")
	b := hub.OnHover("dot")
	other := hub.OnHover("label")

	ev := HoverEvent{ElementID: "dot", Enter: true, Record: dataset.Record{"Title": "Data Scientists"}}
	assert.Equal(t, 2, hub.Emit(ev))

	got := <-a
	assert.Equal(t, "Data Scientists", got.Record["Title"])
	assert.Equal(t, ev, <-b)
	assert.Empty(t, other)

	hub.Close()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 0, hub.Emit(ev))

	late := hub.OnHover("dot")
	_, open = <-late
	assert.False(t, open)
	hub.Close()
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(1)
	defer hub.Close()
	ch := hub.OnHover("dot")

	assert.Equal(t, 1, hub.Emit(HoverEvent{ElementID: "dot"}))
	assert.Equal(t, 0, hub.Emit(HoverEvent{ElementID: "dot"}))
	assert.Len(t, ch, 1)
}

func TestHubAnyElement(t *testing.T) {
	hub := NewHub(4)
	defer hub.Close()
	all := hub.OnHover(AnyElement)
	dot := hub.OnHover("dot")

	assert.Equal(t, 2, hub.Emit(HoverEvent{ElementID: "dot", Enter: true}))
	assert.Equal(t, 1, hub.Emit(HoverEvent{ElementID: "label"}))
	assert.Equal(t, 1, hub.Emit(HoverEvent{ElementID: AnyElement}))
	assert.Len(t, all, 3)
	assert.Len(t, dot, 1)
}

func TestSmootherConvergesAndSnaps(t *testing.T) {
	s := NewSmoother(60, 6, 1)

	first := s.Step(sampleState(0))
	assert.Equal(t, 0.0, first.Elements["dot"]["cx"].Num, "first sample starts at rest")

	target := sampleState(100)
	next := s.Step(target)
	cx := next.Elements["dot"]["cx"].Num
	assert.Greater(t, cx, 0.0)
	assert.Less(t, cx, 100.0)
	assert.Equal(t, 100.0, target.Elements["dot"]["cx"].Num, "input is not modified")
	assert.Equal(t, "Software Developers", next.Elements["label"]["text"].Text)

	for i := 0; i < 600; i++ {
		s.Step(target)
	}
	assert.True(t, s.Settled(target, 1e-3))

	s.Reset()
	jumped := s.Step(sampleState(-500))
	assert.Equal(t, -500.0, jumped.Elements["dot"]["cx"].Num)
	require.False(t, s.Settled(target, 1e-3))
}
