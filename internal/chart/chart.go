// Package chart compiles authored sections into phase tables and concrete
// keyframes, one visual parameter set per element.
package chart

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/dataset"
	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/logging"
	"github.com/ivlev/scrollviz/internal/phase"
	"github.com/ivlev/scrollviz/internal/scroll"
	"github.com/ivlev/scrollviz/internal/visual"
)

// MissingDataError reports a row field that was absent or not a number.
// The attribute falls back to the channel default.
type MissingDataError struct {
	Element string
	Attr    string
	Field   string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("element %s: attribute %s: field %q missing or not numeric", e.Element, e.Attr, e.Field)
}

// Section is a compiled chart ready for the engine.
type Section struct {
	ID        string
	Region    scroll.Region
	Phases    *phase.Table
	Keyframes map[string]visual.Keyframe

	// Order lists element ids in drawing order.
	Order []string
	// Rows holds the source record of every row-driven element.
	Rows map[string]dataset.Record
	// Missing collects the fallbacks taken while compiling.
	Missing []*MissingDataError

	specs   []director.PhaseSpec
	easings []visual.Easing
}

// Endpoints returns the keyframes and easing of phase i.
func (s *Section) Endpoints(i int) (from, to visual.Keyframe, ease visual.Easing) {
	spec := s.specs[i]
	return s.Keyframes[spec.From], s.Keyframes[spec.To], s.easings[i]
}

// Initial is the state at progress 0, used when a section mounts.
func (s *Section) Initial(in *visual.Interpolator) visual.State {
	from, to, ease := s.Endpoints(0)
	st := in.Interpolate(s.Phases.Phase(0).ID, 0, from, to, ease)
	st.Section = s.ID
	return st
}

// Compile builds the section. table may be nil for sections without marks.
func Compile(spec director.Section, table *dataset.Table, logger *zap.Logger) (*Section, error) {
	logger = logging.OrNop(logger).With(zap.String("section", spec.ID))

	phases, err := phase.NewTable(spec.PhaseList())
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", spec.ID, err)
	}

	s := &Section{
		ID:        spec.ID,
		Region:    spec.Region(),
		Phases:    phases,
		Keyframes: make(map[string]visual.Keyframe, len(spec.Keyframes)),
		Rows:      make(map[string]dataset.Record),
		specs:     spec.Phases,
		easings:   make([]visual.Easing, len(spec.Phases)),
	}
	if err := s.Region.Validate(); err != nil {
		return nil, fmt.Errorf("section %s: %w", spec.ID, err)
	}

	for i, p := range spec.Phases {
		ease, err := visual.EasingByName(p.Easing)
		if err != nil {
			return nil, fmt.Errorf("section %s: phase %s: %w", spec.ID, p.ID, err)
		}
		s.easings[i] = ease
		for _, name := range []string{p.From, p.To} {
			if _, ok := spec.Keyframes[name]; !ok {
				return nil, fmt.Errorf("section %s: phase %s: unknown keyframe %q", spec.ID, p.ID, name)
			}
		}
	}

	var marks []mark
	if spec.Marks != nil {
		if table == nil {
			return nil, fmt.Errorf("section %s: marks need a dataset", spec.ID)
		}
		marks = selectMarks(*spec.Marks, table)
	}

	c := &compiler{
		section: s,
		marks:   marks,
		domains: make(map[string][2]float64),
		logger:  logger,
	}
	for name, kf := range spec.Keyframes {
		k, err := c.keyframe(name, kf, spec.Marks)
		if err != nil {
			return nil, fmt.Errorf("section %s: keyframe %s: %w", spec.ID, name, err)
		}
		s.Keyframes[name] = k
	}
	s.Order = c.order(spec)

	if len(s.Missing) > 0 {
		logger.Info("Section compiled with fallbacks", zap.Int("missing", len(s.Missing)))
	}
	return s, nil
}

// mark is one selected row and the element it drives.
type mark struct {
	id  string
	rec dataset.Record
}

func selectMarks(m director.Marks, table *dataset.Table) []mark {
	t := table
	if m.Filter != nil {
		t = t.Filter(m.Filter.Field, m.Filter.Value)
	}
	if len(m.Require) > 0 {
		t = t.WithNumbers(m.Require...)
	}
	if m.SortField != "" {
		t = t.SortBy(m.SortField, m.Desc)
	}
	t = t.Head(m.Limit)

	out := make([]mark, 0, len(t.Rows))
	ids := make(map[string]bool, len(t.Rows))
	for i, r := range t.Rows {
		rec := make(dataset.Record, len(r)+3)
		for k, v := range r {
			rec[k] = v
		}
		rec["_index"] = fmt.Sprint(i)
		if g := m.Grid; g != nil && g.Columns > 0 {
			col, row := i%g.Columns, i/g.Columns
			rec["_grid_x"] = fmt.Sprint(g.Origin[0] + (float64(col)+0.5)*g.Cell[0])
			rec["_grid_y"] = fmt.Sprint(g.Origin[1] + (float64(row)+0.5)*g.Cell[1])
		}

		id := r[m.IDField]
		if m.IDField == "" || id == "" {
			id = fmt.Sprintf("row-%d", i)
		}
		id = uniqueID(ids, id)
		if m.Stack != nil && len(m.Stack.Keys) > 0 {
			out = append(out, stackRow(ids, id, rec, *m.Stack)...)
			continue
		}
		out = append(out, mark{id: id, rec: rec})
	}
	return out
}

// stackRow expands a row into one segment per stack key. Segments of the
// same row lie end to end; with the expand offset they cover [0, 1].
// Missing or negative values count as zero.
func stackRow(ids map[string]bool, rowID string, rec dataset.Record, st director.Stack) []mark {
	values := make([]float64, len(st.Keys))
	var total float64
	for j, key := range st.Keys {
		if v, ok := rec.Number(key); ok && v > 0 {
			values[j] = v
			total += v
		}
	}
	expand := st.Offset == "" || st.Offset == "expand"

	out := make([]mark, 0, len(st.Keys))
	var y0 float64
	for j, key := range st.Keys {
		v := values[j]
		if expand {
			if total > 0 {
				v /= total
			} else {
				v = 0
			}
		}
		seg := make(dataset.Record, len(rec)+6)
		for k, s := range rec {
			seg[k] = s
		}
		seg["_key"] = key
		seg["_key_index"] = fmt.Sprint(j)
		seg["_value"] = fmt.Sprint(values[j])
		seg["_y0"] = fmt.Sprint(y0)
		seg["_y1"] = fmt.Sprint(y0 + v)
		seg["_span"] = fmt.Sprint(v)
		y0 += v
		out = append(out, mark{id: uniqueID(ids, rowID+"/"+key), rec: seg})
	}
	return out
}

// uniqueID suffixes id with -1, -2, ... until it has not been issued.
func uniqueID(issued map[string]bool, id string) string {
	out := id
	for n := 1; issued[out]; n++ {
		out = fmt.Sprintf("%s-%d", id, n)
	}
	issued[out] = true
	return out
}

type compiler struct {
	section *Section
	marks   []mark
	domains map[string][2]float64
	logger  *zap.Logger
}

func (c *compiler) keyframe(name string, spec director.KeyframeSpec, m *director.Marks) (visual.Keyframe, error) {
	kf := visual.Keyframe{Name: name, Elements: make(map[string]visual.Params)}

	for id, enc := range spec.Elements {
		params, err := c.encode(id, enc, nil)
		if err != nil {
			return visual.Keyframe{}, err
		}
		kf.Elements[id] = params
	}

	for _, mk := range c.marks {
		params, err := c.encode(mk.id, spec.Marks, mk.rec)
		if err != nil {
			return visual.Keyframe{}, err
		}
		if m.LabelField != "" {
			if _, ok := params["label"]; !ok {
				params["label"] = visual.Text(mk.rec[m.LabelField])
			}
		}
		if m.CountryField != "" {
			params["country-id"] = c.country(mk, m.CountryField)
		}
		kf.Elements[mk.id] = params
		c.section.Rows[mk.id] = mk.rec
	}
	return kf, nil
}

func (c *compiler) encode(id string, enc director.Encoding, rec dataset.Record) (visual.Params, error) {
	params := make(visual.Params, len(enc))
	for attr, ch := range enc {
		v, err := c.channel(ch, rec)
		var missing *MissingDataError
		switch {
		case err == nil:
		case asMissing(err, &missing):
			missing.Element, missing.Attr = id, attr
			c.section.Missing = append(c.section.Missing, missing)
			c.logger.Warn("Missing data, using default",
				zap.String("element", id),
				zap.String("attr", attr),
				zap.String("field", missing.Field))
			v = fallback(ch)
		default:
			return nil, fmt.Errorf("element %s: attribute %s: %w", id, attr, err)
		}
		params[attr] = v
	}
	return params, nil
}

// order puts fixed elements first, then marks in row order, and finally
// sorts by the "z" attribute of the first phase's source keyframe.
func (c *compiler) order(spec director.Section) []string {
	var ids []string
	seen := make(map[string]bool)
	names := make([]string, 0, len(spec.Keyframes))
	for name := range spec.Keyframes {
		names = append(names, name)
	}
	sort.Strings(names)

	var statics []string
	for _, name := range names {
		for id := range spec.Keyframes[name].Elements {
			if !seen[id] {
				seen[id] = true
				statics = append(statics, id)
			}
		}
	}
	sort.Strings(statics)
	ids = append(ids, statics...)
	for _, mk := range c.marks {
		ids = append(ids, mk.id)
	}

	first := c.section.Keyframes[spec.Phases[0].From]
	sort.SliceStable(ids, func(i, j int) bool {
		return first.Elements[ids[i]].Num("z", 0) < first.Elements[ids[j]].Num("z", 0)
	})
	return ids
}
