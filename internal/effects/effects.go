package effects

import (
	"fmt"
	"strings"

	"github.com/ivlev/scrollviz/internal/config"
	"github.com/ivlev/scrollviz/internal/system"
)

// Effect produces the ffmpeg -vf chain applied to the rendered frame stream.
type Effect interface {
	GenerateFilter(params config.FrameParams) string
}

// DefaultEffect fits frames to the output size and fades the preview in
// and out.
type DefaultEffect struct{}

func (e *DefaultEffect) GenerateFilter(p config.FrameParams) string {
	var chain []string

	if w, h := p.Input(); w != p.Width || h != p.Height {
		chain = append(chain, fmt.Sprintf(
			"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
			p.Width, p.Height, p.Width, p.Height,
		))
	}

	fade := p.FadeDuration
	if fade > 0 && p.Duration > 0 {
		// both fades must fit into the clip
		if fade*2 > p.Duration {
			fade = p.Duration / 2
		}
		chain = append(chain,
			fmt.Sprintf("fade=t=in:st=0:d=%f", fade),
			fmt.Sprintf("fade=t=out:st=%f:d=%f", p.Duration-fade, fade),
		)
	}

	if p.Debug && system.CheckFilterSupport("drawtext") {
		label := p.Label
		if label == "" {
			label = "scrollviz"
		}
		chain = append(chain, fmt.Sprintf(
			"drawtext=text='%s | Frame %%{n}':x=10:y=10:fontsize=24:fontcolor=yellow:box=1:boxcolor=black@0.5",
			escapeText(label),
		))
	}

	if len(chain) == 0 {
		return "null"
	}
	return strings.Join(chain, ",")
}

// escapeText quotes characters that drawtext treats specially.
func escapeText(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return r.Replace(s)
}
