package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivlev/scrollviz/internal/config"
)

func TestBuildArgs(t *testing.T) {
	params := config.FrameParams{Width: 1280, Height: 720, FPS: 30, Filter: "fade=t=in:st=0:d=0.5"}

	tests := []struct {
		name    string
		encoder FFmpegEncoder
		want    []string
	}{
		{"x264", FFmpegEncoder{Quality: 23}, []string{"-c:v libx264", "-crf 23 -preset medium"}},
		{"videotoolbox", FFmpegEncoder{EncoderName: "h264_videotoolbox", Quality: 75}, []string{"-b:v 7500k"}},
		{"nvenc", FFmpegEncoder{EncoderName: "h264_nvenc", Quality: 28}, []string{"-cq 28"}},
		{"audio", FFmpegEncoder{Quality: 23, AudioPath: "a.mp3"}, []string{"-i a.mp3 -map 0:v -map 1:a", "-shortest"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tt.encoder.BuildArgs("out.mp4", params)
			joined := strings.Join(args, " ")
			assert.Contains(t, joined, "-f rawvideo -pixel_format rgba -video_size 1280x720 -framerate 30 -i -")
			assert.Contains(t, joined, "-vf fade=t=in:st=0:d=0.5")
			for _, w := range tt.want {
				assert.Contains(t, joined, w)
			}
			assert.Equal(t, "out.mp4", args[len(args)-1])
		})
	}

	args := (&FFmpegEncoder{}).BuildArgs("out.mp4", config.FrameParams{Width: 2, Height: 2, FPS: 1, Filter: "null"})
	assert.NotContains(t, args, "-vf")
}

func TestDefaultQuality(t *testing.T) {
	assert.Equal(t, 75, DefaultQuality("h264_videotoolbox"))
	assert.Equal(t, 28, DefaultQuality("h264_nvenc"))
	assert.Equal(t, 23, DefaultQuality("libx264"))
}

func TestWriteRawRGBA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(1, 1, color.RGBA{R: 9, A: 255})

	var buf bytes.Buffer
	require.NoError(t, writeRawRGBA(&buf, img, 2, 2))
	assert.Len(t, buf.Bytes(), 16)
	assert.Equal(t, byte(9), buf.Bytes()[12])

	// sub-images are repacked
	big := image.NewRGBA(image.Rect(0, 0, 4, 4))
	sub := big.SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	buf.Reset()
	require.NoError(t, writeRawRGBA(&buf, sub, 2, 2))
	assert.Len(t, buf.Bytes(), 16)

	assert.Error(t, writeRawRGBA(&buf, img, 4, 4))
}

func TestPNGWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	frames := make(chan *image.RGBA, 3)
	for i := 0; i < 3; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.SetRGBA(0, 0, color.RGBA{G: uint8(i * 50), A: 255})
		frames <- img
	}
	close(frames)

	w := &PNGWriter{}
	require.NoError(t, w.Encode(context.Background(), frames, dir, config.FrameParams{Width: 4, Height: 4, FPS: 30}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "frame_00002.png", entries[2].Name())

	f, err := os.Open(filepath.Join(dir, "frame_00002.png"))
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	_, g, _, _ := decoded.At(0, 0).RGBA()
	assert.Equal(t, uint32(100), g>>8)
}

func TestPNGWriterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&PNGWriter{}).Encode(ctx, make(chan *image.RGBA), t.TempDir(), config.FrameParams{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &limitedWriter{buf: &buf, max: 8}
	w.Write([]byte("0123456789"))
	w.Write([]byte("ab"))
	assert.Equal(t, "456789ab", buf.String())
	assert.Equal(t, "c\nd", lastLines("a\nb\nc\nd\n", 2))
}
