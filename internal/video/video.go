package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ivlev/scrollviz/internal/config"
	"github.com/ivlev/scrollviz/internal/system"
)

// Encoder consumes an ordered frame stream. Frames are returned to the
// system frame pool once written.
type Encoder interface {
	Encode(ctx context.Context, frames <-chan *image.RGBA, path string, params config.FrameParams) error
}

type FFmpegEncoder struct {
	EncoderName string
	Quality     int
	AudioPath   string
}

func (e *FFmpegEncoder) Encode(ctx context.Context, frames <-chan *image.RGBA, videoPath string, params config.FrameParams) error {
	args := e.BuildArgs(videoPath, params)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{buf: &stderr, max: 64 << 10}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}

	written, writeErr := e.stream(ctx, stdin, frames, params)
	stdin.Close()

	if err := cmd.Wait(); err != nil {
		if writeErr != nil {
			err = errors.Join(writeErr, err)
		}
		return fmt.Errorf("ffmpeg wait error after %d frames: %w, output: %s", written, err, lastLines(stderr.String(), 5))
	}
	if writeErr != nil {
		return fmt.Errorf("write raw error: %w", writeErr)
	}
	return nil
}

func (e *FFmpegEncoder) stream(ctx context.Context, w io.Writer, frames <-chan *image.RGBA, params config.FrameParams) (int, error) {
	written := 0
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		case img, ok := <-frames:
			if !ok {
				return written, nil
			}
			width, height := params.Input()
			err := writeRawRGBA(w, img, width, height)
			system.PutImage(img)
			if err != nil {
				return written, err
			}
			written++
		}
	}
}

// BuildArgs returns the ffmpeg command line for a raw RGBA stream on stdin.
func (e *FFmpegEncoder) BuildArgs(videoPath string, params config.FrameParams) []string {
	encoderName := e.EncoderName
	if encoderName == "" {
		encoderName = "libx264"
	}

	inputW, inputH := params.Input()
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", inputW, inputH),
		"-framerate", fmt.Sprintf("%d", params.FPS),
		"-i", "-",
	}
	if e.AudioPath != "" {
		args = append(args, "-i", e.AudioPath, "-map", "0:v", "-map", "1:a", "-c:a", "aac", "-shortest")
	}
	if params.Filter != "" && params.Filter != "null" {
		args = append(args, "-vf", params.Filter)
	}
	args = append(args,
		"-r", fmt.Sprintf("%d", params.FPS),
		"-pix_fmt", "yuv420p",
		"-c:v", encoderName,
	)

	// Качество в зависимости от энкодера
	switch encoderName {
	case "h264_videotoolbox":
		bitrate := e.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", e.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", e.Quality), "-preset", "medium")
	}

	args = append(args, videoPath)
	return args
}

// DefaultQuality picks a quality value per encoder when none is configured.
func DefaultQuality(encoderName string) int {
	switch encoderName {
	case "h264_videotoolbox":
		return 75 // Хорошее качество для VideoToolbox
	case "h264_nvenc":
		return 28 // Эквивалент CRF для NVENC
	default:
		return 23 // Стандартный CRF для x264
	}
}

func writeRawRGBA(w io.Writer, img *image.RGBA, width, height int) error {
	bounds := img.Bounds()
	if bounds.Dx() != width || bounds.Dy() != height {
		return fmt.Errorf("frame is %dx%d, stream is %dx%d", bounds.Dx(), bounds.Dy(), width, height)
	}
	if img.Stride != width*4 || bounds.Min != (image.Point{}) {
		packed := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(packed, packed.Bounds(), img, bounds.Min, draw.Src)
		img = packed
	}
	_, err := w.Write(img.Pix)
	return err
}

// PNGWriter writes the stream as numbered PNG files into a directory.
type PNGWriter struct {
	Prefix string
}

func (p *PNGWriter) Encode(ctx context.Context, frames <-chan *image.RGBA, dir string, params config.FrameParams) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	prefix := p.Prefix
	if prefix == "" {
		prefix = "frame"
	}

	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case img, ok := <-frames:
			if !ok {
				return nil
			}
			err := writePNG(&enc, filepath.Join(dir, fmt.Sprintf("%s_%05d.png", prefix, i)), img)
			system.PutImage(img)
			if err != nil {
				return err
			}
		}
	}
}

func writePNG(enc *png.Encoder, path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// limitedWriter keeps the last max bytes of ffmpeg output.
type limitedWriter struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	l.buf.Write(p)
	if over := l.buf.Len() - l.max; over > 0 {
		tail := append([]byte(nil), l.buf.Bytes()[over:]...)
		l.buf.Reset()
		l.buf.Write(tail)
	}
	return len(p), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
