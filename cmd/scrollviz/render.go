package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/effects"
	"github.com/ivlev/scrollviz/internal/engine"
	"github.com/ivlev/scrollviz/internal/system"
	"github.com/ivlev/scrollviz/internal/video"
)

var audioSync bool

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a scroll trace through an article into a video",
	Long: `Replays a scroll trace (a CSV file or a synthetic sweep at constant speed)
through the article, rasterises the active section of every frame and pipes
the frames into ffmpeg. With --frames-dir the frames are written as PNG files
instead.`,
	RunE: runRender,
}

func init() {
	f := renderCmd.Flags()
	f.StringVarP(&cfg.OutputVideo, "output", "o", "", "Путь к видео (если пусто, генерируется автоматически в output/)")
	f.StringVar(&cfg.FramesDir, "frames-dir", "", "Писать кадры в PNG вместо видео")
	f.IntVar(&cfg.Width, "width", cfg.Width, "Ширина видео")
	f.IntVar(&cfg.Height, "height", cfg.Height, "Высота видео")
	f.StringVar(&cfg.Preset, "preset", "", "Формат: 16:9, 9:16, 4:5 (перекрывает width/height)")
	f.Float64Var(&cfg.ViewportHeight, "viewport", 0, "Высота вьюпорта для прокрутки (по умолчанию: из статьи)")
	f.IntVar(&cfg.FPS, "fps", cfg.FPS, "Кадров в секунду")
	f.IntVar(&cfg.Workers, "workers", 0, "Количество потоков (0 = авто)")
	f.IntVar(&cfg.Quality, "quality", 0, "Качество (0 = авто по кодеку)")
	f.StringVar(&cfg.TracePath, "trace", "", "CSV со сценарием прокрутки (frame,scroll_y[,viewport,hover])")
	f.Float64Var(&cfg.StartScroll, "start", 0, "Начальная позиция прокрутки (px)")
	f.Float64Var(&cfg.EndScroll, "end", 0, "Конечная позиция прокрутки (0 = конец статьи)")
	f.Float64Var(&cfg.ScrollSpeed, "speed", cfg.ScrollSpeed, "Скорость прокрутки (px/сек)")
	f.IntVar(&cfg.EventsPerFrame, "events", cfg.EventsPerFrame, "Событий прокрутки на кадр")
	f.Float64Var(&cfg.FadeDuration, "fade", cfg.FadeDuration, "Длительность затухания в начале и конце (сек)")
	f.StringVar(&cfg.AudioPath, "audio", "", "Путь к аудио (по умолчанию: самый свежий файл в input/audio/)")
	f.BoolVar(&audioSync, "audio-sync", true, "Подогнать скорость прокрутки под длительность аудио")
	f.StringVar(&cfg.Smoothing, "smoothing", cfg.Smoothing, "Сглаживание: none, spring")
	f.Float64Var(&cfg.SpringFreq, "spring-frequency", cfg.SpringFreq, "Частота пружины (Гц)")
	f.Float64Var(&cfg.SpringDamping, "spring-damping", cfg.SpringDamping, "Демпфирование пружины")
	f.BoolVar(&cfg.ShowStats, "stats", false, "Показать отчет о производительности")
	f.BoolVar(&cfg.Debug, "debug", false, "Накладывать отладочную подпись")
}

func runRender(cmd *cobra.Command, args []string) error {
	articlePath, err := resolveArticle()
	if err != nil {
		return err
	}
	article, err := director.LoadArticle(articlePath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyPreset(); err != nil {
		return err
	}

	if cfg.AudioPath == "" && cfg.TracePath == "" {
		if latest, err := system.FindLatestFile(audioDir, ".mp3", ".wav", ".m4a", ".aac", ".ogg"); err == nil {
			cfg.AudioPath = latest
			fmt.Printf("[*] Выбрано аудио: %s\n", latest)
		}
	}
	if cfg.AudioPath != "" && audioSync && cfg.TracePath == "" {
		syncToAudio(article)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.OutputVideo == "" && cfg.FramesDir == "" {
		cfg.OutputVideo = autoOutputName(articlePath)
	}

	var enc video.Encoder
	if cfg.FramesDir != "" {
		enc = &video.PNGWriter{}
	} else {
		if !system.FFmpegAvailable() {
			return fmt.Errorf("ffmpeg не найден в PATH")
		}
		if cfg.VideoEncoder == "" {
			cfg.VideoEncoder, _ = system.GetBestH264Encoder()
			if cfg.VideoEncoder != "libx264" {
				fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", cfg.VideoEncoder)
			}
		}
		if cfg.Quality == 0 {
			cfg.Quality = video.DefaultQuality(cfg.VideoEncoder)
		}
		enc = &video.FFmpegEncoder{EncoderName: cfg.VideoEncoder, Quality: cfg.Quality, AudioPath: cfg.AudioPath}
	}

	project := engine.NewProject(cfg, article, filepath.Dir(articlePath), enc, &effects.DefaultEffect{}, logger)
	report, err := project.Run(cmd.Context())
	if err != nil {
		return err
	}

	logger.Debug("Render report", zap.Int("workers", report.Workers), zap.Float64("fps", report.FPS()))
	fmt.Printf("[+++] Успех! Результат: %s\n", report.Output)
	return nil
}

// syncToAudio picks the scroll speed that sweeps the article in exactly
// the length of the audio track.
func syncToAudio(article *director.Article) {
	duration, err := system.GetAudioDuration(cfg.AudioPath)
	if err != nil || duration <= 0 {
		fmt.Printf("[!] Не удалось получить длительность аудио: %v\n", err)
		return
	}
	end := cfg.EndScroll
	if end <= 0 {
		vh := float64(article.Viewport.Height)
		if cfg.ViewportHeight > 0 {
			vh = cfg.ViewportHeight
		}
		end = engine.ScrollExtent(article, vh)
	}
	if distance := end - cfg.StartScroll; distance > 0 {
		cfg.ScrollSpeed = distance / duration
		fmt.Printf("[*] Скорость прокрутки подогнана под аудио (%.2fs): %.1f px/сек\n", duration, cfg.ScrollSpeed)
	}
}

func autoOutputName(articlePath string) string {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logger.Warn("Cannot create output dir", zap.Error(err))
	}
	base := filepath.Base(articlePath)
	name := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.mp4", name, timestamp))
}
