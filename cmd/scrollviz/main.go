package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/config"
	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/logging"
	"github.com/ivlev/scrollviz/internal/system"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

const (
	articlesDir = "articles"
	audioDir    = "input/audio"
	outputDir   = "output"
)

var (
	cfg        = config.Default()
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "scrollviz",
	Short: "Scroll-driven data article engine and headless preview renderer",
	Long: `scrollviz maps the scroll position of a data article to the visual
state of its charts. Each section owns a phase table and keyframes; scrolling
selects the phase and interpolates between keyframes.

The render command replays a scroll trace through an article and encodes the
frames with ffmpeg, for previews and social clips.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := overlayConfig(cmd, configPath); err != nil {
				return err
			}
		}
		cfg.BuildVersion = Version

		var err error
		logger, err = logging.New(cfg.Verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML с настройками (флаги имеют приоритет)")
	rootCmd.PersistentFlags().StringVarP(&cfg.ArticlePath, "article", "a", "", "Путь к статье (по умолчанию: самый свежий файл в articles/)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Подробный лог (debug)")

	rootCmd.AddCommand(renderCmd, statesCmd, validateCmd, watchCmd)
}

// overlayConfig applies a config file beneath the flags given on the
// command line.
func overlayConfig(cmd *cobra.Command, path string) error {
	changed := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	if err := config.LoadInto(path, cfg); err != nil {
		return err
	}
	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("flag --%s: %w", name, err)
		}
	}
	return nil
}

// resolveArticle picks the article given on the command line or the most
// recent one in articles/.
func resolveArticle() (string, error) {
	if cfg.ArticlePath != "" {
		return cfg.ArticlePath, nil
	}
	latest, err := director.FindLatestArticle(articlesDir)
	if err != nil {
		return "", fmt.Errorf("%w. Положите статью в %s/", err, articlesDir)
	}
	fmt.Printf("[*] Выбрана статья: %s\n", latest)
	cfg.ArticlePath = latest
	return latest, nil
}

func main() {
	// Увеличиваем лимиты системы (для macOS/Linux)
	system.InitResourceLimits()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Ошибка: %v\n", err)
		stop()
		os.Exit(1)
	}
}
