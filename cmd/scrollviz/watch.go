package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/engine"
	"github.com/ivlev/scrollviz/internal/visual"
)

var (
	watchLive  bool
	watchEvery int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-check an article every time it is saved",
	Long: `Watches the article file and, on every save, reloads it and either dumps
the states along the configured trace or, with --live, replays the trace in
real time and prints the phase of every section as it changes.`,
	RunE: runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.BoolVar(&watchLive, "live", false, "Проигрывать прокрутку в реальном времени")
	f.StringVar(&cfg.TracePath, "trace", "", "CSV со сценарием прокрутки")
	f.Float64Var(&cfg.ScrollSpeed, "speed", cfg.ScrollSpeed, "Скорость прокрутки (px/сек)")
	f.IntVar(&cfg.FPS, "fps", cfg.FPS, "Кадров в секунду")
	f.IntVar(&cfg.EventsPerFrame, "events", cfg.EventsPerFrame, "Событий прокрутки на кадр")
	f.IntVar(&watchEvery, "every", 10, "Сохранять каждый N-й кадр")
}

func runWatch(cmd *cobra.Command, args []string) error {
	articlePath, err := resolveArticle()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	onReload := func(article *director.Article, err error) {
		if err != nil {
			fmt.Printf("[-] Ошибка статьи: %v\n", err)
			return
		}
		fmt.Printf("[*] Статья перезагружена: %s\n", article.Title)
		if watchLive {
			playLive(cmd, article, articlePath)
			return
		}
		if out, err := dumpStates(cmd, article, articlePath, watchEvery); err != nil {
			fmt.Printf("[-] Ошибка: %v\n", err)
		} else {
			fmt.Printf("[+] Состояния: %s\n", out)
		}
	}

	w, err := director.NewWatcher(articlePath, onReload, logger)
	if err != nil {
		return err
	}
	onReload(director.LoadArticle(articlePath))

	fmt.Printf("[*] Слежу за %s (Ctrl+C для выхода)\n", articlePath)
	if err := w.Run(cmd.Context()); err != nil && cmd.Context().Err() == nil {
		return err
	}
	return nil
}

func playLive(cmd *cobra.Command, article *director.Article, articlePath string) {
	project := engine.NewProject(cfg, article, filepath.Dir(articlePath), nil, nil, logger)
	trace, err := project.Trace()
	if err != nil {
		fmt.Printf("[-] Ошибка: %v\n", err)
		return
	}

	phases := make(map[string]string)
	stats, err := engine.Play(cmd.Context(), article, project.BaseDir, trace, cfg.FPS, logger, func(states []visual.State) {
		for _, s := range states {
			if phases[s.Section] != s.Phase {
				phases[s.Section] = s.Phase
				fmt.Printf("[>] %s: %s (%.0f%%)\n", s.Section, s.Phase, s.Progress*100)
			}
		}
	})
	if err != nil {
		if cmd.Context().Err() == nil {
			fmt.Printf("[-] Ошибка: %v\n", err)
		}
		return
	}
	logger.Info("Live replay finished",
		zap.Int("frames", stats.Frames),
		zap.Uint64("samples", stats.Samples),
		zap.Uint64("computed", stats.Computed),
		zap.Uint64("dropped", stats.Dropped))
}
