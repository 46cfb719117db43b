package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/engine"
)

var statesEvery int

var statesCmd = &cobra.Command{
	Use:   "states",
	Short: "Dump the visual state of every section along a scroll trace",
	RunE: func(cmd *cobra.Command, args []string) error {
		articlePath, err := resolveArticle()
		if err != nil {
			return err
		}
		article, err := director.LoadArticle(articlePath)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		out, err := dumpStates(cmd, article, articlePath, statesEvery)
		if err != nil {
			return err
		}
		fmt.Printf("[+++] Состояния сохранены: %s\n", out)
		return nil
	},
}

func init() {
	f := statesCmd.Flags()
	f.StringVarP(&cfg.StatesOutput, "output", "o", "", "YAML для состояний (по умолчанию: internal/states/states_<время>.yaml)")
	f.StringVar(&cfg.TracePath, "trace", "", "CSV со сценарием прокрутки")
	f.Float64Var(&cfg.StartScroll, "start", 0, "Начальная позиция прокрутки (px)")
	f.Float64Var(&cfg.EndScroll, "end", 0, "Конечная позиция прокрутки (0 = конец статьи)")
	f.Float64Var(&cfg.ScrollSpeed, "speed", cfg.ScrollSpeed, "Скорость прокрутки (px/сек)")
	f.IntVar(&cfg.FPS, "fps", cfg.FPS, "Кадров в секунду")
	f.IntVar(&cfg.EventsPerFrame, "events", cfg.EventsPerFrame, "Событий прокрутки на кадр")
	f.IntVar(&statesEvery, "every", 1, "Сохранять каждый N-й кадр")
}

func dumpStates(cmd *cobra.Command, article *director.Article, articlePath string, every int) (string, error) {
	project := engine.NewProject(cfg, article, filepath.Dir(articlePath), nil, nil, logger)
	trace, err := project.Trace()
	if err != nil {
		return "", err
	}

	dump, err := engine.DumpStates(cmd.Context(), article, project.BaseDir, trace, every, logger)
	if err != nil {
		return "", err
	}

	out := cfg.StatesOutput
	if out == "" {
		out = director.GenerateStatesPath()
	}
	if err := director.EnsureDir(out); err != nil {
		return "", err
	}
	if err := director.WriteStates(dump, out); err != nil {
		return "", err
	}
	logger.Info("States written", zap.String("path", out), zap.Int("frames", len(dump.Frames)))
	return out, nil
}
