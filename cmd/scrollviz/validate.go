package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ivlev/scrollviz/internal/director"
	"github.com/ivlev/scrollviz/internal/engine"
	"github.com/ivlev/scrollviz/internal/scroll"
)

var layoutOut string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load an article, compile its sections and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		articlePath, err := resolveArticle()
		if err != nil {
			return err
		}
		return validateArticle(cmd, articlePath)
	},
}

func init() {
	validateCmd.Flags().StringVar(&layoutOut, "layout-out", "", "Записать статью с вычисленной раскладкой (top, фазы) в YAML")
}

func validateArticle(cmd *cobra.Command, articlePath string) error {
	article, err := director.LoadArticle(articlePath)
	if err != nil {
		return err
	}

	rt, err := engine.NewArticle(article, filepath.Dir(articlePath), scroll.NewManualScheduler(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	if err := rt.MountAll(cmd.Context()); err != nil {
		return err
	}

	fmt.Printf("[*] Статья: %s | Вьюпорт: %dx%d | Высота прокрутки: %.0fpx\n",
		article.Title, article.Viewport.Width, article.Viewport.Height, rt.Extent())
	for _, s := range article.Sections {
		c, ok := rt.Context(s.ID)
		if !ok {
			continue
		}
		sec := c.Section
		fmt.Printf("  - %s: top=%.0f height=%.0f фаз=%d элементов=%d\n",
			sec.ID, sec.Region.Top, sec.Region.Height, sec.Phases.Len(), len(sec.Order))
		for _, p := range sec.Phases.Phases() {
			fmt.Printf("      %s [%.2f, %.2f)\n", p.ID, p.Start, p.End)
		}
		for _, m := range sec.Missing {
			fmt.Printf("    [!] %v\n", m)
		}
	}
	if layoutOut != "" {
		if err := director.WriteArticle(article, layoutOut); err != nil {
			return err
		}
		fmt.Printf("[*] Раскладка сохранена: %s\n", layoutOut)
	}
	fmt.Printf("[+++] Статья корректна\n")
	return nil
}
