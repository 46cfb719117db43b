package director

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteArticle writes an article to a YAML file
func WriteArticle(article *Article, path string) error {
	data, err := yaml.Marshal(article)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadArticle reads an article from a YAML file
func ReadArticle(path string) (*Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var article Article
	if err := yaml.Unmarshal(data, &article); err != nil {
		return nil, fmt.Errorf("failed to parse article %s: %w", path, err)
	}

	return &article, nil
}

// LoadArticle reads, lays out and validates an article
func LoadArticle(path string) (*Article, error) {
	article, err := ReadArticle(path)
	if err != nil {
		return nil, err
	}
	if err := NewDirector(article.Viewport.Height).Layout(article); err != nil {
		return nil, err
	}
	if err := article.Validate(); err != nil {
		return nil, err
	}
	return article, nil
}

// WriteStates dumps any YAML-serialisable value, used for state sweeps
func WriteStates(v interface{}, path string) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
