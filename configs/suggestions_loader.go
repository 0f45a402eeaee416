package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SuggestionsConfig はおすすめアクション表のYAMLの構造を定義
//
//	pages:
//	  - page: /inventory
//	    suggestions: [View low stock alerts, Check product details]
//	default: [View dashboard]
type SuggestionsConfig struct {
	Pages []struct {
		Page        string   `yaml:"page"`
		Suggestions []string `yaml:"suggestions"`
	} `yaml:"pages"`
	Default []string `yaml:"default"`
}

// LoadSuggestions はYAMLファイルからおすすめアクション表を読み込む
func LoadSuggestions(path string) (*SuggestionsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("suggestions file could not be read: %w", err)
	}
	return ParseSuggestions(data)
}

// ParseSuggestions はYAMLを解析し、内容を検証する
func ParseSuggestions(data []byte) (*SuggestionsConfig, error) {
	var cfg SuggestionsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("suggestions YAML is invalid: %w", err)
	}

	for i, p := range cfg.Pages {
		if strings.TrimSpace(p.Page) == "" {
			return nil, fmt.Errorf("suggestions YAML: pages[%d].page is empty", i)
		}
		if len(p.Suggestions) == 0 {
			return nil, fmt.Errorf("suggestions YAML: pages[%d] (%s) has no suggestions", i, p.Page)
		}
	}
	if len(cfg.Default) == 0 {
		return nil, fmt.Errorf("suggestions YAML: default suggestions are required")
	}
	return &cfg, nil
}
