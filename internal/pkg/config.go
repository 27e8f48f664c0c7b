// Package pkg 实现 CellScript 的工程配置加载
package pkg

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/tangzhangming/cellscript/internal/parser"
)

// 常量定义
const (
	ConfigFileName = "cellscript.toml" // 配置文件名
)

// Config 工程配置
type Config struct {
	Language  LanguageConfig  `toml:"language"`
	Highlight HighlightConfig `toml:"highlight"`
}

// LanguageConfig 语言层配置
type LanguageConfig struct {
	// MaxExprDepth 表达式最大嵌套深度（防止恶意输入造成栈溢出）
	MaxExprDepth int `toml:"max_expr_depth"`
}

// HighlightConfig 高亮配置
type HighlightConfig struct {
	// Enable 是否启用语义高亮
	Enable bool `toml:"enable"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Language: LanguageConfig{
			MaxExprDepth: parser.DefaultMaxDepth,
		},
		Highlight: HighlightConfig{
			Enable: true,
		},
	}
}

// LoadConfig 从文件加载配置，缺省字段用默认值补齐
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ParserOptions 把配置转换为语法分析器选项
func (c *Config) ParserOptions() []parser.Option {
	var opts []parser.Option
	if c.Language.MaxExprDepth > 0 {
		opts = append(opts, parser.WithMaxDepth(c.Language.MaxExprDepth))
	}
	return opts
}
