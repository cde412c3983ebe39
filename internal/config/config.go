package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Camera struct {
		Width     int    `yaml:"width"`
		Height    int    `yaml:"height"`
		FrameRate int    `yaml:"frameRate"`
		Facing    string `yaml:"facing"`
	} `yaml:"camera"`

	LLM struct {
		APIKey      string  `yaml:"apiKey"`
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"maxTokens"`
		Temperature float32 `yaml:"temperature"`
		TimeoutMS   int     `yaml:"timeoutMs"`
		Debug       bool    `yaml:"debug"`
	} `yaml:"llm"`

	Pipeline struct {
		TargetFPS     float64 `yaml:"targetFps"`
		MaxRegions    int     `yaml:"maxRegions"`
		MinConfidence float64 `yaml:"minConfidence"`
		MinTextLen    int     `yaml:"minTextLen"`
		HistoryCap    int     `yaml:"historyCap"`
		AttachFrames  bool    `yaml:"attachFrames"`
	} `yaml:"pipeline"`

	Retry struct {
		MaxRetries  int `yaml:"maxRetries"`
		TickMS      int `yaml:"tickMs"`
		BaseDelayMS int `yaml:"baseDelayMs"`
		MaxDelayMS  int `yaml:"maxDelayMs"`
	} `yaml:"retry"`

	Database struct {
		Enabled  bool   `yaml:"enabled"`
		Driver   string `yaml:"driver"` // mysql | postgres
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`
}

// Default returns a config populated with standard defaults.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = 8090
	cfg.Camera.Width = 1280
	cfg.Camera.Height = 720
	cfg.Camera.FrameRate = 30
	cfg.Camera.Facing = "environment"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.MaxTokens = 1024
	cfg.LLM.Temperature = 0.3
	cfg.LLM.TimeoutMS = 30000
	cfg.Pipeline.TargetFPS = 30
	cfg.Pipeline.MaxRegions = 3
	cfg.Pipeline.MinConfidence = 0.7
	cfg.Pipeline.MinTextLen = 10
	cfg.Pipeline.HistoryCap = 10
	cfg.Retry.MaxRetries = 3
	cfg.Retry.TickMS = 5000
	cfg.Retry.BaseDelayMS = 1000
	cfg.Retry.MaxDelayMS = 30000
	return &cfg
}

// Load reads the YAML config at path on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns human-readable problems with the configuration. Problems
// are reported, not fatal: callers log them and continue on defaults.
func (c *Config) Validate() []string {
	var problems []string
	if c.LLM.APIKey == "" && !c.LLM.Debug {
		problems = append(problems, "llm.apiKey is required unless llm.debug is set")
	}
	if c.LLM.Model == "" {
		problems = append(problems, "llm.model must not be empty")
	}
	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4000 {
		problems = append(problems, fmt.Sprintf("llm.maxTokens must be in [1, 4000], got %d", c.LLM.MaxTokens))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("llm.temperature must be in [0, 2], got %g", c.LLM.Temperature))
	}
	if c.LLM.TimeoutMS <= 0 {
		problems = append(problems, fmt.Sprintf("llm.timeoutMs must be > 0, got %d", c.LLM.TimeoutMS))
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		problems = append(problems, fmt.Sprintf("pipeline.minConfidence must be in [0, 1], got %g", c.Pipeline.MinConfidence))
	}
	if c.Camera.FrameRate <= 0 {
		problems = append(problems, fmt.Sprintf("camera.frameRate must be > 0, got %d", c.Camera.FrameRate))
	}
	if c.Database.Enabled && c.Database.Driver != "mysql" && c.Database.Driver != "postgres" {
		problems = append(problems, fmt.Sprintf("database.driver must be mysql or postgres, got %q", c.Database.Driver))
	}
	return problems
}

// MySQLDSN builds the MySQL connection string.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds the Postgres connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
	)
}
