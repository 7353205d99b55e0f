// Package config loads the reporter configuration.
//
// Sources, highest precedence first:
//  1. Environment variables (MURDOCK_* prefix, plus the legacy names the CI
//     scripts export: DWQ_DISQUE_URL, CI_BUILD_HTTP_ROOT, SAVE_JOB_RESULTS,
//     MAX_WORKERS, MURDOCK_CTRL_URL)
//  2. The YAML config file (configs/default.yaml unless --config is given)
//  3. Built-in defaults
package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Queue      QueueConfig      `yaml:"queue"`
	Status     StatusConfig     `yaml:"status"`
	Output     OutputConfig     `yaml:"output"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Server     ServerConfig     `yaml:"server"`
	Upload     UploadConfig     `yaml:"upload"`
	PostBuild  PostBuildConfig  `yaml:"postbuild"`
	Nightly    NightlyConfig    `yaml:"nightly"`
}

// QueueConfig selects and tunes the queue wait primitive.
type QueueConfig struct {
	// Backend is "disque" (GETJOB/ACKJOB) or "redis" (BLPOP/LPOP).
	Backend     string        `yaml:"backend"`
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	BatchSize   int           `yaml:"batch_size"`
	PollTimeout time.Duration `yaml:"poll_timeout"`
}

// StatusConfig controls where live status documents go.
type StatusConfig struct {
	// Mode is "put" (PUT to URL with the run token) or "control"
	// (POST prstatus commands to ControlURL).
	Mode        string        `yaml:"mode"`
	URL         string        `yaml:"url"`
	ControlURL  string        `yaml:"control_url"`
	DumpFile    string        `yaml:"dump_file"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
	FailureCap  int           `yaml:"failure_cap"`
}

// OutputConfig controls report and job output files.
type OutputConfig struct {
	Dir            string `yaml:"dir"`
	HTTPRoot       string `yaml:"http_root"`
	SaveJobResults bool   `yaml:"save_job_results"`
	RenderWorkers  int    `yaml:"render_workers"`
	Journal        string `yaml:"journal"`
}

// ClassifierConfig maps command type tokens to job types.
type ClassifierConfig struct {
	Entrypoint string   `yaml:"entrypoint"`
	TestTypes  []string `yaml:"test_types"`
	BuildTypes []string `yaml:"build_types"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// MetricsConfig exposes Prometheus metrics while a live run is in progress.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ServerConfig configures the `serve` command.
type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token"`
}

// UploadConfig configures artifact upload to an S3-compatible store.
type UploadConfig struct {
	Endpoint    string `yaml:"endpoint"`
	AccessKey   string `yaml:"access_key"`
	SecretKey   string `yaml:"secret_key"`
	Bucket      string `yaml:"bucket"`
	Region      string `yaml:"region"`
	Prefix      string `yaml:"prefix"`
	Secure      bool   `yaml:"secure"`
	Concurrency int    `yaml:"concurrency"`
}

// PostBuildConfig toggles sizes/metrics/error collection after a static run.
type PostBuildConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NightlyConfig configures the nightly list.
type NightlyConfig struct {
	Keep int `yaml:"keep"`
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	c.Queue.Password = mask(c.Queue.Password)
	c.Server.Token = mask(c.Server.Token)
	c.Upload.AccessKey = mask(c.Upload.AccessKey)
	c.Upload.SecretKey = mask(c.Upload.SecretKey)
	return c
}
