package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "configs/default.yaml"

// Queue backends
const (
	BackendDisque = "disque"
	BackendRedis  = "redis"
)

// Status publish modes
const (
	ModePut     = "put"
	ModeControl = "control"
)

// legacyEnv maps config keys to the environment names the CI scripts set.
var legacyEnv = map[string]string{
	"queue.addr":              "DWQ_DISQUE_URL",
	"output.http_root":        "CI_BUILD_HTTP_ROOT",
	"output.save_job_results": "SAVE_JOB_RESULTS",
	"output.render_workers":   "MAX_WORKERS",
	"status.control_url":      "MURDOCK_CTRL_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("queue.backend", BackendDisque)
	v.SetDefault("queue.addr", "localhost:7711")
	v.SetDefault("queue.password", "")
	v.SetDefault("queue.batch_size", 16)
	v.SetDefault("queue.poll_timeout", time.Second)

	v.SetDefault("status.mode", ModePut)
	v.SetDefault("status.url", "http://localhost:8000/jobs/running/{uid}/status")
	v.SetDefault("status.control_url", "http://localhost:3000/control")
	v.SetDefault("status.dump_file", "prstatus.json")
	v.SetDefault("status.timeout", 10*time.Second)
	v.SetDefault("status.min_interval", 500*time.Millisecond)
	v.SetDefault("status.failure_cap", 20)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.http_root", "")
	v.SetDefault("output.save_job_results", false)
	v.SetDefault("output.render_workers", 8)
	v.SetDefault("output.journal", "")

	v.SetDefault("classifier.entrypoint", "./.murdock")
	v.SetDefault("classifier.test_types", []string{"run_test"})
	v.SetDefault("classifier.build_types", []string{"compile"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.token", "")

	v.SetDefault("upload.endpoint", "")
	v.SetDefault("upload.access_key", "")
	v.SetDefault("upload.secret_key", "")
	v.SetDefault("upload.bucket", "murdock")
	v.SetDefault("upload.region", "")
	v.SetDefault("upload.prefix", "")
	v.SetDefault("upload.secure", true)
	v.SetDefault("upload.concurrency", 4)

	v.SetDefault("postbuild.enabled", false)

	v.SetDefault("nightly.keep", 7)
}
