package config

const (
	defaultConfigPath     = "~/.config/subalign/config.toml"
	projectConfigName     = "subalign.toml"
	defaultDataDir        = "~/.local/share/subalign"
	defaultUploadDir      = "uploads"
	defaultOutputDir      = "outputs"
	defaultBind           = "127.0.0.1:5000"
	defaultBrowserDelayMS = 1000
	defaultMaxUploadMB    = 512
	defaultDevice         = "cpu"
	defaultModel          = "base"
	defaultLanguage       = "zh"
	defaultWorkerCount    = 2
	defaultQueueSize      = 32
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultNtfyTimeout    = 10
	envBind               = "SUBALIGN_BIND"
	envAPIToken           = "SUBALIGN_API_TOKEN"
	envDevice             = "SUBALIGN_DEVICE"
	envNtfyTopic          = "SUBALIGN_NTFY_TOPIC"
	deviceCPU             = "cpu"
	deviceCUDA            = "cuda"
)

// DefaultLauncher runs the helper through uv so stable-ts is resolved on demand.
func DefaultLauncher() []string {
	return []string{"uv", "run", "--quiet", "--with", "stable-ts", "python"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			UploadDir: defaultUploadDir,
			OutputDir: defaultOutputDir,
			DataDir:   defaultDataDir,
		},
		Server: Server{
			Bind:           defaultBind,
			OpenBrowser:    true,
			BrowserDelayMS: defaultBrowserDelayMS,
			MaxUploadMB:    defaultMaxUploadMB,
		},
		Aligner: Aligner{
			Launcher:        DefaultLauncher(),
			Device:          defaultDevice,
			DefaultModel:    defaultModel,
			DefaultLanguage: defaultLanguage,
		},
		Workers: Workers{
			Count:     defaultWorkerCount,
			QueueSize: defaultQueueSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metrics: Metrics{
			Enabled: true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
			NotifyOnSuccess:       true,
		},
	}
}
