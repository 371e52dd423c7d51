package engine

type ApplicationConfig struct {
	// The application name reported to the device, if applicable.
	Name string
	// ConfigPath is the pipeline TOML file. Empty means config.Default().
	ConfigPath string
	// Frames to draw after every (re)build. Zero draws until stopped.
	Frames int
	// Watch rebuilds the pipeline whenever ConfigPath changes.
	Watch bool
	// Dump logs the full command stream of every headless frame.
	Dump bool
	// Backend is "headless" or "vulkan".
	Backend string
	// Validation enables the vulkan validation layers.
	Validation bool
	// LogLevel overrides the level from the pipeline configuration.
	LogLevel string
}
