package config

const (
	defaultStateDir            = "~/.local/share/angler"
	defaultCaptureDisplay      = 0
	defaultCaptureRetryDelayMS = 250
	defaultModelPath           = "~/.config/angler/models/bobber.onnx"
	defaultMinConfidence       = 0.2
	defaultNMSThreshold        = 0.45
	defaultInputSize           = 640
	defaultDetectionQueueSize  = 1
	defaultSettleDelayMS       = 700
	defaultReadyPollMS         = 50
	defaultStopTimeoutMS       = 2000
	defaultTrackingPreset      = "default"
	defaultInputButton         = "left"
	defaultDashboardBind       = "127.0.0.1:8181"
	defaultCameraFPS           = 10
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Capture: Capture{
			Display:      defaultCaptureDisplay,
			Crop:         true,
			RetryDelayMS: defaultCaptureRetryDelayMS,
		},
		Detection: Detection{
			ModelPath:     defaultModelPath,
			MinConfidence: defaultMinConfidence,
			NMSThreshold:  defaultNMSThreshold,
			InputSize:     defaultInputSize,
			ClassID:       -1,
			QueueSize:     defaultDetectionQueueSize,
		},
		Bot: Bot{
			SettleDelayMS: defaultSettleDelayMS,
			ReadyPollMS:   defaultReadyPollMS,
			StopTimeoutMS: defaultStopTimeoutMS,
		},
		Tracking: Tracking{
			Preset: defaultTrackingPreset,
		},
		Input: Input{
			Button: defaultInputButton,
		},
		Dashboard: Dashboard{
			Bind:      defaultDashboardBind,
			CameraFPS: defaultCameraFPS,
		},
		Journal: Journal{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
