// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Media Server Connection - these keys locate the server and identify this client to it.
const (
	ServerURL        = "server.url"
	ServerUserID     = "server.user_id"
	ServerDeviceName = "server.device_name"
	ServerTimeout    = "server.timeout"
)

// Network Transport - these keys tune the shared HTTP client.
const (
	NetworkTLSFingerprint = "network.tls_fingerprint"
)

// Playback Negotiation - these keys are the read-only preferences consumed by stream negotiation.
const (
	PlaybackDirectPlay           = "playback.direct_play"
	PlaybackAllowAudioStreamCopy = "playback.allow_audio_stream_copy"
	PlaybackMaxBitrate           = "playback.max_bitrate"
	PlaybackProgressInterval     = "playback.progress_interval"
	PlaybackPollInterval         = "playback.poll_interval"
)

// Media Player - these keys select and locate the external playback engine.
const (
	Player       = "player.default"
	PlayerBinary = "player.binary"
)

// History Tracking - these keys configure the persistence of playback positions.
const (
	HistorySave = "history.save"
)

// Iconography - these keys manage the visual rendering of CLI symbols.
const (
	IconsVariant = "icons.variant"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these settings govern non-playback application behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
