package config

const (
	defaultConfigPath             = "~/.config/audiopipe/config.toml"
	defaultOutputDir              = "~/.local/share/audiopipe/outputs"
	defaultLogDir                 = "~/.local/share/audiopipe/logs"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 60
	defaultSeparationBackend      = "demucs"
	defaultSeparationModel        = "htdemucs_ft"
	defaultSeparationDevice       = "cpu"
	defaultSeparationBinary       = "demucs"
	defaultDecompositionCommand   = "audiopipe-hpss"
	defaultTargetDB               = -20.0
	defaultMaxFileSizeMB          = 500
	defaultJobRetentionDays       = 30
	defaultPersistFailedManifests = true
)

// Stage names understood by the pipeline assembly. The order of
// DefaultStageOrder matches the order stages run in by default.
const (
	StageSeparation          = "audio_separation"
	StageSeparatedTracksHPSS = "separated_track_harmonic_percussive"
	StageHarmonicPercussive  = "harmonic_percussive_separation"
	StageComposite           = "composite_track_creation"
	StageNormalization       = "normalization"
)

// DefaultStageOrder returns the default stage sequence.
func DefaultStageOrder() []string {
	return []string{
		StageSeparation,
		StageSeparatedTracksHPSS,
		StageHarmonicPercussive,
		StageComposite,
		StageNormalization,
	}
}

// DefaultSupportedFormats returns the audio extensions accepted by default.
func DefaultSupportedFormats() []string {
	return []string{"wav", "mp3", "flac", "ogg"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
		},
		Pipeline: Pipeline{
			Stages:                 DefaultStageOrder(),
			PersistFailedManifests: defaultPersistFailedManifests,
		},
		Separation: Separation{
			Backend: defaultSeparationBackend,
			Model:   defaultSeparationModel,
			Device:  defaultSeparationDevice,
			Binary:  defaultSeparationBinary,
		},
		Decomposition: Decomposition{
			Command: defaultDecompositionCommand,
		},
		Normalization: Normalization{
			TargetDB:      defaultTargetDB,
			FFmpegBinary:  "ffmpeg",
			FFprobeBinary: "ffprobe",
		},
		Limits: Limits{
			MaxFileSizeMB:    defaultMaxFileSizeMB,
			SupportedFormats: DefaultSupportedFormats(),
		},
		Retention: Retention{
			JobRetentionDays: defaultJobRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
