package whisperx

// Config captures runtime settings for WhisperX operations.
type Config struct {
	// Command is the launcher, normally uvx.
	Command string
	// Model is the WhisperX model to use (e.g., "large-v3").
	Model string
	// Device is "cuda" or "cpu".
	Device string
	// ComputeType is the CTranslate2 compute type; empty picks one for Device.
	ComputeType string
	BatchSize   int
	// VADMethod selects the voice activity detection method ("silero" or "pyannote").
	VADMethod string
	// HFToken is the Hugging Face token for pyannote VAD.
	HFToken string
}

// WhisperX configuration constants.
const (
	DefaultModel      = "large-v3"
	DefaultBatchSize  = 16
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "int8"
	CUDAComputeType   = "float16"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
	UVXCommand        = "uvx"
)

// CUDAEnabled reports whether the recognizer runs on the accelerator.
func (c Config) CUDAEnabled() bool {
	return c.Device == CUDADevice
}
