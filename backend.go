package reason

import "strings"

// Backend is the compute accelerator profile used to launch an executor.
type Backend string

const (
	BackendCPU  Backend = "cpu"
	BackendCUDA Backend = "cuda"
	BackendROCm Backend = "rocm"
)

// Detect maps a graphics adapter description to a Backend. NVIDIA adapters
// select CUDA, AMD adapters select ROCm, everything else falls back to CPU.
func Detect(graphicsAdapter string) Backend {
	switch {
	case strings.Contains(graphicsAdapter, "NVIDIA"):
		return BackendCUDA
	case strings.Contains(graphicsAdapter, "AMD"):
		return BackendROCm
	default:
		return BackendCPU
	}
}

// UsesGPU reports whether the backend launches with accelerator offloading.
func (b Backend) UsesGPU() bool {
	return b == BackendCUDA || b == BackendROCm
}
