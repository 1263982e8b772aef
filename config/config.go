// Package config holds executor launch configuration: which binary and
// container runtime to probe, which images to run per backend, and the
// tunables of the readiness poll.
//
// Values load from an optional YAML file and are merged over built-in
// defaults, with file values taking precedence.
package config

import (
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable pointing at an optional
// executor configuration file.
const EnvConfigPath = "REASON_CONFIG"

// Images are the per-backend container images of the inference server.
type Images struct {
	CPU  string `yaml:"cpu,omitempty"`
	CUDA string `yaml:"cuda,omitempty"`
	ROCm string `yaml:"rocm,omitempty"`
}

// Executor configures how a local inference server is found and launched.
type Executor struct {
	// Binary is the inference-server executable probed on the search path.
	Binary string `yaml:"binary,omitempty"`

	// Runtime is the container runtime CLI probed when the binary is absent.
	Runtime string `yaml:"runtime,omitempty"`

	// Port is the fixed local port the server is exposed on.
	Port int `yaml:"port,omitempty"`

	// GPULayers is the accelerator offload layer count for binary launches.
	GPULayers int `yaml:"gpu_layers,omitempty"`

	// ContainerGPULayers is the offload layer count for container launches.
	ContainerGPULayers int `yaml:"container_gpu_layers,omitempty"`

	// Images selects the container image per backend.
	Images Images `yaml:"images,omitempty"`

	// HealthIntervalSeconds is the readiness poll interval.
	HealthIntervalSeconds int `yaml:"health_interval_seconds,omitempty"`
}

// HealthInterval returns the readiness poll interval as a duration.
func (e Executor) HealthInterval() time.Duration {
	return time.Duration(e.HealthIntervalSeconds) * time.Second
}

// Default returns the built-in executor configuration: the llama.cpp server
// binary, docker as the container runtime, and the pinned llama.cpp server
// images.
func Default() Executor {
	return Executor{
		Binary:             "llama-server",
		Runtime:            "docker",
		Port:               8080,
		GPULayers:          80,
		ContainerGPULayers: 40,
		Images: Images{
			CPU:  "ghcr.io/ggerganov/llama.cpp:server-b4600",
			CUDA: "ghcr.io/ggerganov/llama.cpp:server-cuda-b4600",
			ROCm: "ghcr.io/hecrj/icebreaker:server-rocm-b4600",
		},
		HealthIntervalSeconds: 1,
	}
}

// Load reads an executor configuration file and merges it over the defaults,
// with file values taking precedence.
func Load(path string) (Executor, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: user-specified config path is intentional
	if err != nil {
		return Executor{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var loaded Executor
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Executor{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	merged := Default()
	if err := mergo.Merge(&merged, loaded, mergo.WithOverride); err != nil {
		return Executor{}, fmt.Errorf("failed to merge config: %w", err)
	}

	return merged, nil
}

// FromEnv loads the configuration file named by REASON_CONFIG, or the
// defaults when the variable is unset.
func FromEnv() (Executor, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}
