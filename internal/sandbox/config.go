package sandbox

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Mode represents the sandbox execution mode.
type Mode string

const (
	// ModeDocker uses Docker containers for isolation.
	ModeDocker Mode = "docker"
	// ModeHost runs python directly on the host (no isolation).
	ModeHost Mode = "host"
	// ModeAuto selects Docker if available, otherwise falls back to host.
	ModeAuto Mode = "auto"
)

const defaultPythonImage = "python:alpine"

// Config holds configuration for sandbox execution.
type Config struct {
	Mode        Mode
	DockerImage string        // Custom Docker image override
	CPU         string        // CPU limit (e.g., "2")
	Memory      string        // Memory limit (e.g., "512m")
	CmdTimeout  time.Duration // Default script timeout (0 = use default)
}

// DefaultConfig returns the default configuration based on environment
// variables.
func DefaultConfig() Config {
	modeStr := strings.ToLower(os.Getenv("KAI_SANDBOX_MODE"))
	if modeStr == "" {
		modeStr = "auto"
	}

	var mode Mode
	switch modeStr {
	case "docker":
		mode = ModeDocker
	case "host":
		mode = ModeHost
	case "auto":
		mode = ModeAuto
	default:
		log.Printf("WARNING: Unknown KAI_SANDBOX_MODE value '%s', defaulting to 'auto'", modeStr)
		mode = ModeAuto
	}

	cmdTimeout := 30 * time.Second
	if timeoutStr := os.Getenv("KAI_CODE_EXEC_TIMEOUT"); timeoutStr != "" {
		if d, err := time.ParseDuration(timeoutStr); err == nil && d > 0 {
			cmdTimeout = d
		} else {
			log.Printf("WARNING: Invalid KAI_CODE_EXEC_TIMEOUT value '%s', using default 30s", timeoutStr)
		}
	}

	return Config{
		Mode:        mode,
		DockerImage: getEnvOrDefault("KAI_DOCKER_IMAGE", defaultPythonImage),
		CPU:         getEnvOrDefault("KAI_DOCKER_CPU", "1"),
		Memory:      getEnvOrDefault("KAI_DOCKER_MEMORY", "512m"),
		CmdTimeout:  cmdTimeout,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

// IsDockerAvailable checks if Docker is available and accessible.
func IsDockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "ps")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// NewDefaultRunner creates a runner based on the configuration and
// Docker availability. It respects KAI_SANDBOX_MODE:
// - "docker": Use Docker (falls back to host if unavailable)
// - "host": Use host python (no isolation)
// - "auto": Use Docker if available, fallback to host
func NewDefaultRunner() Runner {
	config := DefaultConfig()
	ctx := context.Background()

	switch config.Mode {
	case ModeDocker, ModeAuto:
		if !IsDockerAvailable(ctx) {
			log.Printf("WARNING: Docker not available. Using host python (no sandboxing).")
			return &HostRunner{config: config}
		}
		dockerRunner, err := NewDockerRunner(config)
		if err != nil {
			log.Printf("WARNING: Failed to create Docker runner: %v. Falling back to host python.", err)
			return &HostRunner{config: config}
		}
		return dockerRunner

	case ModeHost:
		log.Printf("WARNING: Using host python (no sandboxing). This is insecure and should only be used for development.")
		return &HostRunner{config: config}

	default:
		log.Printf("WARNING: Unknown sandbox mode, defaulting to host python.")
		return &HostRunner{config: config}
	}
}

// NewRunner creates a specific runner implementation.
func NewRunner(mode Mode, config Config) (Runner, error) {
	switch mode {
	case ModeDocker:
		return NewDockerRunner(config)
	case ModeHost:
		return &HostRunner{config: config}, nil
	default:
		return nil, fmt.Errorf("unknown runner mode: %s", mode)
	}
}
