package risa

import (
	"os"

	"github.com/naoina/toml"
)

// Config holds the VM's tunables. Fields mirror the constructor
// arguments the teacher's NewVirtualMachine exposed as flags, collected
// here so they can also be loaded from a risa.toml (§6's CLI surface).
// The CLI reads risa.toml from the current directory, or the file named
// by --config; it does not look beside the script.
type Config struct {
	StackSize     int  `toml:"stack_size"`
	FrameLimit    int  `toml:"frame_limit"`
	HeapThreshold int  `toml:"heap_threshold"`
	TraceExec     bool `toml:"trace_exec"`
}

func DefaultConfig() *Config {
	return &Config{
		StackSize:     DefaultStackSize,
		FrameLimit:    DefaultFrameLimit,
		HeapThreshold: DefaultHeapThreshold,
	}
}

// LoadConfig reads a risa.toml at path, overlaying it onto
// DefaultConfig(). A missing file is not an error; the defaults are
// returned unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
