package stages

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/engine/renderer/driver"
)

/**
 * @brief ShaderLibrary loads precompiled SPIR-V modules named
 * <dir>/<name>.<vert|frag>.spv and caches them per device. With Stub set a
 * missing file yields an empty module, which is enough for the headless
 * driver.
 */
type ShaderLibrary struct {
	Device driver.Device
	Dir    string
	Stub   bool

	mu      sync.Mutex
	modules map[string]driver.ShaderModule
}

func NewShaderLibrary(device driver.Device, dir string, stub bool) *ShaderLibrary {
	return &ShaderLibrary{
		Device:  device,
		Dir:     dir,
		Stub:    stub,
		modules: make(map[string]driver.ShaderModule),
	}
}

func stageSuffix(stage driver.ShaderStage) string {
	if stage == driver.SHADER_STAGE_FRAGMENT {
		return "frag"
	}
	return "vert"
}

func (l *ShaderLibrary) Shader(name string, stage driver.ShaderStage) (driver.ShaderModule, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fileName := filepath.Join(l.Dir, fmt.Sprintf("%s.%s.spv", name, stageSuffix(stage)))
	if m, ok := l.modules[fileName]; ok {
		return m, nil
	}
	code, err := os.ReadFile(fileName)
	if err != nil {
		if !l.Stub {
			err := fmt.Errorf("unable to read shader module %s: %w", fileName, err)
			core.LogError("%s", err)
			return nil, err
		}
		code = nil
	}
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("shader module %s: SPIR-V size %d is not a multiple of 4", fileName, len(code))
	}
	m, err := l.Device.NewShaderModule(stage, code)
	if err != nil {
		return nil, fmt.Errorf("shader module %s: %w", fileName, err)
	}
	l.modules[fileName] = m
	return m, nil
}

// Destroy releases every cached module. Pipelines built from them keep
// working; modules are only needed at pipeline creation.
func (l *ShaderLibrary) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, m := range l.modules {
		m.Destroy()
		delete(l.modules, name)
	}
}
