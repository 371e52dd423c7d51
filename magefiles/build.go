//go:build mage

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

const shaderDir = "shaders"

type Build mg.Namespace

// Compiles every shaders/*.vert and shaders/*.frag into <name>.<stage>.spv,
// the layout the shader library loads from.
func (Build) Shaders() error {
	var sources []string
	for _, ext := range []string{"vert", "frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, "*."+ext))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shader sources in %s", shaderDir)
	}
	for _, src := range sources {
		if _, err := executeCmd("glslc", withArgs(src, "-o", spirvPath(src))); err != nil {
			return err
		}
	}
	return nil
}

// shaders/lighting.frag -> shaders/lighting.frag.spv
func spirvPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + filepath.Ext(src) + ".spv"
}

// Builds the prism binary.
func (Build) Binary() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/prism", "."), withStream())
	return err
}
