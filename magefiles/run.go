//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Draws a few frames of the demo scene through configs/pipeline.toml on the
// headless backend and logs each frame's command stream.
func (Run) Inspect() error {
	fmt.Println("Inspect pipeline...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "configs/pipeline.toml", "-frames", "3", "-dump", "-log-level", "debug"), withStream())
	return err
}

// Runs the demo on the vulkan backend until interrupted.
func (Run) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("run", ".", "-config", "configs/pipeline.toml", "-backend", "vulkan", "-frames", "0", "-watch"), withStream())
	return err
}

type Test mg.Namespace

// Runs every package's unit tests.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
