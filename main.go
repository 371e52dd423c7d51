/*
prism builds a render pipeline from a TOML description, draws a demo
scene through it and logs what every frame recorded.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/prism/engine"
	"github.com/spaghettifunk/prism/engine/core"
	"github.com/spaghettifunk/prism/testbed"
)

func main() {
	app := &engine.ApplicationConfig{Name: "prism"}
	flag.StringVar(&app.ConfigPath, "config", "configs/pipeline.toml", "pipeline configuration file")
	flag.IntVar(&app.Frames, "frames", 6, "frames to draw after every build, 0 draws until interrupted")
	flag.BoolVar(&app.Watch, "watch", false, "rebuild the pipeline when the configuration changes")
	flag.BoolVar(&app.Dump, "dump", false, "log the full command stream of every frame")
	flag.StringVar(&app.Backend, "backend", "headless", "headless or vulkan")
	flag.BoolVar(&app.Validation, "validation", false, "enable vulkan validation layers")
	flag.StringVar(&app.LogLevel, "log-level", "", "override the configured log level")
	flag.Parse()

	tb := testbed.NewTestGame(app)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("%s", err)
	}

	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("%s", err)
	}
	if runErr != nil {
		core.LogError("%s", runErr)
		os.Exit(1)
	}
}
