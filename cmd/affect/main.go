// Affect - real-time facial emotion recognition with a web dashboard
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/go-affect/internal/config"
	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/app"
	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/pipeline"
)

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	logger := log.Component("affect")

	a, err := app.New(cfg, pipeline.Options{}, log.L())
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := a.Init(); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (config.Config, error) {
	configPath := flag.String("config", "", "YAML config file (overrides "+config.EnvConfig+")")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	port := flag.String("port", "", "Dashboard port")
	cameraIndex := flag.Int("camera", -1, "Camera device index")
	cameraBackend := flag.String("camera-backend", "", "Camera backend: auto, opencv, mock")
	detector := flag.String("detector", "", "Face detector: cascade, yunet, mock")
	cls := flag.String("classifier", "", "Emotion classifier: onnx, mock")
	skip := flag.Int("skip", -1, "Frames skipped between detections")
	noStart := flag.Bool("no-start", false, "Wait for the dashboard to start a session")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return cfg, err
	}

	if *debug {
		cfg.LogLevel = "debug"
	}
	if *port != "" {
		cfg.Web.Port = *port
	}
	if *cameraIndex >= 0 {
		cfg.Pipeline.Camera.DeviceIndex = *cameraIndex
	}
	if *cameraBackend != "" {
		cfg.Pipeline.Camera.Backend = camera.Backend(*cameraBackend)
	}
	if *detector != "" {
		cfg.Pipeline.Detector.Backend = detection.Backend(*detector)
	}
	if *cls != "" {
		cfg.Pipeline.Classifier.Backend = classifier.Backend(*cls)
	}
	if *skip >= 0 {
		cfg.Pipeline.SkipFrames = *skip
	}
	if *noStart {
		cfg.AutoStart = false
	}
	return cfg, cfg.Validate()
}
