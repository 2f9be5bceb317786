// Camera test - measure capture rate and check the face and emotion models
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-affect/internal/config"
	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/camera"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	snapshot := flag.String("snapshot", "test_frame.jpg", "Where to save the first frame, empty to skip")
	classify := flag.Bool("classify", true, "Run the emotion classifier on detected faces")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("❌ Config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)
	logger := log.Component("camera-test")

	cam := cfg.Pipeline.Camera
	fmt.Println("📷 Camera Test")
	fmt.Println("==============")
	fmt.Printf("Device: #%d (%s) %dx%d @ %dfps\n", cam.DeviceIndex, cam.Backend, cam.Width, cam.Height, cam.Framerate)
	fmt.Printf("Available backends: %v\n\n", camera.AvailableBackends())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dev, err := camera.NewOpener(logger).Open(ctx, cam)
	if err != nil {
		fmt.Printf("❌ Open failed: %v\n", err)
		os.Exit(1)
	}
	defer dev.Close()

	det, err := detection.New(cfg.Pipeline.Detector, logger)
	if err != nil {
		fmt.Printf("❌ Detector: %v\n", err)
		os.Exit(1)
	}
	defer det.Close()
	fmt.Printf("✅ Detector: %s\n", cfg.Pipeline.Detector.Backend)

	labels, err := cfg.Pipeline.LabelSet()
	if err != nil {
		fmt.Printf("❌ Labels: %v\n", err)
		os.Exit(1)
	}

	var cls classifier.Classifier
	if *classify {
		cls, err = classifier.New(cfg.Pipeline.Classifier, labels, logger)
		if err != nil {
			fmt.Printf("⚠️  Classifier: %v (continuing without)\n", err)
		} else {
			defer cls.Close()
			fmt.Printf("✅ Classifier: %s\n", cfg.Pipeline.Classifier.Backend)
		}
	}

	fmt.Println("\n🎬 Measuring (Ctrl+C to stop)...")

	var frames, faces, readErrors int
	start := time.Now()
	lastReport := start
	counts := make([]int, labels.Len())

	for ctx.Err() == nil {
		f, err := dev.Read()
		if err != nil {
			readErrors++
			time.Sleep(10 * time.Millisecond)
			continue
		}
		frames++

		if frames == 1 && *snapshot != "" {
			if err := saveJPEG(*snapshot, f.Image()); err != nil {
				fmt.Printf("⚠️  Snapshot: %v\n", err)
			} else {
				fmt.Printf("💾 First frame saved: %s\n", *snapshot)
			}
		}

		gray := f.Gray()
		boxes := detection.Sanitize(det.Detect(gray), gray.Width, gray.Height)
		faces += len(boxes)

		if cls != nil {
			for _, b := range boxes {
				p, err := cls.Classify(classifier.Normalize(gray.Crop(b.Rect()), cfg.Pipeline.Classifier.InputSize))
				if err == nil && labels.Valid(p.Label) {
					counts[p.Label]++
				}
			}
		}

		if time.Since(lastReport) >= time.Second {
			elapsed := time.Since(start).Seconds()
			fmt.Printf("📊 %.1f fps | faces/frame %.2f | read errors %d | %s\n",
				float64(frames)/elapsed, float64(faces)/float64(frames), readErrors, summarize(labels, counts))
			lastReport = time.Now()
		}
	}

	elapsed := time.Since(start).Seconds()
	fmt.Printf("\n📊 Final: %d frames in %.1fs = %.2f fps\n", frames, elapsed, float64(frames)/elapsed)
}

func summarize(labels *emotions.Set, counts []int) string {
	best, total := -1, 0
	for i, n := range counts {
		total += n
		if best < 0 || n > counts[best] {
			best = i
		}
	}
	if total == 0 {
		return "no classifications"
	}
	return fmt.Sprintf("top %s (%d/%d)", labels.Name(emotions.Label(best)), counts[best], total)
}

func saveJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}
