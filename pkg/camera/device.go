package camera

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-affect/pkg/frame"
)

// Device is an open camera. It is owned by a single goroutine: Read and
// Close are never called concurrently.
type Device interface {
	// Read blocks until the next frame is available.
	Read() (*frame.Frame, error)

	// Close releases the device. Calling Close twice is an error-free no-op.
	Close() error
}

// Opener opens camera devices.
type Opener interface {
	Open(ctx context.Context, cfg Config) (Device, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, cfg Config) (Device, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, cfg Config) (Device, error) {
	return f(ctx, cfg)
}

// NewOpener returns an opener that dispatches on cfg.Backend at open time.
func NewOpener(logger *slog.Logger) Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return OpenerFunc(func(ctx context.Context, cfg Config) (Device, error) {
		if errs := cfg.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("%w: invalid config: %v", ErrOpen, errs)
		}

		backend := cfg.Backend
		if backend == BackendAuto {
			backend = detectBestBackend()
		}

		logger.Info("opening camera",
			"backend", backend,
			"device", cfg.DeviceIndex,
			"width", cfg.Width,
			"height", cfg.Height,
			"fps", cfg.Framerate,
		)

		switch backend {
		case BackendOpenCV:
			return openOpenCV(ctx, cfg, logger)
		case BackendMock:
			return NewMockOpener().Open(ctx, cfg)
		default:
			return nil, fmt.Errorf("%w: unsupported backend %s", ErrOpen, backend)
		}
	})
}

// detectBestBackend returns opencv when it is compiled in.
func detectBestBackend() Backend {
	if openCVAvailable {
		return BackendOpenCV
	}
	return BackendMock
}

// AvailableBackends returns the list of backends compiled into this binary.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if openCVAvailable {
		backends = append(backends, BackendOpenCV)
	}
	return backends
}
