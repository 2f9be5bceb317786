//go:build !opencv

package camera

import (
	"context"
	"fmt"
	"log/slog"
)

const openCVAvailable = false

func openOpenCV(ctx context.Context, cfg Config, logger *slog.Logger) (Device, error) {
	return nil, fmt.Errorf("%w: %w", ErrOpen, ErrBackendUnavailable)
}
