//go:build !opencv

package detection

func newCascade(cfg Config) (Detector, error) {
	return nil, ErrBackendUnavailable
}

func newYuNet(cfg Config) (Detector, error) {
	return nil, ErrBackendUnavailable
}
