//go:build !opencv

package classifier

import "github.com/teslashibe/go-affect/pkg/emotions"

func newONNX(cfg Config, labels *emotions.Set) (Classifier, error) {
	return nil, ErrBackendUnavailable
}
