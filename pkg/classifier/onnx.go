//go:build opencv

package classifier

import (
	"fmt"
	"image"
	"os"
	"sync"
	"unsafe"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-affect/pkg/emotions"
)

// ONNXClassifier runs an ONNX expression model through OpenCV's dnn module.
type ONNXClassifier struct {
	net    gocv.Net
	config Config
	labels *emotions.Set
	mu     sync.Mutex // Protects inference
}

func newONNX(cfg Config, labels *emotions.Set) (Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, cfg.ModelPath, err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: cannot parse %s", ErrModelLoad, cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ONNXClassifier{net: net, config: cfg, labels: labels}, nil
}

// Classify runs one forward pass over a normalized crop.
func (c *ONNXClassifier) Classify(in Input) (Prediction, error) {
	if !in.Valid() || in.Size != c.config.InputSize {
		return Prediction{}, wrapError(BackendONNX, fmt.Errorf("%w: size %d, want %d", ErrInvalidInput, in.Size, c.config.InputSize))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&in.Data[0])), len(in.Data)*4)
	img, err := gocv.NewMatFromBytes(in.Size, in.Size, gocv.MatTypeCV32F, raw)
	if err != nil {
		return Prediction{}, wrapError(BackendONNX, err)
	}
	defer img.Close()

	// NCHW 1×1×S×S, values already in [0, 1]
	blob := gocv.BlobFromImage(img, 1.0, image.Pt(in.Size, in.Size), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	scores, err := output.DataPtrFloat32()
	if err != nil {
		return Prediction{}, wrapError(BackendONNX, err)
	}
	if len(scores) != c.labels.Len() {
		return Prediction{}, wrapError(BackendONNX, fmt.Errorf("%w: %d scores for %d labels", ErrOutputShape, len(scores), c.labels.Len()))
	}

	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = float64(s)
	}
	if c.config.Softmax {
		probs = Softmax(probs)
	}
	return FromProbs(probs), nil
}

// Close releases the network.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}
