package classifier

import (
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-affect/pkg/emotions"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(in Input) (Prediction, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu     sync.Mutex
	inputs []Input

	closed atomic.Int64
}

// NewMock returns a classifier that always predicts label with confidence.
func NewMock(label emotions.Label, confidence float64) *Mock {
	return &Mock{
		ClassifyFunc: func(in Input) (Prediction, error) {
			return Prediction{Label: label, Confidence: confidence}, nil
		},
	}
}

// NewSequenceMock returns predictions in order, repeating the last one.
func NewSequenceMock(preds ...Prediction) *Mock {
	var (
		mu sync.Mutex
		i  int
	)
	return &Mock{
		ClassifyFunc: func(in Input) (Prediction, error) {
			mu.Lock()
			defer mu.Unlock()
			if len(preds) == 0 {
				return Prediction{}, nil
			}
			p := preds[min(i, len(preds)-1)]
			i++
			return p, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(in Input) (Prediction, error) {
			return Prediction{}, wrapError(BackendMock, err)
		},
	}
}

// NewBrightnessMock predicts from mean crop intensity: darker crops map to
// lower label indices. It lets the pipeline run end to end without a model.
func NewBrightnessMock(labels *emotions.Set) *Mock {
	n := labels.Len()
	return &Mock{
		ClassifyFunc: func(in Input) (Prediction, error) {
			if !in.Valid() {
				return Prediction{}, wrapError(BackendMock, ErrInvalidInput)
			}
			var sum float64
			for _, v := range in.Data {
				sum += float64(v)
			}
			mean := sum / float64(len(in.Data))

			probs := make([]float64, n)
			idx := min(int(mean*float64(n)), n-1)
			probs[idx] = 0.6
			for i := range probs {
				if i != idx {
					probs[i] = 0.4 / float64(n-1)
				}
			}
			if n == 1 {
				probs[0] = 1
			}
			return FromProbs(probs), nil
		},
	}
}

// Classify calls ClassifyFunc and records the input.
func (m *Mock) Classify(in Input) (Prediction, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(in)
	}
	return Prediction{}, nil
}

// Close calls CloseFunc and counts the call.
func (m *Mock) Close() error {
	m.closed.Add(1)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns how many times Classify ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// Inputs returns a copy of every input seen.
func (m *Mock) Inputs() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Input(nil), m.inputs...)
}

// Closed returns how many times Close ran.
func (m *Mock) Closed() int {
	return int(m.closed.Load())
}

// Verify Mock implements Classifier at compile time.
var _ Classifier = (*Mock)(nil)
