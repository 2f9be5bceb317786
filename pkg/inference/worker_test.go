package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-affect/internal/log"
	"github.com/teslashibe/go-affect/pkg/classifier"
	"github.com/teslashibe/go-affect/pkg/detection"
	"github.com/teslashibe/go-affect/pkg/emotions"
	"github.com/teslashibe/go-affect/pkg/frame"
)

type collector struct {
	mu      sync.Mutex
	samples []emotions.Sample
	errs    []error
	fatals  []error
}

func (c *collector) Push(s emotions.Sample) {
	c.mu.Lock()
	c.samples = append(c.samples, s)
	c.mu.Unlock()
}

func (c *collector) EmitError(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
}

func (c *collector) EmitFatal(err error) {
	c.mu.Lock()
	c.fatals = append(c.fatals, err)
	c.mu.Unlock()
}

func (c *collector) counts() (samples, errs, fatals int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.samples), len(c.errs), len(c.fatals)
}

func newWorker(cls classifier.Classifier, c *collector) *Worker {
	return New(Config{
		Loader:    func() (classifier.Classifier, error) { return cls, nil },
		InputSize: 8,
		Sink:      c,
		Reporter:  c,
		Logger:    log.Discard(),
	})
}

func job(seq uint64, boxes ...detection.FaceBox) detection.Faces {
	gray := frame.New(64, 48, frame.Gray)
	for i := range gray.Data {
		gray.Data[i] = uint8(i)
	}
	gray.Seq = seq
	return detection.Faces{Gray: gray, Boxes: boxes, Seq: seq}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorker_OneSamplePerFace(t *testing.T) {
	c := &collector{}
	cls := classifier.NewMock(emotions.Sad, 0.7)
	w := newWorker(cls, c)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Input().Publish(job(1,
		detection.FaceBox{X: 0, Y: 0, W: 16, H: 16},
		detection.FaceBox{X: 20, Y: 10, W: 16, H: 16},
	))

	waitFor(t, func() bool { n, _, _ := c.counts(); return n == 2 })

	c.mu.Lock()
	assert.Equal(t, emotions.Sample{Label: emotions.Sad, Confidence: 0.7}, c.samples[0])
	c.mu.Unlock()

	for _, in := range cls.Inputs() {
		assert.Equal(t, 8, in.Size)
		assert.True(t, in.Valid())
	}
}

func TestWorker_ClassifyErrorSkipsFace(t *testing.T) {
	c := &collector{}
	boom := errors.New("bad tensor")
	calls := 0
	cls := &classifier.Mock{
		ClassifyFunc: func(in classifier.Input) (classifier.Prediction, error) {
			calls++
			if calls == 1 {
				return classifier.Prediction{}, boom
			}
			return classifier.Prediction{Label: emotions.Happiness, Confidence: 0.9}, nil
		},
	}
	w := newWorker(cls, c)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Input().Publish(job(5,
		detection.FaceBox{X: 0, Y: 0, W: 10, H: 10},
		detection.FaceBox{X: 10, Y: 10, W: 10, H: 10},
	))

	waitFor(t, func() bool { n, e, _ := c.counts(); return n == 1 && e == 1 })

	c.mu.Lock()
	err := c.errs[0]
	c.mu.Unlock()

	var fe *FaceError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, uint64(5), fe.Seq)
	assert.Equal(t, 0, fe.Face)
	assert.ErrorIs(t, err, ErrClassify)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), w.Stats().Errors)
}

func TestWorker_ClassifierPanicSkipsFace(t *testing.T) {
	c := &collector{}
	var calls atomic.Int32
	cls := &classifier.Mock{
		ClassifyFunc: func(in classifier.Input) (classifier.Prediction, error) {
			if calls.Add(1) == 1 {
				panic("dnn forward: bad blob")
			}
			return classifier.Prediction{Label: emotions.Upset, Confidence: 0.8}, nil
		},
	}
	w := newWorker(cls, c)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Input().Publish(job(9,
		detection.FaceBox{X: 0, Y: 0, W: 10, H: 10},
		detection.FaceBox{X: 10, Y: 10, W: 10, H: 10},
	))

	waitFor(t, func() bool { n, e, _ := c.counts(); return n == 1 && e == 1 })

	c.mu.Lock()
	err := c.errs[0]
	sample := c.samples[0]
	c.mu.Unlock()

	var fe *FaceError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.Face)
	assert.ErrorIs(t, err, ErrClassify)
	assert.Contains(t, err.Error(), "bad blob")
	assert.Equal(t, emotions.Sample{Label: emotions.Upset, Confidence: 0.8}, sample)

	// The loop survives and keeps classifying
	w.Input().Publish(job(10, detection.FaceBox{X: 0, Y: 0, W: 10, H: 10}))
	waitFor(t, func() bool { n, _, _ := c.counts(); return n == 2 })
	assert.True(t, w.Running())
}

func TestWorker_LabelOutOfRange(t *testing.T) {
	c := &collector{}
	w := newWorker(classifier.NewMock(emotions.Label(9), 1), c)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Input().Publish(job(1, detection.FaceBox{X: 0, Y: 0, W: 8, H: 8}))
	waitFor(t, func() bool { _, e, _ := c.counts(); return e == 1 })

	c.mu.Lock()
	assert.ErrorIs(t, c.errs[0], ErrLabelOutOfRange)
	assert.Empty(t, c.samples)
	c.mu.Unlock()
}

func TestWorker_LoadFailureIsFatal(t *testing.T) {
	c := &collector{}
	w := New(Config{
		Loader: func() (classifier.Classifier, error) {
			return nil, classifier.ErrModelLoad
		},
		Sink:     c,
		Reporter: c,
		Logger:   log.Discard(),
	})

	err := w.Start(context.Background())
	assert.ErrorIs(t, err, ErrClassifierLoad)
	assert.ErrorIs(t, err, classifier.ErrModelLoad)
	assert.False(t, w.Running())

	_, _, fatals := c.counts()
	assert.Equal(t, 1, fatals)
}

func TestWorker_NewestJobWins(t *testing.T) {
	c := &collector{}
	release := make(chan struct{})

	cls := &classifier.Mock{
		ClassifyFunc: func(in classifier.Input) (classifier.Prediction, error) {
			<-release
			return classifier.Prediction{Label: emotions.Upset, Confidence: 1}, nil
		},
	}
	w := New(Config{
		Loader:    func() (classifier.Classifier, error) { return cls, nil },
		InputSize: 4,
		Sink: SampleSinkFunc(func(s emotions.Sample) {
			c.Push(s)
		}),
		Reporter: c,
		Logger:   log.Discard(),
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	box := detection.FaceBox{X: 0, Y: 0, W: 4, H: 4}
	w.Input().Publish(job(1, box))
	waitFor(t, func() bool { return cls.Calls() == 1 })

	// Job 1 is in flight; 2 and 3 compete for the slot
	w.Input().Publish(job(2, box))
	w.Input().Publish(job(3, box))
	close(release)

	waitFor(t, func() bool { n, _, _ := c.counts(); return n == 2 })

	stats := w.Stats()
	assert.Equal(t, uint64(2), stats.Jobs)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, uint64(3), stats.Published)
}

func TestWorker_StopClosesClassifierOnce(t *testing.T) {
	c := &collector{}
	cls := classifier.NewMock(emotions.Annoyed, 0.5)
	w := newWorker(cls, c)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
	assert.Equal(t, 1, cls.Closed())
	assert.False(t, w.Running())

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.Equal(t, 2, cls.Closed())
}

func TestWorker_StartDiscardsStaleJob(t *testing.T) {
	c := &collector{}
	cls := classifier.NewMock(emotions.Annoyed, 0.5)
	w := newWorker(cls, c)

	w.Input().Publish(job(1, detection.FaceBox{X: 0, Y: 0, W: 8, H: 8}))
	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	w.Stop()

	assert.Zero(t, cls.Calls())
}

func TestWorker_EmptyFrameIgnored(t *testing.T) {
	c := &collector{}
	cls := classifier.NewMock(emotions.Annoyed, 0.5)
	w := newWorker(cls, c)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	w.Input().Publish(detection.Faces{Gray: frame.New(0, 0, frame.Gray), Boxes: []detection.FaceBox{{W: 4, H: 4}}})
	waitFor(t, func() bool { return w.Stats().Jobs == 1 })
	assert.Zero(t, cls.Calls())
}
