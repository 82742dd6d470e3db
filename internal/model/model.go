// Package model fits the small feed-forward regressors used by the
// projector. A Model is owned by whoever called Train and must be closed
// once predictions are done.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrNoExamples    = errors.New("model: no training examples")
	ErrShapeMismatch = errors.New("model: inputs and targets differ in shape")
	ErrModelClosed   = errors.New("model: closed")
	ErrInvalidConfig = errors.New("model: invalid training config")
)

// TrainConfig controls network shape and the optimizer schedule.
type TrainConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Hidden          []int
	LearningRate    float64
	Beta1           float64
	Beta2           float64
	Epsilon         float64
	Seed            uint64
	// Name labels log lines, e.g. "income".
	Name string
}

// DefaultTrainConfig returns the fixed training schedule: 100 epochs,
// batches of 8, 20% held out for validation, hidden layers of 16 and 8.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Epochs:          100,
		BatchSize:       8,
		ValidationSplit: 0.2,
		Hidden:          []int{16, 8},
		LearningRate:    0.01,
		Beta1:           0.9,
		Beta2:           0.999,
		Epsilon:         1e-7,
		Seed:            1,
	}
}

func (c TrainConfig) validate() error {
	var errs []error
	if c.Epochs < 1 {
		errs = append(errs, fmt.Errorf("epochs must be positive, got %d", c.Epochs))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.BatchSize))
	}
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		errs = append(errs, fmt.Errorf("validation split must be in [0, 1), got %g", c.ValidationSplit))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning rate must be positive, got %g", c.LearningRate))
	}
	for _, h := range c.Hidden {
		if h < 1 {
			errs = append(errs, fmt.Errorf("hidden layer size must be positive, got %d", h))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// EpochStats is the training progress after one pass over the data.
type EpochStats struct {
	Epoch   int
	Loss    float64
	ValLoss float64
	// HasVal is false when no examples were held out.
	HasVal bool
}

// History records per-epoch losses for diagnostics.
type History struct {
	Epochs            []EpochStats
	TrainSamples      int
	ValidationSamples int
}

// FinalValLoss returns the validation loss after the last epoch.
func (h History) FinalValLoss() (float64, bool) {
	if len(h.Epochs) == 0 {
		return 0, false
	}
	last := h.Epochs[len(h.Epochs)-1]
	return last.ValLoss, last.HasVal
}

// FinalLoss returns the training loss after the last epoch.
func (h History) FinalLoss() float64 {
	if len(h.Epochs) == 0 {
		return math.NaN()
	}
	return h.Epochs[len(h.Epochs)-1].Loss
}

// Model is a fitted regressor mapping a feature vector to one scalar.
type Model struct {
	mu     sync.Mutex
	net    *network
	inputs int
}

// Train fits a new model on inputs and targets. The trailing
// cfg.ValidationSplit fraction of examples is held out and only measured;
// it never gates or stops training. Training always runs every epoch.
func Train(ctx context.Context, inputs [][]float64, targets []float64, cfg TrainConfig) (*Model, History, error) {
	if err := cfg.validate(); err != nil {
		return nil, History{}, err
	}
	if len(inputs) == 0 {
		return nil, History{}, ErrNoExamples
	}
	if len(inputs) != len(targets) {
		return nil, History{}, fmt.Errorf("%w: %d inputs, %d targets", ErrShapeMismatch, len(inputs), len(targets))
	}
	width := len(inputs[0])
	if width == 0 {
		return nil, History{}, fmt.Errorf("%w: empty feature vector", ErrShapeMismatch)
	}
	for i, x := range inputs {
		if len(x) != width {
			return nil, History{}, fmt.Errorf("%w: example %d has %d features, want %d", ErrShapeMismatch, i, len(x), width)
		}
	}

	splitAt := int(math.Floor(float64(len(inputs)) * (1 - cfg.ValidationSplit)))
	if splitAt < 1 {
		splitAt = len(inputs)
	}
	trainX, trainY := inputs[:splitAt], targets[:splitAt]
	valX, valY := inputs[splitAt:], targets[splitAt:]

	r := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	net := newNetwork(width, cfg.Hidden, r)
	opt := newAdam(cfg, net.layers)

	var valM *mat.Dense
	if len(valX) > 0 {
		valM = rowsToDense(valX, nil)
		defer valM.Reset()
	}

	hist := History{
		Epochs:            make([]EpochStats, 0, cfg.Epochs),
		TrainSamples:      len(trainX),
		ValidationSamples: len(valX),
	}
	order := make([]int, len(trainX))
	for i := range order {
		order[i] = i
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		r.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var lossSum float64
		for start := 0; start < len(order); start += cfg.BatchSize {
			idx := order[start:min(start+cfg.BatchSize, len(order))]
			x := rowsToDense(trainX, idx)
			y := make([]float64, len(idx))
			for i, k := range idx {
				y[i] = trainY[k]
			}
			lossSum += net.step(x, y, opt) * float64(len(idx))
			x.Reset()
		}

		stats := EpochStats{Epoch: epoch, Loss: lossSum / float64(len(order))}
		if valM != nil {
			stats.ValLoss = net.loss(valM, valY)
			stats.HasVal = true
		}
		hist.Epochs = append(hist.Epochs, stats)
	}

	slog.DebugContext(ctx, "Model trained",
		"model", cfg.Name,
		"epochs", cfg.Epochs,
		"train_samples", hist.TrainSamples,
		"validation_samples", hist.ValidationSamples,
		"loss", hist.FinalLoss())

	return &Model{net: net, inputs: width}, hist, nil
}

// Predict returns the model output for one feature vector. The output is
// not clamped.
func (m *Model) Predict(x []float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.net == nil {
		return 0, ErrModelClosed
	}
	if len(x) != m.inputs {
		return 0, fmt.Errorf("%w: got %d features, want %d", ErrShapeMismatch, len(x), m.inputs)
	}
	in := mat.NewDense(1, m.inputs, append([]float64(nil), x...))
	defer in.Reset()
	return m.net.predict(in)[0], nil
}

// Close releases the network. Predict fails afterwards. Close is idempotent.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.net = nil
	return nil
}

// rowsToDense copies the selected rows (all when idx is nil) into a new matrix.
func rowsToDense(rows [][]float64, idx []int) *mat.Dense {
	if idx == nil {
		idx = make([]int, len(rows))
		for i := range idx {
			idx[i] = i
		}
	}
	width := len(rows[idx[0]])
	m := mat.NewDense(len(idx), width, nil)
	for i, k := range idx {
		m.SetRow(i, rows[k])
	}
	return m
}
