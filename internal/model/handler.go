// Package model runs single-input, single-output classifiers: it copies raw
// input bytes into input tensor 0, invokes the engine and reports the
// position of the highest score in output tensor 0.
package model

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Brownie44l1/tflite-handler/internal/assets"
	"github.com/Brownie44l1/tflite-handler/internal/engine"
	"github.com/Brownie44l1/tflite-handler/internal/logger"
	"github.com/Brownie44l1/tflite-handler/internal/metrics"
	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

const (
	DefaultModelName = "model"
	DefaultModelExt  = "tflite"

	inputIndex  = 0
	outputIndex = 0
)

var ErrAssetMissing = errors.New("model asset not found")

// Options configure a Handler.
type Options struct {
	ModelName string
	ModelExt  string
	// Persistent keeps one engine for the handler's lifetime instead of
	// loading the model on every call. Calls are then serialized.
	Persistent bool
	Metadata   Metadata
}

// Handler turns input bytes into a class index. It is safe for concurrent
// use.
type Handler struct {
	bundle  assets.Bundle
	factory engine.Factory
	opts    Options

	// mu guards engine in persistent mode
	mu     sync.Mutex
	engine engine.Engine

	lastMu sync.RWMutex
	last   []float32
}

func NewHandler(bundle assets.Bundle, factory engine.Factory, opts Options) *Handler {
	if opts.ModelName == "" {
		opts.ModelName = DefaultModelName
	}
	if opts.ModelExt == "" {
		opts.ModelExt = DefaultModelExt
	}
	return &Handler{bundle: bundle, factory: factory, opts: opts}
}

// Predict runs one inference. The returned Index is a class index only when
// Status is StatusOK and NoPrediction otherwise.
func (h *Handler) Predict(input []byte) Prediction {
	start := time.Now()

	var p Prediction
	if h.opts.Persistent {
		p = h.predictPersistent(input)
	} else {
		p = h.predictOnce(input)
	}

	tags := []string{"status:" + p.Status.String()}
	metrics.Count("model.predict", 1, tags)
	metrics.Timing("model.predict.latency", time.Since(start), tags)

	if p.OK() {
		h.lastMu.Lock()
		h.last = append(h.last[:0], p.Scores...)
		h.lastMu.Unlock()
	}
	return p
}

// PredictIndex is Predict reduced to the index: the class on success and
// NoPrediction on any failure.
func (h *Handler) PredictIndex(input []byte) int {
	return h.Predict(input).Index
}

// predictOnce builds an engine for this call only and always releases it.
func (h *Handler) predictOnce(input []byte) Prediction {
	path, ok := h.bundle.Path(h.opts.ModelName, h.opts.ModelExt)
	if !ok {
		return h.assetMissing()
	}

	eng, err := h.factory(path)
	if err != nil {
		return h.engineFailure(&StageError{Stage: StageLoad, Err: err})
	}
	defer releaseEngine(eng)

	if err := eng.AllocateTensors(); err != nil {
		return h.engineFailure(&StageError{Stage: StageAllocate, Err: err})
	}
	return h.run(eng, input)
}

func (h *Handler) predictPersistent(input []byte) Prediction {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.engine == nil {
		path, ok := h.bundle.Path(h.opts.ModelName, h.opts.ModelExt)
		if !ok {
			return h.assetMissing()
		}
		eng, err := h.factory(path)
		if err != nil {
			return h.engineFailure(&StageError{Stage: StageLoad, Err: err})
		}
		if err := eng.AllocateTensors(); err != nil {
			releaseEngine(eng)
			return h.engineFailure(&StageError{Stage: StageAllocate, Err: err})
		}
		logger.Info(fmt.Sprintf("Loaded model %s", path))
		h.engine = eng
	}

	p := h.run(h.engine, input)
	var stageErr *StageError
	if errors.As(p.Err, &stageErr) && stageErr.Stage == StageInvoke {
		// the interpreter state is unknown after a failed invoke; reload next call
		releaseEngine(h.engine)
		h.engine = nil
	}
	return p
}

func (h *Handler) run(eng engine.Engine, input []byte) Prediction {
	if _, err := eng.Input(inputIndex); err != nil {
		return h.engineFailure(&StageError{Stage: StageInput, Err: err})
	}
	if err := eng.CopyInput(inputIndex, input); err != nil {
		return h.engineFailure(&StageError{Stage: StageCopy, Err: err})
	}
	if err := eng.Invoke(); err != nil {
		return h.engineFailure(&StageError{Stage: StageInvoke, Err: err})
	}
	info, err := eng.Output(outputIndex)
	if err != nil {
		return h.engineFailure(&StageError{Stage: StageOutput, Err: err})
	}
	raw, err := eng.OutputBytes(outputIndex)
	if err != nil {
		return h.engineFailure(&StageError{Stage: StageOutput, Err: err})
	}

	values, err := scores.Decode(info.Type, raw)
	if err != nil {
		logger.Debug(fmt.Sprintf("Output %q not decodable: %v", info.Name, err))
		return Prediction{Index: NoPrediction, Status: StatusDecodeError, Err: &StageError{Stage: StageDecode, Err: err}}
	}

	idx, err := scores.Argmax(values)
	if err != nil {
		return Prediction{Index: NoPrediction, Status: StatusEmptyOutput, Err: &StageError{Stage: StageArgmax, Err: err}}
	}
	logger.Debug(fmt.Sprintf("Predicted class %d from %d scores", idx, len(values)))
	return Prediction{Index: idx, Status: StatusOK, Scores: values}
}

func releaseEngine(eng engine.Engine) {
	if err := eng.Close(); err != nil {
		logger.Error("Failed to release engine", err)
	}
}

func (h *Handler) assetMissing() Prediction {
	return Prediction{
		Index:  NoPrediction,
		Status: StatusAssetMissing,
		Err:    fmt.Errorf("%w: %s.%s", ErrAssetMissing, h.opts.ModelName, h.opts.ModelExt),
	}
}

func (h *Handler) engineFailure(err *StageError) Prediction {
	logger.Error("Prediction failed", err)
	return Prediction{Index: NoPrediction, Status: StatusEngineError, Err: err}
}

// LastScores returns a copy of the scores of the last successful prediction.
// It is for inspection only; Predict's return value is authoritative.
func (h *Handler) LastScores() []float32 {
	h.lastMu.RLock()
	defer h.lastMu.RUnlock()
	return append([]float32(nil), h.last...)
}

// Metadata returns the model metadata the handler was built with.
func (h *Handler) Metadata() Metadata {
	return h.opts.Metadata
}

// Class names a class index, or returns "" when no label is known.
func (h *Handler) Class(index int) string {
	if index < 0 || index >= len(h.opts.Metadata.Classes) {
		return ""
	}
	return h.opts.Metadata.Classes[index]
}

// Close releases the persistent engine, if any.
func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return nil
	}
	err := h.engine.Close()
	h.engine = nil
	return err
}
