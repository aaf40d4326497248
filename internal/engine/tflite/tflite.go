//go:build tflite

package tflite

import (
	"fmt"

	"github.com/mattn/go-tflite"

	"github.com/Brownie44l1/tflite-handler/internal/engine"
	"github.com/Brownie44l1/tflite-handler/internal/logger"
	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

// float16Type is kTfLiteFloat16 in the C API.
const float16Type = tflite.TensorType(10)

func init() {
	engine.Register(Kind, func(modelPath string) (engine.Engine, error) {
		return New(modelPath, Threads)
	})
}

// Engine wraps one model and interpreter pair.
type Engine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	allocated   bool
}

// New loads the model at modelPath and builds an interpreter for it.
func New(modelPath string, threads int) (*Engine, error) {
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("cannot load model %s", modelPath)
	}

	options := tflite.NewInterpreterOptions()
	if threads > 0 {
		options.SetNumThread(threads)
	}
	options.SetErrorReporter(func(msg string, _ interface{}) {
		logger.Debug("tflite: " + msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("cannot create interpreter for %s", modelPath)
	}

	return &Engine{model: model, options: options, interpreter: interpreter}, nil
}

func (e *Engine) AllocateTensors() error {
	if e.interpreter == nil {
		return engine.ErrEngineClosed
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		return fmt.Errorf("allocate tensors: status %d", status)
	}
	e.allocated = true
	return nil
}

func (e *Engine) inputTensor(index int) (*tflite.Tensor, error) {
	if e.interpreter == nil {
		return nil, engine.ErrEngineClosed
	}
	if !e.allocated {
		return nil, engine.ErrNotAllocated
	}
	if index < 0 || index >= e.interpreter.GetInputTensorCount() {
		return nil, fmt.Errorf("input %d: %w", index, engine.ErrNoSuchTensor)
	}
	return e.interpreter.GetInputTensor(index), nil
}

func (e *Engine) outputTensor(index int) (*tflite.Tensor, error) {
	if e.interpreter == nil {
		return nil, engine.ErrEngineClosed
	}
	if !e.allocated {
		return nil, engine.ErrNotAllocated
	}
	if index < 0 || index >= e.interpreter.GetOutputTensorCount() {
		return nil, fmt.Errorf("output %d: %w", index, engine.ErrNoSuchTensor)
	}
	return e.interpreter.GetOutputTensor(index), nil
}

func (e *Engine) Input(index int) (engine.TensorInfo, error) {
	t, err := e.inputTensor(index)
	if err != nil {
		return engine.TensorInfo{}, err
	}
	return describe(t), nil
}

func (e *Engine) CopyInput(index int, data []byte) error {
	t, err := e.inputTensor(index)
	if err != nil {
		return err
	}
	if err := engine.CheckSize(int(t.ByteSize()), len(data)); err != nil {
		return err
	}
	if status := t.CopyFromBuffer(data); status != tflite.OK {
		return fmt.Errorf("copy into input %d: status %d", index, status)
	}
	return nil
}

func (e *Engine) Invoke() error {
	if e.interpreter == nil {
		return engine.ErrEngineClosed
	}
	if status := e.interpreter.Invoke(); status != tflite.OK {
		return fmt.Errorf("invoke: status %d", status)
	}
	return nil
}

func (e *Engine) Output(index int) (engine.TensorInfo, error) {
	t, err := e.outputTensor(index)
	if err != nil {
		return engine.TensorInfo{}, err
	}
	return describe(t), nil
}

func (e *Engine) OutputBytes(index int) ([]byte, error) {
	t, err := e.outputTensor(index)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, t.ByteSize())
	if status := t.CopyToBuffer(buf); status != tflite.OK {
		return nil, fmt.Errorf("copy from output %d: status %d", index, status)
	}
	return buf, nil
}

// Close releases the interpreter, its options and the model. It is safe to
// call more than once.
func (e *Engine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}

func describe(t *tflite.Tensor) engine.TensorInfo {
	return engine.TensorInfo{
		Name:     t.Name(),
		Type:     elementType(t.Type()),
		Shape:    shape(t),
		ByteSize: int(t.ByteSize()),
	}
}

func shape(t *tflite.Tensor) []int {
	dims := make([]int, t.NumDims())
	for i := range dims {
		dims[i] = t.Dim(i)
	}
	return dims
}

func elementType(t tflite.TensorType) scores.ElementType {
	switch t {
	case tflite.Float32:
		return scores.Float32
	case float16Type:
		return scores.Float16
	default:
		return scores.Unknown
	}
}
