// Package onnx runs float32 models through ONNX Runtime.
package onnx

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/tflite-handler/internal/engine"
	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

const Kind = "onnx"

var (
	envMu       sync.Mutex
	libraryPath string
)

func init() {
	engine.Register(Kind, func(modelPath string) (engine.Engine, error) {
		return New(modelPath)
	})
}

// SetLibraryPath points ONNX Runtime at its shared library. It must be
// called before the first engine is built to have any effect.
func SetLibraryPath(path string) {
	envMu.Lock()
	defer envMu.Unlock()
	libraryPath = path
}

func ensureEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	return nil
}

// Shutdown tears down the ONNX Runtime environment. Engines must all be
// closed first.
func Shutdown() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// Engine is one ONNX Runtime session with a float32 tensor bound to every
// model input and output.
type Engine struct {
	modelPath string
	inputs    []ort.InputOutputInfo
	outputs   []ort.InputOutputInfo

	session       *ort.AdvancedSession
	inputTensors  []*ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	closed        bool
}

// New reads the model's input and output signature. The session itself is
// created by AllocateTensors.
func New(modelPath string) (*Engine, error) {
	if err := ensureEnvironment(); err != nil {
		return nil, err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model signature: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has %d inputs and %d outputs", modelPath, len(inputs), len(outputs))
	}
	for _, info := range append(append([]ort.InputOutputInfo{}, inputs...), outputs...) {
		if info.DataType != ort.TensorElementDataTypeFloat {
			return nil, fmt.Errorf("tensor %q has element type %v, only float32 is supported", info.Name, info.DataType)
		}
	}
	return &Engine{modelPath: modelPath, inputs: inputs, outputs: outputs}, nil
}

// AllocateTensors creates the bound tensors and the session. Dynamic
// dimensions are fixed to 1, which makes a dynamic batch axis a batch of one.
func (e *Engine) AllocateTensors() error {
	if e.closed {
		return engine.ErrEngineClosed
	}
	if e.session != nil {
		return nil
	}

	var inputNames, outputNames []string
	var inputValues, outputValues []ort.ArbitraryTensor
	for _, info := range e.inputs {
		t, err := ort.NewEmptyTensor[float32](staticShape(info.Dimensions))
		if err != nil {
			e.destroyTensors()
			return fmt.Errorf("failed to create input tensor %q: %w", info.Name, err)
		}
		e.inputTensors = append(e.inputTensors, t)
		inputNames = append(inputNames, info.Name)
		inputValues = append(inputValues, t)
	}
	for _, info := range e.outputs {
		t, err := ort.NewEmptyTensor[float32](staticShape(info.Dimensions))
		if err != nil {
			e.destroyTensors()
			return fmt.Errorf("failed to create output tensor %q: %w", info.Name, err)
		}
		e.outputTensors = append(e.outputTensors, t)
		outputNames = append(outputNames, info.Name)
		outputValues = append(outputValues, t)
	}

	session, err := ort.NewAdvancedSession(e.modelPath, inputNames, outputNames, inputValues, outputValues, nil)
	if err != nil {
		e.destroyTensors()
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session
	return nil
}

func (e *Engine) tensor(tensors []*ort.Tensor[float32], infos []ort.InputOutputInfo, kind string, index int) (*ort.Tensor[float32], ort.InputOutputInfo, error) {
	if e.closed {
		return nil, ort.InputOutputInfo{}, engine.ErrEngineClosed
	}
	if e.session == nil {
		return nil, ort.InputOutputInfo{}, engine.ErrNotAllocated
	}
	if index < 0 || index >= len(tensors) {
		return nil, ort.InputOutputInfo{}, fmt.Errorf("%s %d: %w", kind, index, engine.ErrNoSuchTensor)
	}
	return tensors[index], infos[index], nil
}

func (e *Engine) Input(index int) (engine.TensorInfo, error) {
	t, info, err := e.tensor(e.inputTensors, e.inputs, "input", index)
	if err != nil {
		return engine.TensorInfo{}, err
	}
	return describe(info, t), nil
}

func (e *Engine) CopyInput(index int, data []byte) error {
	t, _, err := e.tensor(e.inputTensors, e.inputs, "input", index)
	if err != nil {
		return err
	}
	dst := t.GetData()
	if err := engine.CheckSize(len(dst)*4, len(data)); err != nil {
		return err
	}
	values, err := scores.DecodeFloat32(data)
	if err != nil {
		return err
	}
	copy(dst, values)
	return nil
}

func (e *Engine) Invoke() error {
	if e.closed {
		return engine.ErrEngineClosed
	}
	if e.session == nil {
		return engine.ErrNotAllocated
	}
	if err := e.session.Run(); err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}
	return nil
}

func (e *Engine) Output(index int) (engine.TensorInfo, error) {
	t, info, err := e.tensor(e.outputTensors, e.outputs, "output", index)
	if err != nil {
		return engine.TensorInfo{}, err
	}
	return describe(info, t), nil
}

func (e *Engine) OutputBytes(index int) ([]byte, error) {
	t, _, err := e.tensor(e.outputTensors, e.outputs, "output", index)
	if err != nil {
		return nil, err
	}
	return scores.EncodeFloat32(t.GetData()), nil
}

func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	e.destroyTensors()
	return err
}

func (e *Engine) destroyTensors() {
	for _, t := range e.inputTensors {
		t.Destroy()
	}
	for _, t := range e.outputTensors {
		t.Destroy()
	}
	e.inputTensors = nil
	e.outputTensors = nil
}

func staticShape(dims ort.Shape) ort.Shape {
	out := make([]int64, len(dims))
	for i, d := range dims {
		if d < 1 {
			d = 1
		}
		out[i] = d
	}
	return ort.NewShape(out...)
}

func describe(info ort.InputOutputInfo, t *ort.Tensor[float32]) engine.TensorInfo {
	shape := t.GetShape()
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return engine.TensorInfo{
		Name:     info.Name,
		Type:     scores.Float32,
		Shape:    dims,
		ByteSize: len(t.GetData()) * 4,
	}
}
