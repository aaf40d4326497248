// Package enginefake provides a scripted in-memory engine. It lets the model
// handler and the HTTP layer run without a native inference library.
package enginefake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Brownie44l1/tflite-handler/internal/engine"
	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

// Steps at which a fake engine can be told to fail.
const (
	StepLoad     = "load"
	StepAllocate = "allocate"
	StepInput    = "input"
	StepCopy     = "copy"
	StepInvoke   = "invoke"
	StepOutput   = "output"
)

// ErrInjected is the error returned by the step named in Options.FailAt.
var ErrInjected = errors.New("injected failure")

// Options script the behaviour of every engine a Factory builds.
type Options struct {
	// InputSize is the byte size of input tensor 0.
	InputSize int
	// Output is returned for output tensor 0 when Compute is nil.
	Output     []byte
	OutputType scores.ElementType
	// Compute derives the output bytes from the copied input.
	Compute func(input []byte) []byte
	FailAt  string
	// FailClose makes Close report ErrInjected after releasing the engine.
	FailClose bool
}

// Factory builds fake engines and records what happened to them.
type Factory struct {
	mu      sync.Mutex
	opts    Options
	created int
	closed  int
	paths   []string
	steps   []string
}

func NewFactory(opts Options) *Factory {
	if opts.OutputType == scores.Unknown {
		opts.OutputType = scores.Float32
	}
	return &Factory{opts: opts}
}

// SetOptions changes the script for engines built from now on.
func (f *Factory) SetOptions(opts Options) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.OutputType == scores.Unknown {
		opts.OutputType = scores.Float32
	}
	f.opts = opts
}

// New satisfies engine.Factory.
func (f *Factory) New(modelPath string) (engine.Engine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, modelPath)
	f.steps = append(f.steps, StepLoad)
	if f.opts.FailAt == StepLoad {
		return nil, fmt.Errorf("open %s: %w", modelPath, ErrInjected)
	}
	f.created++
	return &fakeEngine{factory: f, opts: f.opts}, nil
}

// Created is the number of engines successfully constructed.
func (f *Factory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created
}

// Open is the number of constructed engines not yet closed.
func (f *Factory) Open() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created - f.closed
}

// Paths lists the model paths passed to New.
func (f *Factory) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

// Steps lists every engine call made so far, in order.
func (f *Factory) Steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.steps...)
}

func (f *Factory) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps, step)
}

type fakeEngine struct {
	factory   *Factory
	opts      Options
	allocated bool
	closed    bool
	input     []byte
	output    []byte
}

func (e *fakeEngine) step(name string) error {
	e.factory.record(name)
	if e.closed {
		return engine.ErrEngineClosed
	}
	if e.opts.FailAt == name {
		return fmt.Errorf("%s: %w", name, ErrInjected)
	}
	return nil
}

func (e *fakeEngine) AllocateTensors() error {
	if err := e.step(StepAllocate); err != nil {
		return err
	}
	e.allocated = true
	e.input = make([]byte, e.opts.InputSize)
	return nil
}

func (e *fakeEngine) Input(index int) (engine.TensorInfo, error) {
	if err := e.step(StepInput); err != nil {
		return engine.TensorInfo{}, err
	}
	if !e.allocated {
		return engine.TensorInfo{}, engine.ErrNotAllocated
	}
	if index != 0 {
		return engine.TensorInfo{}, fmt.Errorf("input %d: %w", index, engine.ErrNoSuchTensor)
	}
	return engine.TensorInfo{
		Name:     "input",
		Type:     scores.Float32,
		Shape:    []int{1, e.opts.InputSize / 4},
		ByteSize: e.opts.InputSize,
	}, nil
}

func (e *fakeEngine) CopyInput(index int, data []byte) error {
	if err := e.step(StepCopy); err != nil {
		return err
	}
	if !e.allocated {
		return engine.ErrNotAllocated
	}
	if index != 0 {
		return fmt.Errorf("input %d: %w", index, engine.ErrNoSuchTensor)
	}
	if err := engine.CheckSize(len(e.input), len(data)); err != nil {
		return err
	}
	copy(e.input, data)
	return nil
}

func (e *fakeEngine) Invoke() error {
	if err := e.step(StepInvoke); err != nil {
		return err
	}
	if !e.allocated {
		return engine.ErrNotAllocated
	}
	if e.opts.Compute != nil {
		e.output = e.opts.Compute(append([]byte(nil), e.input...))
	} else {
		e.output = append([]byte(nil), e.opts.Output...)
	}
	return nil
}

func (e *fakeEngine) Output(index int) (engine.TensorInfo, error) {
	if err := e.step(StepOutput); err != nil {
		return engine.TensorInfo{}, err
	}
	if index != 0 {
		return engine.TensorInfo{}, fmt.Errorf("output %d: %w", index, engine.ErrNoSuchTensor)
	}
	return engine.TensorInfo{
		Name:     "output",
		Type:     e.opts.OutputType,
		Shape:    []int{1, len(e.output) / 4},
		ByteSize: len(e.output),
	}, nil
}

func (e *fakeEngine) OutputBytes(index int) ([]byte, error) {
	if e.closed {
		return nil, engine.ErrEngineClosed
	}
	if index != 0 {
		return nil, fmt.Errorf("output %d: %w", index, engine.ErrNoSuchTensor)
	}
	return append([]byte(nil), e.output...), nil
}

func (e *fakeEngine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.factory.mu.Lock()
	e.factory.closed++
	e.factory.steps = append(e.factory.steps, "close")
	e.factory.mu.Unlock()
	if e.opts.FailClose {
		return fmt.Errorf("close: %w", ErrInjected)
	}
	return nil
}
