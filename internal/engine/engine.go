// Package engine describes the inference engine the model handler drives.
// Backends live in sub-packages and register themselves by kind.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

var (
	ErrUnknownKind  = errors.New("unknown engine kind")
	ErrSizeMismatch = errors.New("input size does not match tensor size")
	ErrNoSuchTensor = errors.New("tensor index out of range")
	ErrNotAllocated = errors.New("tensors are not allocated")
	ErrEngineClosed = errors.New("engine is closed")
)

// TensorInfo describes an input or output tensor.
type TensorInfo struct {
	Name     string
	Type     scores.ElementType
	Shape    []int
	ByteSize int
}

// Engine is one loaded model instance. It is not safe for concurrent use.
type Engine interface {
	AllocateTensors() error
	Input(index int) (TensorInfo, error)
	// CopyInput copies data into the backing storage of an input tensor.
	// The length of data must equal the tensor's byte size.
	CopyInput(index int, data []byte) error
	Invoke() error
	Output(index int) (TensorInfo, error)
	OutputBytes(index int) ([]byte, error)
	Close() error
}

// Factory constructs an engine bound to the model at modelPath.
type Factory func(modelPath string) (Engine, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. Registering the same kind
// twice replaces the earlier factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// Lookup returns the factory registered under kind.
func Lookup(kind string) (Factory, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := factories[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownKind, kind, kindsLocked())
	}
	return f, nil
}

// Kinds lists the registered backends.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	return kindsLocked()
}

func kindsLocked() []string {
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// CheckSize returns ErrSizeMismatch when got differs from want.
func CheckSize(want, got int) error {
	if want != got {
		return fmt.Errorf("%w: tensor holds %d bytes, got %d", ErrSizeMismatch, want, got)
	}
	return nil
}
