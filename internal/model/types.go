package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// Status tags the outcome of a prediction.
type Status int

const (
	StatusOK Status = iota
	// StatusAssetMissing means the model file could not be resolved. No
	// engine work was attempted.
	StatusAssetMissing
	// StatusEngineError covers construction, allocation, tensor lookup, copy,
	// invoke and output read failures.
	StatusEngineError
	// StatusDecodeError means the output bytes could not be read as scores.
	StatusDecodeError
	// StatusEmptyOutput means the model produced no scores.
	StatusEmptyOutput
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusAssetMissing:
		return "asset_missing"
	case StatusEngineError:
		return "engine_error"
	case StatusDecodeError:
		return "decode_error"
	case StatusEmptyOutput:
		return "empty_output"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// NoPrediction is the index reported for every status except StatusOK.
const NoPrediction = -1

// Prediction is the result of one Predict call.
type Prediction struct {
	Index  int
	Status Status
	Scores []float32
	Err    error
}

// OK reports whether Index is a valid class index.
func (p Prediction) OK() bool {
	return p.Status == StatusOK
}

// Stages of a prediction, used in StageError and logs.
const (
	StageLoad     = "load"
	StageAllocate = "allocate"
	StageInput    = "input"
	StageCopy     = "copy"
	StageInvoke   = "invoke"
	StageOutput   = "output"
	StageDecode   = "decode"
	StageArgmax   = "argmax"
)

// StageError records which step of a prediction failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Metadata describes the model's classes and expected image input.
type Metadata struct {
	InputShape    []int64  `json:"input_shape"`
	Classes       []string `json:"classes"`
	ImageSize     int      `json:"image_size"`
	ChannelsFirst bool     `json:"channels_first"`
}

// LoadMetadata reads a metadata JSON file. An empty path yields empty
// metadata.
func LoadMetadata(path string) (Metadata, error) {
	var metadata Metadata
	if path == "" {
		return metadata, nil
	}
	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if metadata.ImageSize < 0 {
		return metadata, fmt.Errorf("invalid image_size %d", metadata.ImageSize)
	}
	return metadata, nil
}
