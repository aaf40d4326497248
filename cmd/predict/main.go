// Command predict classifies one raw input tensor file and prints the
// winning class index.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Brownie44l1/tflite-handler/internal/assets"
	"github.com/Brownie44l1/tflite-handler/internal/engine"
	"github.com/Brownie44l1/tflite-handler/internal/engine/onnx"
	"github.com/Brownie44l1/tflite-handler/internal/engine/tflite"
	"github.com/Brownie44l1/tflite-handler/internal/logger"
	"github.com/Brownie44l1/tflite-handler/internal/model"
)

func main() {
	modelDir := flag.String("model-dir", "models", "directory holding the model file")
	modelName := flag.String("model-name", model.DefaultModelName, "model file name without extension")
	modelExt := flag.String("model-ext", model.DefaultModelExt, "model file extension")
	kind := flag.String("engine", tflite.Kind, "inference engine: tflite or onnx")
	inputPath := flag.String("input", "", "file with the raw input tensor bytes")
	threads := flag.Int("threads", 0, "interpreter threads (tflite)")
	onnxLib := flag.String("onnx-lib", "", "path to the ONNX Runtime shared library")
	logLevel := flag.String("log-level", "WARN", "log level")
	flag.Parse()

	os.Exit(run(*modelDir, *modelName, *modelExt, *kind, *inputPath, *threads, *onnxLib, *logLevel))
}

func run(modelDir, modelName, modelExt, kind, inputPath string, threads int, onnxLib, logLevel string) int {
	if err := logger.InitLoggerTo(os.Stderr, logLevel, "predict"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "-input is required")
		return 2
	}
	input, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read input: %v\n", err)
		return 2
	}

	tflite.Threads = threads
	onnx.SetLibraryPath(onnxLib)
	defer onnx.Shutdown()

	factory, err := engine.Lookup(kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	h := model.NewHandler(assets.NewDirBundle(modelDir), factory, model.Options{
		ModelName: modelName,
		ModelExt:  modelExt,
	})
	p := h.Predict(input)
	fmt.Printf("index=%d status=%s\n", p.Index, p.Status)
	if !p.OK() {
		if p.Err != nil {
			fmt.Fprintln(os.Stderr, p.Err)
		}
		return 1
	}
	return 0
}
