package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/Brownie44l1/tflite-handler/internal/logger"
	"github.com/Brownie44l1/tflite-handler/internal/model"
	"github.com/Brownie44l1/tflite-handler/internal/preprocess"
	"github.com/Brownie44l1/tflite-handler/internal/scores"
)

const (
	maxBodyBytes   = 32 << 20
	maxUploadBytes = 10 << 20
)

// Predictor is the part of model.Handler the HTTP layer needs.
type Predictor interface {
	Predict(input []byte) model.Prediction
	Class(index int) string
	Metadata() model.Metadata
}

// PredictionRequest is the JSON form of a /predict body.
type PredictionRequest struct {
	Input []float32 `json:"input"`
}

type PredictionResponse struct {
	Index      int             `json:"index"`
	Class      string          `json:"class,omitempty"`
	Confidence float32         `json:"confidence"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Top        []scores.Ranked `json:"top,omitempty"`
}

type Handler struct {
	predictor Predictor
	topK      int
}

func NewHandler(predictor Predictor, topK int) *Handler {
	return &Handler{
		predictor: predictor,
		topK:      topK,
	}
}

// Routes registers every endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/health", EnableCORS(h.Health))
	mux.HandleFunc("/predict", EnableCORS(h.Predict))
	mux.HandleFunc("/predict/image", EnableCORS(h.PredictFromImage))
}

func EnableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Predict accepts either the raw input tensor bytes or a JSON body of the
// form {"input": [...]} holding float32 values.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	input := body
	if isJSON(r) {
		var req PredictionRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Invalid JSON", http.StatusBadRequest)
			return
		}
		input = scores.EncodeFloat32(req.Input)
	}
	if len(input) == 0 {
		http.Error(w, "Empty input", http.StatusBadRequest)
		return
	}

	h.respond(w, h.predictor.Predict(input))
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	meta := h.predictor.Metadata()
	if meta.ImageSize <= 0 {
		http.Error(w, "Image input is not configured for this model", http.StatusNotImplemented)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	logger.Debug(fmt.Sprintf("Received file: %s, size: %d bytes", header.Filename, header.Size))

	img, format, err := preprocess.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}

	logger.Debug(fmt.Sprintf("Image format: %s, dimensions: %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy()))

	input, err := preprocess.Bytes(img, meta.ImageSize, meta.ChannelsFirst)
	if err != nil {
		logger.Error("Preprocessing error", err)
		http.Error(w, "Failed to preprocess image", http.StatusInternalServerError)
		return
	}

	h.respond(w, h.predictor.Predict(input))
}

func (h *Handler) respond(w http.ResponseWriter, p model.Prediction) {
	resp := PredictionResponse{
		Index:  p.Index,
		Status: p.Status.String(),
	}
	if !p.OK() {
		if p.Err != nil {
			resp.Error = p.Err.Error()
		}
		writeJSON(w, statusCode(p.Status), resp)
		return
	}

	resp.Class = h.predictor.Class(p.Index)
	resp.Confidence = p.Scores[p.Index]
	resp.Top = scores.TopK(p.Scores, h.topK)
	writeJSON(w, http.StatusOK, resp)
}

func statusCode(s model.Status) int {
	switch s {
	case model.StatusOK:
		return http.StatusOK
	case model.StatusAssetMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write response", err)
	}
}
