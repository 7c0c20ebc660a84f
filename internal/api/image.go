package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"character-chat/internal/gateway"
	"character-chat/internal/models"
)

// ImageHandler wraps the image gateway and the custom-endpoint model probe.
type ImageHandler struct {
	images *gateway.ImageGateway
	texts  *gateway.TextGateway
	logger *zap.Logger
}

// NewImageHandler creates a new image handler.
func NewImageHandler(images *gateway.ImageGateway, texts *gateway.TextGateway, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{
		images: images,
		texts:  texts,
		logger: logger,
	}
}

// GenerateImageRequest is the request body for POST /api/generate-image.
type GenerateImageRequest struct {
	Prompt    string                `json:"prompt"`
	APIConfig models.ProviderConfig `json:"apiConfig"`
}

// GenerateImageResponse is the response body for POST /api/generate-image.
type GenerateImageResponse struct {
	ImageURL string `json:"imageUrl"`
	Provider string `json:"provider"`
}

// HandleGenerateImage handles POST /api/generate-image.
func (h *ImageHandler) HandleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req GenerateImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Prompt is required"})
		return
	}

	result, err := h.images.Generate(r.Context(), req.Prompt, req.APIConfig)
	if err != nil {
		h.logger.Error("image generation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to generate image",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, GenerateImageResponse{
		ImageURL: result.URL,
		Provider: result.Provider,
	})
}

// ModelsRequest is the request body for POST /api/models.
type ModelsRequest struct {
	BaseURL string `json:"baseUrl"`
}

// ModelsResponse is the response body for POST /api/models.
type ModelsResponse struct {
	OK    bool                `json:"ok"`
	Count int                 `json:"count"`
	Data  []gateway.ModelInfo `json:"data"`
}

// HandleModels handles GET and POST /api/models: a server-side probe of an
// OpenAI-compatible /models listing, avoiding CORS issues from the client.
// GET takes ?baseUrl=, POST a JSON body.
func (h *ImageHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	var req ModelsRequest
	if r.Method == http.MethodGet {
		req.BaseURL = r.URL.Query().Get("baseUrl")
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.BaseURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "baseUrl is required"})
		return
	}
	lower := strings.ToLower(req.BaseURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "baseUrl must start with http(s)://"})
		return
	}

	data, err := h.texts.ListModels(r.Context(), req.BaseURL)
	if err != nil {
		h.logger.Warn("models probe failed", zap.String("base_url", req.BaseURL), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:   "Upstream error",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, ModelsResponse{
		OK:    true,
		Count: len(data),
		Data:  data,
	})
}
