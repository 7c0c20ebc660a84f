package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"character-chat/internal/db"
	"character-chat/internal/models"
)

// PersonalityHandler handles personality-related HTTP requests
type PersonalityHandler struct {
	db     *db.DB
	logger *zap.Logger
}

// NewPersonalityHandler creates a new personality handler
func NewPersonalityHandler(database *db.DB, logger *zap.Logger) *PersonalityHandler {
	return &PersonalityHandler{
		db:     database,
		logger: logger,
	}
}

// PersonalityRequest represents the request body for creating or updating a personality
type PersonalityRequest struct {
	Name          string   `json:"name"`
	Avatar        string   `json:"avatar"`
	Personality   string   `json:"personality"`
	Traits        []string `json:"traits"`
	Description   string   `json:"description"`
	AvatarGallery []string `json:"avatarGallery"`
}

// Create handles POST /api/personalities
func (h *PersonalityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req PersonalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.Name == "" || req.Personality == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Name and personality are required"})
		return
	}

	p, err := h.db.CreatePersonality(models.Personality{
		Name:          req.Name,
		Avatar:        req.Avatar,
		Personality:   req.Personality,
		Traits:        req.Traits,
		Description:   req.Description,
		AvatarGallery: req.AvatarGallery,
	})
	if err != nil {
		h.logger.Error("failed to create personality", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to create personality"})
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// List handles GET /api/personalities
func (h *PersonalityHandler) List(w http.ResponseWriter, r *http.Request) {
	personalities, err := h.db.GetAllPersonalities()
	if err != nil {
		h.logger.Error("failed to list personalities", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get personalities"})
		return
	}

	if personalities == nil {
		personalities = []models.Personality{}
	}
	writeJSON(w, http.StatusOK, personalities)
}

// Get handles GET /api/personalities/{id}
func (h *PersonalityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	p, err := h.db.GetPersonality(id)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Personality not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get personality", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get personality"})
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /api/personalities/{id}
func (h *PersonalityHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req PersonalityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if req.Name == "" || req.Personality == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Name and personality are required"})
		return
	}

	existing, err := h.db.GetPersonality(id)
	if err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Personality not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to get personality", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get personality"})
		return
	}

	// ID and creation time are immutable; the rest is replaced wholesale.
	updated, err := h.db.UpdatePersonality(models.Personality{
		ID:            existing.ID,
		Name:          req.Name,
		Avatar:        req.Avatar,
		Personality:   req.Personality,
		Traits:        req.Traits,
		Description:   req.Description,
		AvatarGallery: req.AvatarGallery,
		CreatedAt:     existing.CreatedAt,
	})
	if err != nil {
		h.logger.Error("failed to update personality", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to update personality"})
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/personalities/{id}
func (h *PersonalityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.db.GetPersonality(id); err == sql.ErrNoRows {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Personality not found"})
		return
	} else if err != nil {
		h.logger.Error("failed to get personality", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to get personality"})
		return
	}

	if err := h.db.DeletePersonality(id); err != nil {
		h.logger.Error("failed to delete personality", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to delete personality"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
