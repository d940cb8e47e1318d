package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zombor/bead-tracker/internal/backend"
	"github.com/zombor/bead-tracker/internal/colorcode"
	"github.com/zombor/bead-tracker/internal/legend"
	"github.com/zombor/bead-tracker/internal/scanning"
)

// maxUploadSize leaves room for full-resolution phone photos
const maxUploadSize = int64(50 << 20)

// corsError writes a plain error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes {"error": message}
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// statusFor maps service errors onto HTTP statuses
func statusFor(err error) int {
	var engineErr *legend.EngineError
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, legend.ErrInvalidImage),
		errors.Is(err, ErrInvalidCrop),
		errors.Is(err, ErrInvalidBeadID):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrBeadNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &engineErr), errors.As(err, &statusErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError logs err and writes it with the mapped status
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error(msg, "error", err)
	} else {
		slog.Warn(msg, "error", err)
	}
	jsonError(w, err.Error(), code)
}

// extractionResponse is an Extraction with palette swatches on its colours
type extractionResponse struct {
	*Extraction
	Colors []Color `json:"colors"`
}

func newExtractionResponse(e *Extraction) extractionResponse {
	return extractionResponse{Extraction: e, Colors: Swatches(e.Colors)}
}

type passResponse struct {
	RawText string  `json:"raw_text"`
	Colors  []Color `json:"colors"`
}

type debugResponse struct {
	Colors   []Color      `json:"colors"`
	Normal   passResponse `json:"normal"`
	Inverted passResponse `json:"inverted"`
}

type paletteEntry struct {
	Code      string `json:"code"`
	Hex       string `json:"hex"`
	TextColor string `json:"text_color"`
}

func newPaletteEntry(code string) paletteEntry {
	swatch := Swatch(colorcode.Requirement{Code: code})
	return paletteEntry{Code: code, Hex: swatch.Hex, TextColor: swatch.TextColor}
}

// upload is a parsed multipart legend upload
type upload struct {
	filename    string
	contentType string
	data        []byte
	selection   *Selection
}

// readUpload parses the multipart form shared by the upload and debug
// endpoints. It writes the error response itself and returns nil on failure.
func readUpload(w http.ResponseWriter, r *http.Request) *upload {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, "File is too large. Maximum size is 50MB.", http.StatusRequestEntityTooLarge)
			return nil
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return nil
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file was selected. Please choose a legend image to upload.", http.StatusBadRequest)
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return nil
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = scanning.ContentTypeFromExt(filepath.Ext(header.Filename))
	}

	sel, err := parseSelection(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	return &upload{
		filename:    header.Filename,
		contentType: contentType,
		data:        data,
		selection:   sel,
	}
}

// parseSelection reads the optional crop form fields: crop is "auto" or a
// JSON {x,y,width,height}; displayWidth and displayHeight say the crop was
// drawn over a scaled preview.
func parseSelection(r *http.Request) (*Selection, error) {
	raw := strings.TrimSpace(r.FormValue("crop"))
	if raw == "" {
		return nil, nil
	}
	if strings.EqualFold(raw, "auto") {
		return &Selection{Auto: true}, nil
	}

	sel := &Selection{}
	if err := json.Unmarshal([]byte(raw), &sel.Rect); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCrop, err)
	}

	var err error
	if sel.DisplayWidth, err = formFloat(r, "displayWidth"); err != nil {
		return nil, err
	}
	if sel.DisplayHeight, err = formFloat(r, "displayHeight"); err != nil {
		return nil, err
	}
	return sel, nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number", ErrInvalidCrop, key)
	}
	return v, nil
}

// handleUploadExtraction runs a legend upload through the extractor and stores it
func (s *Server) handleUploadExtraction(w http.ResponseWriter, r *http.Request) {
	up := readUpload(w, r)
	if up == nil {
		return
	}

	extraction, err := s.service.ProcessLegend(r.Context(), up.filename, up.data, up.contentType, up.selection)
	if err != nil {
		writeServiceError(w, "Error processing legend", err)
		return
	}

	writeJSON(w, http.StatusCreated, newExtractionResponse(extraction))
}

// handleDebugExtraction returns both OCR passes without storing anything
func (s *Server) handleDebugExtraction(w http.ResponseWriter, r *http.Request) {
	up := readUpload(w, r)
	if up == nil {
		return
	}

	result, err := s.service.Debug(r.Context(), up.data, up.contentType, up.selection)
	if err != nil {
		writeServiceError(w, "Error debugging legend", err)
		return
	}

	writeJSON(w, http.StatusOK, debugResponse{
		Colors:   Swatches(result.Colors),
		Normal:   passResponse{RawText: result.Normal.RawText, Colors: Swatches(result.Normal.Colors)},
		Inverted: passResponse{RawText: result.Inverted.RawText, Colors: Swatches(result.Inverted.Colors)},
	})
}

// handleListExtractions returns all extractions, newest first
func (s *Server) handleListExtractions(w http.ResponseWriter, r *http.Request) {
	extractions, err := s.service.ListExtractions()
	if err != nil {
		slog.Error("Error listing extractions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]extractionResponse, 0, len(extractions))
	for _, e := range extractions {
		response = append(response, newExtractionResponse(e))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGetExtraction returns a single extraction
func (s *Server) handleGetExtraction(w http.ResponseWriter, r *http.Request) {
	extraction, err := s.service.GetExtraction(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting extraction", err)
		return
	}
	writeJSON(w, http.StatusOK, newExtractionResponse(extraction))
}

// handleGetExtractionFile returns the uploaded legend file
func (s *Server) handleGetExtractionFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetExtractionFile(r.PathValue("id"))
	if err != nil {
		slog.Warn("Error getting extraction file", "error", err)
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	setCORSHeaders(w)
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleUpdateColors replaces the colour list with the user's corrections
func (s *Server) handleUpdateColors(w http.ResponseWriter, r *http.Request) {
	var colors []colorcode.Requirement
	if err := json.NewDecoder(r.Body).Decode(&colors); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	extraction, err := s.service.UpdateColors(r.PathValue("id"), colors)
	if err != nil {
		writeServiceError(w, "Error updating colors", err)
		return
	}
	writeJSON(w, http.StatusOK, newExtractionResponse(extraction))
}

// handleApplyExtraction pushes the colours to a bead project
func (s *Server) handleApplyExtraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BeadID int64 `json:"bead_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	extraction, err := s.service.ApplyToBead(r.Context(), r.PathValue("id"), req.BeadID)
	if err != nil {
		writeServiceError(w, "Error applying extraction", err)
		return
	}
	writeJSON(w, http.StatusOK, newExtractionResponse(extraction))
}

// handleDeleteExtraction deletes an extraction
func (s *Server) handleDeleteExtraction(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteExtraction(r.PathValue("id")); err != nil {
		writeServiceError(w, "Error deleting extraction", err)
		return
	}

	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// handleAdjustCrop applies one drag or nudge to a crop selection
func (s *Server) handleAdjustCrop(w http.ResponseWriter, r *http.Request) {
	var edit CropEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	state, err := AdjustCrop(edit)
	if err != nil {
		writeServiceError(w, "Error adjusting crop", err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleListPalette returns every known colour code with its swatch
func (s *Server) handleListPalette(w http.ResponseWriter, r *http.Request) {
	codes := colorcode.Codes()
	response := make([]paletteEntry, 0, len(codes))
	for _, code := range codes {
		response = append(response, newPaletteEntry(code))
	}
	writeJSON(w, http.StatusOK, response)
}

// handleGetPaletteColor looks up one code; padded and lower-case codes are accepted
func (s *Server) handleGetPaletteColor(w http.ResponseWriter, r *http.Request) {
	entry := newPaletteEntry(colorcode.Normalize(r.PathValue("code")))
	if entry.Hex == "" {
		corsError(w, "Unknown colour code", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
