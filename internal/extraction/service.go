// Package extraction keeps a history of processed legends and serves it over HTTP.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/bead-tracker/internal/backend"
	"github.com/zombor/bead-tracker/internal/colorcode"
	"github.com/zombor/bead-tracker/internal/legend"
)

var (
	// ErrBackendUnavailable is returned by ApplyToBead when no tracker is configured
	ErrBackendUnavailable = errors.New("project tracker not configured")
	// ErrInvalidBeadID is returned for a non-positive bead ID
	ErrInvalidBeadID = errors.New("invalid bead id")
	// ErrBeadNotFound is returned when the tracker has no such bead
	ErrBeadNotFound = errors.New("bead not found")
)

// Extractor reads the colour legend out of an image
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (*legend.Result, error)
}

// Backend is the part of the project tracker used to apply results
type Backend interface {
	GetBead(ctx context.Context, beadID int64) (*backend.Bead, error)
	SaveRequiredColors(ctx context.Context, beadID int64, colors []colorcode.Requirement) (*backend.Bead, error)
}

// IDGenerator generates unique IDs for extractions
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service handles extraction operations
type Service struct {
	db          DB
	extractor   Extractor
	storage     Storage
	backend     Backend
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service. tracker may be nil, in which case
// ApplyToBead fails with ErrBackendUnavailable.
func NewService(db DB, extractor Extractor, storage Storage, tracker Backend) *Service {
	return NewServiceWithDeps(db, extractor, storage, tracker, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor Extractor, storage Storage, tracker Backend, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		backend:     tracker,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename strips phone-camera noise from an upload name
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "legend"
	}
	return base + ext
}

// read decodes the upload and applies the selection
func (s *Service) read(data []byte, contentType string, sel *Selection) (image.Image, *image.Rectangle, error) {
	img, err := legend.Decode(data, contentType)
	if err != nil {
		return nil, nil, err
	}

	rect, ok, err := sel.resolve(img.Bounds())
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return img, nil, nil
	}

	cropped, err := legend.Crop(img, rect)
	if err != nil {
		return nil, nil, err
	}
	return cropped, &rect, nil
}

// ProcessLegend reads the colour list from an uploaded legend image and
// records it. Nothing is stored when extraction fails.
func (s *Service) ProcessLegend(ctx context.Context, filename string, data []byte, contentType string, sel *Selection) (*Extraction, error) {
	img, rect, err := s.read(data, contentType, sel)
	if err != nil {
		return nil, err
	}

	result, err := s.extractor.Extract(ctx, img)
	if err != nil {
		slog.Error("Failed to extract legend",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("extracting legend: %w", err)
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedName, err := s.storage.Save(fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)), data)
	if err != nil {
		return nil, fmt.Errorf("saving file: %w", err)
	}

	extraction := &Extraction{
		ID:          id,
		Filename:    savedName,
		ContentType: contentType,
		Crop:        rect,
		Colors:      result.Colors,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.SaveExtraction(extraction); err != nil {
		if delErr := s.storage.Delete(savedName); delErr != nil {
			slog.Warn("Failed to clean up file", "filename", savedName, "error", delErr)
		}
		return nil, fmt.Errorf("saving extraction to database: %w", err)
	}

	slog.Info("Legend extracted", "id", id, "filename", filename, "colors", len(extraction.Colors))
	return extraction, nil
}

// Debug runs the pipeline without storing anything and returns both raw passes.
func (s *Service) Debug(ctx context.Context, data []byte, contentType string, sel *Selection) (*legend.Result, error) {
	img, _, err := s.read(data, contentType, sel)
	if err != nil {
		return nil, err
	}
	result, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("extracting legend: %w", err)
	}
	return result, nil
}

// GetExtraction retrieves an extraction by ID
func (s *Service) GetExtraction(id string) (*Extraction, error) {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}
	return extraction, nil
}

// ListExtractions returns all extractions, newest first
func (s *Service) ListExtractions() ([]*Extraction, error) {
	extractions, err := s.db.ListExtractions()
	if err != nil {
		return nil, fmt.Errorf("listing extractions: %w", err)
	}
	sort.SliceStable(extractions, func(i, j int) bool {
		return extractions[i].CreatedAt.After(extractions[j].CreatedAt)
	})
	return extractions, nil
}

// GetExtractionFile returns the uploaded file and its content type
func (s *Service) GetExtractionFile(id string) ([]byte, string, error) {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting extraction: %w", err)
	}

	data, err := s.storage.Get(extraction.Filename)
	if err != nil {
		return nil, "", fmt.Errorf("getting extraction file: %w", err)
	}
	return data, extraction.ContentType, nil
}

// UpdateColors replaces the colour list with a user-corrected one. Codes are
// normalized, entries that are not codes or have no beads are dropped and
// repeated codes are folded together.
func (s *Service) UpdateColors(id string, colors []colorcode.Requirement) (*Extraction, error) {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}

	cleaned := make([]colorcode.Requirement, 0, len(colors))
	for _, c := range colors {
		code := colorcode.Normalize(c.Code)
		if !colorcode.IsCode(code) || c.Quantity <= 0 {
			slog.Debug("Dropping colour edit", "code", c.Code, "quantity", c.Quantity)
			continue
		}
		cleaned = append(cleaned, colorcode.Requirement{Code: code, Quantity: c.Quantity})
	}

	extraction.Colors = legend.Merge(cleaned, nil)
	extraction.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveExtraction(extraction); err != nil {
		return nil, fmt.Errorf("saving extraction: %w", err)
	}
	return extraction, nil
}

// DeleteExtraction removes an extraction and its file
func (s *Service) DeleteExtraction(id string) error {
	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return fmt.Errorf("getting extraction for deletion: %w", err)
	}

	if err := s.storage.Delete(extraction.Filename); err != nil {
		// the record still goes
		slog.Warn("Failed to delete file", "filename", extraction.Filename, "error", err)
	}

	if err := s.db.DeleteExtraction(id); err != nil {
		return fmt.Errorf("deleting extraction from database: %w", err)
	}
	return nil
}

// ApplyToBead sends the colour list to a bead project in the tracker and
// records where it went. The bead must already exist.
func (s *Service) ApplyToBead(ctx context.Context, id string, beadID int64) (*Extraction, error) {
	if s.backend == nil {
		return nil, ErrBackendUnavailable
	}
	if beadID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBeadID, beadID)
	}

	extraction, err := s.db.GetExtraction(id)
	if err != nil {
		return nil, fmt.Errorf("getting extraction: %w", err)
	}

	// a missing bead is reported as such rather than as a failed write
	bead, err := s.backend.GetBead(ctx, beadID)
	if err != nil {
		var statusErr *backend.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %d", ErrBeadNotFound, beadID)
		}
		return nil, fmt.Errorf("looking up bead %d: %w", beadID, err)
	}

	if _, err := s.backend.SaveRequiredColors(ctx, beadID, extraction.Colors); err != nil {
		return nil, fmt.Errorf("applying extraction %s: %w", id, err)
	}

	now := s.timeSource.Now()
	extraction.BeadID = beadID
	extraction.AppliedAt = &now
	extraction.UpdatedAt = now
	if err := s.db.SaveExtraction(extraction); err != nil {
		return nil, fmt.Errorf("saving extraction: %w", err)
	}

	slog.Info("Applied extraction to bead", "id", id, "bead_id", beadID, "bead", bead.Name, "colors", len(extraction.Colors))
	return extraction, nil
}
