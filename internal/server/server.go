package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/geopix/mosaic/internal/api"
	"github.com/geopix/mosaic/internal/mosaic"
	"github.com/geopix/mosaic/pkg/utm"
)

// Server implements the ServerInterface from the API package
type Server struct {
	startTime time.Time
	version   string
}

// NewServer creates a new server instance
func NewServer(version string) *Server {
	return &Server{
		startTime: time.Now(),
		version:   version,
	}
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("encoding health response", "error", err)
	}
}

// ListDatasets returns the built-in datasets
func (s *Server) ListDatasets(w http.ResponseWriter, r *http.Request) {
	list := api.DatasetList{Datasets: make([]api.DatasetInfo, 0, len(mosaic.Datasets))}
	for _, name := range mosaic.DatasetNames() {
		list.Datasets = append(list.Datasets, datasetInfo(mosaic.Datasets[name]))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(list); err != nil {
		slog.Error("encoding dataset list", "error", err)
	}
}

// GetDataset returns a single built-in dataset by name
func (s *Server) GetDataset(w http.ResponseWriter, r *http.Request, name string) {
	ds, ok := mosaic.Datasets[name]
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, "DATASET_NOT_FOUND",
			fmt.Sprintf("unknown dataset %q", name), nil, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(datasetInfo(ds)); err != nil {
		slog.Error("encoding dataset", "error", err)
	}
}

// CreateMosaic implements the fetch-and-stitch endpoint
func (s *Server) CreateMosaic(w http.ResponseWriter, r *http.Request) {
	// Generate request ID for tracking
	requestID := generateRequestID()

	// Parse request body
	var req api.MosaicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON",
			"Invalid JSON in request body", &requestID, nil)
		return
	}

	// Validate request
	if err := s.validateMosaicRequest(&req); err != nil {
		s.writeValidationErrorResponse(w, err.Error(), &requestID)
		return
	}

	// Convert API request to engine options
	opts := s.convertToMosaicOptions(&req)

	// Run the fetch-and-stitch pipeline
	result, err := mosaic.Run(r.Context(), opts)
	if err != nil {
		s.handleMosaicError(w, err, &requestID)
		return
	}

	// No single tile could be fetched
	if result.Image == nil {
		s.writeTileErrorResponse(w, result, &requestID)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, result.Image); err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Failed to encode image", &requestID, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("writing image response", "error", err)
	}
}

// validateMosaicRequest validates the incoming mosaic request
func (s *Server) validateMosaicRequest(req *api.MosaicRequest) error {
	// Validate region selection
	if req.Dataset != nil && req.Region != nil {
		return fmt.Errorf("dataset and region are mutually exclusive")
	}
	if req.Dataset != nil {
		if _, ok := mosaic.Datasets[*req.Dataset]; !ok {
			return fmt.Errorf("unknown dataset: %s", *req.Dataset)
		}
	}
	if req.Region != nil {
		if req.Region.Zone < 1 || req.Region.Zone > 60 {
			return fmt.Errorf("region.zone must be between 1 and 60")
		}
	}

	// Validate zoom level
	if req.Zoom != nil && (*req.Zoom < 0 || *req.Zoom > 23) {
		return fmt.Errorf("zoom must be between 0 and 23")
	}

	// Validate imagery source
	if req.Source != nil && !mosaic.ImagerySource(*req.Source).Valid() {
		return fmt.Errorf("invalid source: %s", *req.Source)
	}

	// Validate tile URL template
	if req.TileUrl != nil {
		if !strings.Contains(*req.TileUrl, "{z}") ||
			!strings.Contains(*req.TileUrl, "{x}") ||
			!strings.Contains(*req.TileUrl, "{y}") {
			return fmt.Errorf("tile_url must contain {z}, {x}, and {y} placeholders")
		}
	}

	if req.Workers != nil && *req.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	if req.Output != nil {
		if req.Output.MaxWidth != nil && *req.Output.MaxWidth <= 0 {
			return fmt.Errorf("output.max_width must be positive")
		}
		if req.Output.MaxHeight != nil && *req.Output.MaxHeight <= 0 {
			return fmt.Errorf("output.max_height must be positive")
		}
	}

	return nil
}

// convertToMosaicOptions converts the API request to engine options
func (s *Server) convertToMosaicOptions(req *api.MosaicRequest) *mosaic.Options {
	opts := &mosaic.Options{
		Zoom: mosaic.DefaultZoom,
	}

	if req.Dataset != nil {
		opts.Dataset = *req.Dataset
	}
	if req.Region != nil {
		region := &mosaic.Region{
			Zone:       req.Region.Zone,
			UpperLeft:  mosaic.Corner{Easting: req.Region.UpperLeft.Easting, Northing: req.Region.UpperLeft.Northing},
			LowerRight: mosaic.Corner{Easting: req.Region.LowerRight.Easting, Northing: req.Region.LowerRight.Northing},
		}
		if req.Region.South != nil {
			region.South = *req.Region.South
		}
		opts.Region = region
	}

	if req.Zoom != nil {
		opts.Zoom = *req.Zoom
	}
	if req.Source != nil {
		opts.Source = mosaic.ImagerySource(*req.Source)
	}
	if req.TileUrl != nil {
		opts.TileURL = *req.TileUrl
	}
	if req.Workers != nil {
		opts.Workers = *req.Workers
	}

	if req.Output != nil {
		if req.Output.MaxWidth != nil {
			opts.MaxWidth = *req.Output.MaxWidth
		}
		if req.Output.MaxHeight != nil {
			opts.MaxHeight = *req.Output.MaxHeight
		}
	}

	return opts
}

// handleMosaicError maps pipeline errors to HTTP responses
func (s *Server) handleMosaicError(w http.ResponseWriter, err error, requestID *string) {
	// Coordinates outside the UTM zone's validity area
	var domainErr *utm.DomainError
	if errors.As(err, &domainErr) {
		s.writeErrorResponse(w, http.StatusBadRequest, "INVALID_REGION",
			err.Error(), requestID, nil)
		return
	}

	// Check if it's a timeout error
	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "TILE_SERVER_TIMEOUT",
			"Tile server requests timed out", requestID, nil)
		return
	}

	// Generic internal server error
	s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"Internal server error", requestID, nil)
}

// writeTileErrorResponse reports a run in which every tile failed
func (s *Server) writeTileErrorResponse(w http.ResponseWriter, result *mosaic.Result, requestID *string) {
	failedTiles := make([]struct {
		Error      string `json:"error"`
		StatusCode *int   `json:"status_code,omitempty"`
		Url        string `json:"url"`
	}, len(result.Failed))

	for i, ft := range result.Failed {
		failedTiles[i] = struct {
			Error      string `json:"error"`
			StatusCode *int   `json:"status_code,omitempty"`
			Url        string `json:"url"`
		}{
			Error:      ft.Err.Error(),
			StatusCode: ft.StatusCode,
			Url:        ft.URL,
		}
	}

	response := api.TileErrorResponse{
		Error:           "TILE_SERVER_ERROR",
		Message:         "No tiles could be fetched for the requested region",
		FailedTiles:     failedTiles,
		SuccessfulTiles: result.TilesFetched,
		TotalTiles:      result.TilesTotal,
		RequestId:       requestID,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	json.NewEncoder(w).Encode(response)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, message string, requestID *string) {
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []struct {
			Code    *string `json:"code,omitempty"`
			Field   string  `json:"field"`
			Message string  `json:"message"`
		}{
			{
				Field:   "request",
				Message: message,
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(response)
}

// datasetInfo converts a built-in dataset to its API representation
func datasetInfo(ds mosaic.Dataset) api.DatasetInfo {
	return api.DatasetInfo{
		Name:        ds.Name,
		Description: ds.Description,
		Zone:        ds.Region.Zone,
		South:       ds.Region.South,
		UpperLeft:   api.ProjectedPoint{Easting: ds.Region.UpperLeft.Easting, Northing: ds.Region.UpperLeft.Northing},
		LowerRight:  api.ProjectedPoint{Easting: ds.Region.LowerRight.Easting, Northing: ds.Region.LowerRight.Northing},
	}
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
