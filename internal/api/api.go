// Package api defines the request and response types of the mosaic
// HTTP API together with the chi routing glue that dispatches requests
// to a ServerInterface implementation.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// HealthResponseStatus reports the service state.
type HealthResponseStatus string

const (
	Healthy HealthResponseStatus = "healthy"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    HealthResponseStatus `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Uptime    *int                 `json:"uptime,omitempty"`
	Version   *string              `json:"version,omitempty"`
}

// ProjectedPoint is a position in projected UTM coordinates, in meters.
type ProjectedPoint struct {
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
}

// ProjectedRegion is a rectangular area given by two opposite corners
// in a single UTM zone. South marks the southern hemisphere.
type ProjectedRegion struct {
	Zone       int            `json:"zone"`
	South      *bool          `json:"south,omitempty"`
	UpperLeft  ProjectedPoint `json:"upper_left"`
	LowerRight ProjectedPoint `json:"lower_right"`
}

// OutputOptions caps the dimensions of the returned image.
type OutputOptions struct {
	MaxWidth  *int `json:"max_width,omitempty"`
	MaxHeight *int `json:"max_height,omitempty"`
}

// MosaicRequest is the body of POST /mosaic. Dataset and Region are
// mutually exclusive; both absent selects the default dataset.
type MosaicRequest struct {
	Dataset *string          `json:"dataset,omitempty"`
	Region  *ProjectedRegion `json:"region,omitempty"`

	Zoom   *int    `json:"zoom,omitempty"`
	Source *string `json:"source,omitempty"`

	// TileUrl overrides the imagery layer's tile URL template.
	TileUrl *string `json:"tile_url,omitempty"`

	Workers *int           `json:"workers,omitempty"`
	Output  *OutputOptions `json:"output,omitempty"`
}

// DatasetInfo describes one built-in dataset.
type DatasetInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Zone        int            `json:"zone"`
	South       bool           `json:"south"`
	UpperLeft   ProjectedPoint `json:"upper_left"`
	LowerRight  ProjectedPoint `json:"lower_right"`
}

// DatasetList is the body of GET /datasets.
type DatasetList struct {
	Datasets []DatasetInfo `json:"datasets"`
}

// ErrorResponse is the generic error body.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Message   string                  `json:"message"`
	RequestId *string                 `json:"request_id,omitempty"`
	Details   *map[string]interface{} `json:"details,omitempty"`
}

// ValidationErrorResponseError is the fixed error code of validation
// failures.
type ValidationErrorResponseError string

const (
	VALIDATIONERROR ValidationErrorResponseError = "VALIDATION_ERROR"
)

// ValidationErrorResponse is returned for malformed request bodies.
type ValidationErrorResponse struct {
	Error            ValidationErrorResponseError `json:"error"`
	Message          string                       `json:"message"`
	RequestId        *string                      `json:"request_id,omitempty"`
	ValidationErrors []struct {
		Code    *string `json:"code,omitempty"`
		Field   string  `json:"field"`
		Message string  `json:"message"`
	} `json:"validation_errors"`
}

// TileErrorResponse is returned when no tile of the requested region
// could be fetched.
type TileErrorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	FailedTiles []struct {
		Error      string `json:"error"`
		StatusCode *int   `json:"status_code,omitempty"`
		Url        string `json:"url"`
	} `json:"failed_tiles"`
	SuccessfulTiles int     `json:"successful_tiles"`
	TotalTiles      int     `json:"total_tiles"`
	RequestId       *string `json:"request_id,omitempty"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Create a stitched mosaic image
	// (POST /mosaic)
	CreateMosaic(w http.ResponseWriter, r *http.Request)
	// Get one built-in dataset
	// (GET /datasets/{name})
	GetDataset(w http.ResponseWriter, r *http.Request, name string)
	// Health check
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// List built-in datasets
	// (GET /datasets)
	ListDatasets(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// CreateMosaic operation middleware
func (siw *ServerInterfaceWrapper) CreateMosaic(w http.ResponseWriter, r *http.Request) {
	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CreateMosaic(w, r)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// GetDataset operation middleware
func (siw *ServerInterfaceWrapper) GetDataset(w http.ResponseWriter, r *http.Request) {
	var err error

	// ------------- Path parameter "name" -------------
	var name string

	err = runtime.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name, runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "name", Err: err})
		return
	}

	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetDataset(w, r, name)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetHealth(w, r)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// ListDatasets operation middleware
func (siw *ServerInterfaceWrapper) ListDatasets(w http.ResponseWriter, r *http.Request) {
	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.ListDatasets(w, r)
	}))

	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

// InvalidParamFormatError is passed to the error handler when a path
// parameter cannot be bound.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %v", e.ParamName, e.Err)
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// Handler creates http.Handler with routing matching OpenAPI spec.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching OpenAPI
// spec based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/mosaic", wrapper.CreateMosaic)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/datasets", wrapper.ListDatasets)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/datasets/{name}", wrapper.GetDataset)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})

	return r
}
