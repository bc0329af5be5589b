package model

import (
	"fmt"
	"strings"

	"go-instance-catalog/pkg/utils"
)

// Bound types for the field of view
const (
	BoundCircle = "circle"
	BoundBox    = "box"
)

// ObservationContext describes where and when the telescope is looking.
// It is fixed for a catalog run and read-only during resolution.
type ObservationContext struct {
	PointingRA  float64 `json:"pointingRA"`  // degrees
	PointingDec float64 `json:"pointingDec"` // degrees
	BoundType   string  `json:"boundType"`   // circle or box
	BoundLength float64 `json:"boundLength"` // degrees; radius for circle, half-width for box
	MJD         float64 `json:"mjd"`         // epoch of observation
}

// Validate checks the field of view definition
func (o ObservationContext) Validate() error {
	switch strings.ToLower(o.BoundType) {
	case BoundCircle, BoundBox:
	default:
		return fmt.Errorf("unknown bound type %q (want circle or box)", o.BoundType)
	}
	if o.BoundLength <= 0 {
		return fmt.Errorf("bound length must be positive, got %v", o.BoundLength)
	}
	if o.PointingDec < -90 || o.PointingDec > 90 {
		return fmt.Errorf("pointing dec %v out of range", o.PointingDec)
	}
	return nil
}

// Contains reports whether a position (degrees) lies inside the field of view.
func (o ObservationContext) Contains(raDeg, decDeg float64) bool {
	if strings.ToLower(o.BoundType) == BoundBox {
		dRA := utils.WrapDegrees(raDeg - o.PointingRA)
		return dRA >= -o.BoundLength && dRA <= o.BoundLength &&
			decDeg >= o.PointingDec-o.BoundLength && decDeg <= o.PointingDec+o.BoundLength
	}
	return utils.AngularSeparation(o.PointingRA, o.PointingDec, raDeg, decDeg) <= o.BoundLength
}

// ErrorPolicy says what a resolver worker does with a row that fails.
type ErrorPolicy string

const (
	// PolicySkip drops the failing row and keeps resolving the batch.
	PolicySkip ErrorPolicy = "skip"
	// PolicyAbort stops the remaining rows of the failing batch.
	PolicyAbort ErrorPolicy = "abort"
)

// Source represents the raw record source of a catalog job
type Source struct {
	Type      string `json:"type"`                // sqlite, postgres, csv, json
	URL       string `json:"url"`                 // DSN, file path or http URL
	Table     string `json:"table,omitempty"`     // SQL sources only
	IDColumn  string `json:"idColumn,omitempty"`  // defaults to "id"
	RAColumn  string `json:"raColumn,omitempty"`  // degrees, defaults to "ra"
	DecColumn string `json:"decColumn,omitempty"` // degrees, defaults to "decl"
}

// LightCurveConfig tells where tabulated light curves live
type LightCurveConfig struct {
	Dir string `json:"dir,omitempty"` // directory of text light curves
	DB  string `json:"db,omitempty"`  // sqlite file with a light_curves table
}

// Export defines export targets
type Export struct {
	File      string `json:"file"`                // .csv/.txt (text catalog) or .json
	DB        string `json:"db"`                  // sqlite file
	Table     string `json:"table,omitempty"`     // table for DB exports
	Delimiter string `json:"delimiter,omitempty"` // text catalogs, defaults to ", "
	BatchSize int    `json:"batchSize"`           // rows per DB transaction
}

// Workers defines number of workers per stage
type Workers struct {
	Validation int `json:"validation"`
	Resolve    int `json:"resolve"`
}

// ConcurrencyConfig defines extra concurrency and job options
type ConcurrencyConfig struct {
	Workers           Workers `json:"workers"`
	BatchSize         int     `json:"batchSize"` // rows per resolution batch
	ChannelBufferSize int     `json:"channelBufferSize"`
	JobTimeout        string  `json:"jobTimeout"` // e.g., "5m"
	SourceRetry       int     `json:"sourceRetry"`
}

// CatalogJobSpec defines a full catalog generation run
type CatalogJobSpec struct {
	Catalog         string             `json:"catalog"` // stars, galaxies
	Source          Source             `json:"source"`
	Observation     ObservationContext `json:"observation"`
	Columns         []string           `json:"columns,omitempty"`         // defaults to the catalog's columns
	Transformations map[string]string  `json:"transformations,omitempty"` // column -> transform name
	LightCurves     LightCurveConfig   `json:"lightCurves"`
	OnError         ErrorPolicy        `json:"onError,omitempty"`
	Export          *Export            `json:"export,omitempty"`
	Concurrency     ConcurrencyConfig  `json:"concurrency"`
	Logging         bool               `json:"logging"`
}

// ApplyDefaults fills in unset options
func (j *CatalogJobSpec) ApplyDefaults() {
	if j.Catalog == "" {
		j.Catalog = "stars"
	}
	if j.Source.IDColumn == "" {
		j.Source.IDColumn = "id"
	}
	if j.Source.RAColumn == "" {
		j.Source.RAColumn = "ra"
	}
	if j.Source.DecColumn == "" {
		j.Source.DecColumn = "decl"
	}
	if j.OnError == "" {
		j.OnError = PolicySkip
	}
	if j.Observation.BoundType == "" {
		j.Observation.BoundType = BoundCircle
	}
	if j.Concurrency.BatchSize <= 0 {
		j.Concurrency.BatchSize = 500
	}
	if j.Concurrency.ChannelBufferSize <= 0 {
		j.Concurrency.ChannelBufferSize = 100
	}
	if j.Concurrency.Workers.Validation <= 0 {
		j.Concurrency.Workers.Validation = 2
	}
	if j.Concurrency.Workers.Resolve <= 0 {
		j.Concurrency.Workers.Resolve = 4
	}
	if j.Concurrency.SourceRetry <= 0 {
		j.Concurrency.SourceRetry = 3
	}
	if j.Export != nil {
		if j.Export.Table == "" {
			j.Export.Table = j.Catalog
		}
		if j.Export.Delimiter == "" {
			j.Export.Delimiter = ", "
		}
		if j.Export.BatchSize <= 0 {
			j.Export.BatchSize = 1000
		}
	}
}

// SourceRetryConfig is the retry policy for opening and reading the source
func (j *CatalogJobSpec) SourceRetryConfig() RetryConfig {
	cfg := DefaultSourceRetry
	cfg.MaxRetries = j.Concurrency.SourceRetry
	return cfg
}

// Validate checks the job before it is started
func (j *CatalogJobSpec) Validate() error {
	if j.Source.URL == "" {
		return fmt.Errorf("source url is required")
	}
	if j.Export != nil && j.Export.File == "" && j.Export.DB == "" {
		return fmt.Errorf("export needs a file or a db target")
	}
	switch j.OnError {
	case PolicySkip, PolicyAbort:
	default:
		return fmt.Errorf("unknown error policy %q", j.OnError)
	}
	return j.Observation.Validate()
}
