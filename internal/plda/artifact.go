package plda

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Artifact is the serialised form of a trained PLDA model. Either the
// two-covariance fields (F, Sigma) or the diagonal fields (Transform, Psi) are set.
type Artifact struct {
	Mean          []float64   `json:"mean" msgpack:"mean"`
	F             [][]float64 `json:"F,omitempty" msgpack:"F,omitempty"`
	Sigma         [][]float64 `json:"Sigma,omitempty" msgpack:"Sigma,omitempty"`
	Transform     [][]float64 `json:"transform,omitempty" msgpack:"transform,omitempty"`
	Psi           []float64   `json:"psi,omitempty" msgpack:"psi,omitempty"`
	ScalingFactor float64     `json:"scaling_factor" msgpack:"scaling_factor"`
}

// Format identifies an artifact encoding.
type Format string

// Supported artifact encodings.
const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// FormatFromPath picks the encoding from the file extension; unknown extensions are JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk", ".mp":
		return FormatMsgpack
	default:
		return FormatJSON
	}
}

// Load reads and validates a model artifact. Any failure is fatal for the caller.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read plda artifact: %w", err)
	}
	return Decode(data, FormatFromPath(path))
}

// Decode parses an artifact in the given format and builds the model.
func Decode(data []byte, format Format) (*Model, error) {
	var a Artifact
	var err error
	switch format {
	case FormatMsgpack:
		err = msgpack.Unmarshal(data, &a)
	case FormatJSON:
		err = json.Unmarshal(data, &a)
	default:
		return nil, fmt.Errorf("%w: unknown artifact format %q", ErrInvalidModel, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidModel, format, err)
	}
	return a.Model()
}

// Encode serialises the artifact.
func (a Artifact) Encode(format Format) ([]byte, error) {
	switch format {
	case FormatMsgpack:
		return msgpack.Marshal(a)
	case FormatJSON:
		return json.Marshal(a)
	default:
		return nil, fmt.Errorf("unknown artifact format %q", format)
	}
}

// Model builds a scoring model from the artifact.
func (a Artifact) Model() (*Model, error) {
	scale := a.ScalingFactor
	if scale == 0 {
		scale = 1
	}
	switch {
	case len(a.Transform) > 0 || len(a.Psi) > 0:
		return NewDiagonal(a.Mean, a.Transform, a.Psi, scale)
	case len(a.F) > 0 || len(a.Sigma) > 0:
		return NewTwoCovariance(a.Mean, a.F, a.Sigma, scale)
	default:
		return nil, fmt.Errorf("%w: artifact has neither two-covariance nor diagonal parameters", ErrInvalidModel)
	}
}
