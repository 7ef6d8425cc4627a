package classification

import (
	"errors"
	"fmt"
	"math"
)

// AlertIndex is the position of the alert class in every Result.
const AlertIndex = 0

// ErrInvalidClassification is returned for malformed feed ticks.
var ErrInvalidClassification = errors.New("invalid classification")

// Prediction is a single class score.
type Prediction struct {
	// Label is the class name as reported by the classifier.
	Label string
	// Confidence is the class probability in [0, 1].
	Confidence float64
}

// Result is one classification tick. Treat it as immutable once produced.
type Result struct {
	// Predictions are ordered as the classifier emits them.
	Predictions []Prediction
}

// Len returns the number of classes in the result.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}

	return len(r.Predictions)
}

// Clone returns a copy that shares no memory with r.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}

	return &Result{
		Predictions: append([]Prediction(nil), r.Predictions...),
	}
}

// Validate checks that r has exactly size classes with confidences in [0, 1].
// A non-positive size only requires a non-empty result.
func (r *Result) Validate(size int) error {
	n := r.Len()
	if n == 0 {
		return fmt.Errorf("%w: no predictions", ErrInvalidClassification)
	}

	if size > 0 && n != size {
		return fmt.Errorf("%w: got %d classes, want %d", ErrInvalidClassification, n, size)
	}

	for i, p := range r.Predictions {
		if math.IsNaN(p.Confidence) || p.Confidence < 0 || p.Confidence > 1 {
			return fmt.Errorf("%w: class %d confidence %v out of range", ErrInvalidClassification, i, p.Confidence)
		}
	}

	return nil
}

// TopIndex returns the index of the highest confidence.
// Ties keep the earliest index. An empty result is invalid input and yields
// ErrInvalidClassification, the same error Validate reports.
func TopIndex(r *Result) (int, error) {
	if r.Len() == 0 {
		return 0, fmt.Errorf("%w: no predictions", ErrInvalidClassification)
	}

	top := 0
	for i := 1; i < len(r.Predictions); i++ {
		if r.Predictions[i].Confidence > r.Predictions[top].Confidence {
			top = i
		}
	}

	return top, nil
}
