package types

import "gonum.org/v1/gonum/mat"

// Extractor maps raw states to feature vectors.
// The output dimension is fixed at construction and invariant across calls.
type Extractor interface {
	// InputDim is the flattened state length the extractor expects
	InputDim() int
	// OutputDim is the length of the raw feature vector
	OutputDim() int
	// Encode a batch of states, one row per sample.
	// The result has OutputDim columns.
	Encode(x *mat.Dense) (*mat.Dense, error)
	// Train the extractor on inputs X and targets Y
	Train(x, y *mat.Dense) error
	// Save the weights to a file
	Save(path string) error
}

// ResidualModel scores how much of a dynamics target the current
// features already explain.
type ResidualModel interface {
	// Fit the model on features F and dynamics targets D
	Fit(f, d *mat.Dense) error
	// Predict dynamics from features. The result has the same
	// shape as the D the model was fit on.
	Predict(f *mat.Dense) (*mat.Dense, error)
}
