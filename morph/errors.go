package morph

import "errors"

var (
	// ErrMissingShadow reports a restore attempt on a record that carries no
	// shadow extension.
	ErrMissingShadow = errors.New("morph: record carries no shadow extension")

	// ErrRepresentationMismatch reports a restore attempt against a
	// representation other than the one the shadow was sealed from.
	ErrRepresentationMismatch = errors.New("morph: representation mismatch")
)
