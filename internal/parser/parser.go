// Package parser defines the interface format readers implement.
package parser

import (
	"io"

	"cyberetl/internal/dataset"
)

// Parser turns a byte stream into a named dataset, reporting how many input
// rows it had to skip.
type Parser interface {
	Parse(r io.Reader, name string) (*dataset.Dataset, int, error)
}
