package inference

import (
	"context"
	"fmt"

	"go_imgutils/tensor"
)

// Session is one loaded model instance. A Session is used by a single
// goroutine at a time; SessionPool hands them out.
type Session interface {
	// Run executes the model on input and returns its first output.
	Run(ctx context.Context, input *tensor.Tensor) (Output, error)
	// Close releases the model's resources.
	Close() error
}

// Loader opens a Session for the model stored at path.
type Loader func(path string) (Session, error)

// Output is a raw model result: a flat buffer and its shape, which may have
// any rank.
type Output struct {
	Shape []int
	Data  []float32
}

// Len returns the element count implied by Shape.
func (o Output) Len() int {
	n := 1
	for _, d := range o.Shape {
		n *= d
	}
	return n
}

// Tensor interprets a rank-4 output as an NCHW tensor sharing Data.
func (o Output) Tensor() (*tensor.Tensor, error) {
	if len(o.Shape) != 4 {
		return nil, fmt.Errorf("%w: rank %d %v, want 4", ErrUnexpectedOutput, len(o.Shape), o.Shape)
	}
	t, err := tensor.FromData(o.Shape[0], o.Shape[1], o.Shape[2], o.Shape[3], o.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedOutput, err)
	}
	return t, nil
}

// Reshape reinterprets the buffer as (n, c, h, w) without moving data.
func (o Output) Reshape(n, c, h, w int) (*tensor.Tensor, error) {
	if o.Len() != n*c*h*w {
		return nil, fmt.Errorf("%w: cannot reshape %v to (%d, %d, %d, %d)",
			ErrUnexpectedOutput, o.Shape, n, c, h, w)
	}
	t, err := tensor.FromData(n, c, h, w, o.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedOutput, err)
	}
	return t, nil
}

// OutputOf wraps a tensor as a rank-4 Output.
func OutputOf(t *tensor.Tensor) Output {
	return Output{Shape: []int{t.N, t.C, t.H, t.W}, Data: t.Data}
}
