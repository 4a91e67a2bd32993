//go:build cgo

package inference

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"go_imgutils/tensor"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide. It is created by the first
// session and destroyed when the last one closes.
var ortEnv struct {
	mu      sync.Mutex
	library string
	refs    int
}

func acquireRuntime(library string) error {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	if ortEnv.refs > 0 {
		if ortEnv.library != library {
			return fmt.Errorf("%w: %s is already loaded, cannot also load %s",
				ErrRuntimeLoadFailed, ortEnv.library, library)
		}
		ortEnv.refs++
		return nil
	}

	ort.SetSharedLibraryPath(library)
	if err := ort.InitializeEnvironment(ort.WithLogLevelWarning()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRuntimeLoadFailed, library, err)
	}
	ortEnv.library = library
	ortEnv.refs = 1
	return nil
}

func releaseRuntime() {
	ortEnv.mu.Lock()
	defer ortEnv.mu.Unlock()

	ortEnv.refs--
	if ortEnv.refs == 0 {
		_ = ort.DestroyEnvironment()
		ortEnv.library = ""
	}
}

// onnxSession runs a single-input, single-output float32 model.
type onnxSession struct {
	path    string
	session *ort.DynamicAdvancedSession
	opts    *ort.RunOptions
}

func openONNXSession(library, path string) (Session, error) {
	if err := acquireRuntime(library); err != nil {
		return nil, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		releaseRuntime()
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoadFailed, path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		releaseRuntime()
		return nil, fmt.Errorf("%w: %s declares %d inputs and %d outputs",
			ErrModelLoadFailed, path, len(inputs), len(outputs))
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, nil)
	if err != nil {
		releaseRuntime()
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoadFailed, path, err)
	}
	opts, err := ort.NewRunOptions()
	if err != nil {
		session.Destroy()
		releaseRuntime()
		return nil, fmt.Errorf("%w: run options: %v", ErrModelLoadFailed, err)
	}
	return &onnxSession{path: path, session: session, opts: opts}, nil
}

// Run feeds input as the model's first input. Cancelling ctx terminates
// the run in progress.
func (s *onnxSession) Run(ctx context.Context, input *tensor.Tensor) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	shape := ort.NewShape(int64(input.N), int64(input.C), int64(input.H), int64(input.W))
	in, err := ort.NewTensor(shape, input.Data)
	if err != nil {
		return Output{}, fmt.Errorf("%w: input %v: %v", ErrInferenceFailed, shape, err)
	}
	defer in.Destroy()

	terminated := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = s.opts.Terminate()
		close(terminated)
	})

	outputs := []ort.Value{nil}
	err = s.session.RunWithOptions([]ort.Value{in}, outputs, s.opts)
	if outputs[0] != nil {
		defer outputs[0].Destroy()
	}
	if !stop() {
		<-terminated
		_ = s.opts.UnsetTerminate()
		return Output{}, ctx.Err()
	}
	if err != nil {
		return Output{}, fmt.Errorf("%w: %s: %v", ErrInferenceFailed, s.path, err)
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return Output{}, fmt.Errorf("%w: %s output is %s, want a float32 tensor",
			ErrUnexpectedOutput, s.path, outputs[0].GetONNXType())
	}
	dims := out.GetShape()
	result := Output{Shape: make([]int, len(dims)), Data: slices.Clone(out.GetData())}
	for i, d := range dims {
		result.Shape[i] = int(d)
	}
	return result, nil
}

func (s *onnxSession) Close() error {
	err := s.session.Destroy()
	_ = s.opts.Destroy()
	releaseRuntime()
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
