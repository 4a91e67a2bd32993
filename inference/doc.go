// Package inference provides caller-owned model handles for the tiling engine.
//
// Models are opened through a Loader into a Session, pooled per model by a
// SessionPool, and looked up by name through a Registry that the caller
// creates and closes. The only process-wide state is the ONNX Runtime
// environment, which lives as long as any session opened from a file.
//
// # Quick Start
//
//	reg := inference.NewRegistry(inference.LoadConfig(), logger)
//	defer reg.Close()
//
//	pool, err := reg.Pool("SCUNet-GAN")
//	if err != nil {
//	    return err
//	}
//	out, err := engine.Process(ctx, img, pool.Transform())
//
// # Loaders
//
// Builtin model names (identity, nearest-xN, nearest6d-xN, mean-score) run
// in pure Go. Other names resolve to <INFER_MODEL_DIR>/<name>.onnx and are
// opened by OpenModelFile, which verifies an optional .sha256 sidecar and
// runs the file on ONNX Runtime. The runtime shared library is loaded at
// first use, so a binary built with cgo runs wherever the library can be
// found. Register a Loader to run a name some other way:
//
//	reg.Register("SCUNet-GAN", myLoader)
//
// # Configuration
//
//	INFER_MODEL_DIR=models       # where <name>.onnx files live
//	INFER_MAX_SESSIONS=1         # sessions per model pool (1-64)
//	INFER_TIMEOUT_SECONDS=600    # per-image budget, 0 disables
//	INFER_ORT_LIBRARY=           # ONNX Runtime library; empty searches for libonnxruntime
//
// # Error Handling
//
//   - ErrModelNotFound: model file does not exist
//   - ErrModelCorrupted: checksum mismatch
//   - ErrBackendUnavailable: the ONNX Runtime library cannot be found
//   - ErrRuntimeLoadFailed: the library was found but failed to initialise
//   - ErrModelLoadFailed: the runtime rejected the model file
//   - ErrUnexpectedOutput: output shape cannot be interpreted
//   - ErrPoolClosed, ErrAcquireTimeout: pool lifecycle
//
// # Thread Safety
//
// SessionPool and Registry are safe for concurrent use. Each Session is
// used by one goroutine at a time.
package inference
