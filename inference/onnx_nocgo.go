//go:build !cgo

package inference

import "fmt"

func openONNXSession(library, path string) (Session, error) {
	return nil, fmt.Errorf("%w: built without cgo, cannot load %s for %s",
		ErrBackendUnavailable, library, path)
}
