package domain

import "context"

// Compiler defines the interface for the opaque per-job task. A nil error
// means the file compiled successfully; any error is a job failure. The
// dispatcher never inspects the error beyond logging it.
type Compiler interface {
	Compile(ctx context.Context, path string) error
}
