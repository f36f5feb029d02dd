package domain

// Job is one unit of compilation work: the path of a Python source file as it
// appeared on the input stream. The path is opaque to the dispatcher and is
// immutable once read.
type Job struct {
	// ExecutionID correlates logs and traces for this job across components.
	ExecutionID string
	// Path names the source file to compile.
	Path string
}

// Result is the outcome of a single job, delivered by the worker pool when
// the job's compilation finishes.
type Result struct {
	Job     Job
	Success bool
}
