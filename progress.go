package strm

// ProgressEvent represents a progress update during read, save, or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// EntriesDone is the number of entries completed.
	EntriesDone int

	// EntriesTotal is the total number of entries.
	// Zero indicates the total is unknown (e.g., while reading).
	EntriesTotal int

	// BytesDone is the number of bytes read or written so far.
	BytesDone int64
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages.
const (
	// StageReading indicates entries are being parsed.
	StageReading ProgressStage = iota

	// StageCompressing indicates an entry payload is being encoded.
	StageCompressing

	// StageWriting indicates an entry has been written.
	StageWriting

	// StageExtracting indicates an entry is being written as a loose file.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageReading:
		return "reading"
	case StageCompressing:
		return "compressing"
	case StageWriting:
		return "writing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. Calls are made from the goroutine
// running the operation.
type ProgressFunc func(ProgressEvent)

func emit(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}
