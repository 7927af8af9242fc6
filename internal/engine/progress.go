package engine

// Node progress statuses emitted through the sink.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
	StatusOutput   = "output"
)

// ProgressSink observes the ordered event stream of one execution. The
// executionID is unique per run, so observers can correlate the start and
// complete events of overlapping executions of the same workflow. The engine
// never awaits a sink; implementations must not block.
type ProgressSink interface {
	ExecutionStart(workflowID, executionID string)
	Log(line string)
	NodeProgress(nodeID, status string, data any)
	ExecutionComplete(workflowID, executionID string, success bool, errMsg string)
}

type nopSink struct{}

func (nopSink) ExecutionStart(string, string)                  {}
func (nopSink) Log(string)                                     {}
func (nopSink) NodeProgress(string, string, any)               {}
func (nopSink) ExecutionComplete(string, string, bool, string) {}

func orNop(sink ProgressSink) ProgressSink {
	if sink == nil {
		return nopSink{}
	}
	return sink
}
