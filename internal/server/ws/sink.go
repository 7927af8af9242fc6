package ws

import "axon/internal/engine"

// broadcastSink fans execution events out to every connected client.
type broadcastSink struct {
	hub *Hub
}

// Sink returns a progress sink that broadcasts execution events over the
// hub. Safe to share across executions.
func (h *Hub) Sink() engine.ProgressSink {
	return &broadcastSink{hub: h}
}

func (s *broadcastSink) ExecutionStart(workflowID, executionID string) {
	s.hub.Broadcast(&Event{Type: "execution-start", Payload: map[string]any{
		"workflowId":  workflowID,
		"executionId": executionID,
	}})
}

func (s *broadcastSink) Log(line string) {
	s.hub.Broadcast(&Event{Type: "log", Payload: map[string]any{"line": line}})
}

func (s *broadcastSink) NodeProgress(nodeID, status string, data any) {
	s.hub.Broadcast(&Event{Type: "node-progress", Payload: map[string]any{
		"nodeId": nodeID,
		"status": status,
		"data":   data,
	}})
}

func (s *broadcastSink) ExecutionComplete(workflowID, executionID string, success bool, errMsg string) {
	payload := map[string]any{"workflowId": workflowID, "executionId": executionID, "success": success}
	if errMsg != "" {
		payload["error"] = errMsg
	}
	s.hub.Broadcast(&Event{Type: "execution-complete", Payload: payload})
}
