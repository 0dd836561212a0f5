// Package trace implements the append-only JSONL audit trail of path
// resolutions. Every event carries the hash of the previous line, so a
// trace can be verified after the fact.
package trace

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// EventType enumerates all resolution trace event types.
type EventType string

const (
	EventResolveStart      EventType = "resolve_start"
	EventProducerSelected  EventType = "producer_selected"
	EventWildcardsResolved EventType = "wildcards_resolved"
	EventJobExpanded       EventType = "job_expanded"
	EventResolutionFailed  EventType = "resolution_failed"
	EventResolveComplete   EventType = "resolve_complete"
)

// SigningKeyEnv names the environment variable holding the HMAC key used to
// sign the chain hash of a completed trace.
const SigningKeyEnv = "RULEKIT_TRACE_SIGNING_KEY"

// genesisHash is the prev_hash of the first event.
var genesisHash = strings.Repeat("0", 64)

// Event is a single trace event written to the JSONL stream.
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id"`
	PrevHash  string         `json:"prev_hash"`
	Data      map[string]any `json:"data,omitempty"`
}

// Writer writes trace events to an append-only JSONL stream.
type Writer struct {
	mu       sync.Mutex
	w        io.Writer
	closer   io.Closer
	runID    string
	prevHash string
	now      func() time.Time
}

// NewWriter creates a trace writer that writes to the given io.Writer.
func NewWriter(w io.Writer, runID string) *Writer {
	return &Writer{
		w:        w,
		runID:    runID,
		prevHash: genesisHash,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewFileWriter creates a trace writer that appends to a JSONL file.
func NewFileWriter(path, runID string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	tw := NewWriter(f, runID)
	tw.closer = f
	return tw, nil
}

// RunID returns the run identifier stamped on every event.
func (tw *Writer) RunID() string { return tw.runID }

// Close closes the underlying file, if the writer opened one.
func (tw *Writer) Close() error {
	if tw.closer == nil {
		return nil
	}
	return tw.closer.Close()
}

// Emit writes a single trace event.
func (tw *Writer) Emit(eventType EventType, data map[string]any) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.emitLocked(eventType, data)
}

func (tw *Writer) emitLocked(eventType EventType, data map[string]any) error {
	evt := Event{
		Type:      eventType,
		Timestamp: tw.now(),
		RunID:     tw.runID,
		PrevHash:  tw.prevHash,
		Data:      data,
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	if _, err := tw.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write trace event: %w", err)
	}
	h := sha256.Sum256(line)
	tw.prevHash = hex.EncodeToString(h[:])
	return nil
}

// EmitResolveStart emits a resolve_start event.
func (tw *Writer) EmitResolveStart(workflow string, targets []string) error {
	return tw.Emit(EventResolveStart, map[string]any{
		"workflow": workflow,
		"targets":  targets,
	})
}

// EmitProducerSelected emits a producer_selected event. Candidates lists
// every rule able to produce the path, highest priority first.
func (tw *Writer) EmitProducerSelected(path, rule string, candidates []string) error {
	data := map[string]any{
		"path": path,
		"rule": rule,
	}
	if len(candidates) > 1 {
		data["candidates"] = candidates
	}
	return tw.Emit(EventProducerSelected, data)
}

// EmitWildcardsResolved emits a wildcards_resolved event.
func (tw *Writer) EmitWildcardsResolved(path, rule string, wildcards map[string]string) error {
	return tw.Emit(EventWildcardsResolved, map[string]any{
		"path":      path,
		"rule":      rule,
		"wildcards": wildcards,
	})
}

// EmitJobExpanded emits a job_expanded event carrying the job summary.
func (tw *Writer) EmitJobExpanded(jobID, rule string, summary map[string]any, incomplete bool) error {
	data := map[string]any{
		"job_id": jobID,
		"rule":   rule,
	}
	if summary != nil {
		data["job"] = summary
	}
	if incomplete {
		data["incomplete"] = true
	}
	return tw.Emit(EventJobExpanded, data)
}

// EmitResolutionFailed emits a resolution_failed event.
func (tw *Writer) EmitResolutionFailed(path, kind, message string) error {
	return tw.Emit(EventResolutionFailed, map[string]any{
		"path": path,
		"failure": map[string]any{
			"kind":    kind,
			"message": message,
		},
	})
}

// EmitResolveComplete emits the closing resolve_complete event. It carries
// the chain hash of every preceding event and, when SigningKeyEnv is set,
// an HMAC-SHA256 signature of that hash.
func (tw *Writer) EmitResolveComplete(status string, jobs int, duration time.Duration) error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	data := map[string]any{
		"status":     status,
		"jobs":       jobs,
		"duration":   duration.String(),
		"chain_hash": tw.prevHash,
	}
	if key := os.Getenv(SigningKeyEnv); key != "" {
		data["signature"] = sign(key, tw.prevHash)
		data["signing_key_id"] = keyID(key)
	}
	return tw.emitLocked(EventResolveComplete, data)
}

func sign(key, chainHash string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(chainHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// keyID fingerprints a signing key without revealing it.
func keyID(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:4])
}
