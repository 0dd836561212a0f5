package trace

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SignatureState describes the signature found on a completed trace.
type SignatureState string

const (
	SignatureAbsent    SignatureState = "absent"
	SignatureValid     SignatureState = "valid"
	SignatureInvalid   SignatureState = "invalid"
	SignatureUnchecked SignatureState = "unchecked" // signed, but SigningKeyEnv is unset
)

// Failure is a resolution_failed event found in a trace.
type Failure struct {
	Path    string `json:"path,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Report summarizes a verified resolution trace.
type Report struct {
	RunID    string `json:"run_id,omitempty"`
	Workflow string `json:"workflow,omitempty"`
	Events   int    `json:"events"`

	// Intact is false when the hash chain breaks; BrokenAt then holds the
	// 1-based line of the first bad event.
	Intact   bool   `json:"intact"`
	BrokenAt int    `json:"broken_at,omitempty"`
	Problem  string `json:"problem,omitempty"`

	Jobs     int       `json:"jobs"`
	Failures []Failure `json:"failures,omitempty"`

	// Complete reports whether the trace ends with resolve_complete.
	Complete bool   `json:"complete"`
	Status   string `json:"status,omitempty"`

	ChainHash    string         `json:"chain_hash,omitempty"`
	Signature    SignatureState `json:"signature"`
	SigningKeyID string         `json:"signing_key_id,omitempty"`
}

// VerifyFile verifies the trace stored at path.
func VerifyFile(path string) (*Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	defer f.Close()
	return Verify(f)
}

// Verify walks a trace, checking that every event chains to its
// predecessor and belongs to the same run, and that the closing
// resolve_complete event carries the final chain hash and a valid signature.
// A broken trace is reported, not returned as an error.
func Verify(r io.Reader) (*Report, error) {
	rep := &Report{Intact: true, Signature: SignatureAbsent}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	prev := genesisHash
	var last Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rep.Events++

		var evt Event
		if err := json.Unmarshal(line, &evt); err != nil {
			return rep.broken("invalid JSON: %v", err), nil
		}
		if evt.PrevHash != prev {
			return rep.broken("prev_hash mismatch (expected %s, got %s)", abbrev(prev), abbrev(evt.PrevHash)), nil
		}
		if rep.Events == 1 {
			rep.RunID = evt.RunID
		} else if evt.RunID != rep.RunID {
			return rep.broken("event of run %q in a trace of run %q", evt.RunID, rep.RunID), nil
		}
		h := sha256.Sum256(line)
		prev = hex.EncodeToString(h[:])

		rep.record(evt)
		last = evt
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}

	if last.Type != EventResolveComplete {
		return rep, nil
	}
	rep.Complete = true
	rep.Status, _ = last.Data["status"].(string)
	rep.ChainHash, _ = last.Data["chain_hash"].(string)
	if rep.ChainHash != last.PrevHash {
		return rep.broken("chain_hash of resolve_complete does not match its prev_hash"), nil
	}
	sig, ok := last.Data["signature"].(string)
	if !ok {
		return rep, nil
	}
	rep.SigningKeyID, _ = last.Data["signing_key_id"].(string)
	switch key := os.Getenv(SigningKeyEnv); {
	case key == "":
		rep.Signature = SignatureUnchecked
	case hmac.Equal([]byte(sig), []byte(sign(key, rep.ChainHash))):
		rep.Signature = SignatureValid
	default:
		rep.Signature = SignatureInvalid
	}
	return rep, nil
}

// record folds the resolution content of an event into the report.
func (rep *Report) record(evt Event) {
	switch evt.Type {
	case EventResolveStart:
		rep.Workflow, _ = evt.Data["workflow"].(string)
	case EventJobExpanded:
		rep.Jobs++
	case EventResolutionFailed:
		f := Failure{}
		f.Path, _ = evt.Data["path"].(string)
		if m, ok := evt.Data["failure"].(map[string]any); ok {
			f.Kind, _ = m["kind"].(string)
			f.Message, _ = m["message"].(string)
		}
		rep.Failures = append(rep.Failures, f)
	}
}

func (rep *Report) broken(format string, args ...any) *Report {
	rep.Intact = false
	rep.BrokenAt = rep.Events
	rep.Problem = fmt.Sprintf("event %d: ", rep.Events) + fmt.Sprintf(format, args...)
	return rep
}

func abbrev(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16] + "..."
}
