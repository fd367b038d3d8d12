/*
Package events decodes the engine's build event protocol.

The wire format is NDJSON: one complete JSON object per line, each of
the form {"event": "<tag>", "data": {...}}. The same framing is used
by all three delivery strategies — a live response body (direct and
streaming) or a polled buffer holding zero or more lines (polling).

Decoding is two-stage: the frame is unmarshalled with encoding/json,
then the tag-specific payload is mapped onto its typed event with
mapstructure. The second stage absorbs the protocol's polymorphism
(output log entries arrive as a single object or a list; numeric
fields arrive as strings on some engine versions).
*/
package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/langflow-ai/flowbuild/pkg/domain"
)

// maxLineSize bounds one NDJSON record. Build results embed component
// outputs, which can be large.
const maxLineSize = 16 * 1024 * 1024

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeLine parses one NDJSON record into a normalized event.
func DecodeLine(line []byte) (domain.Event, error) {
	var f frame
	if err := json.Unmarshal(line, &f); err != nil {
		return nil, fmt.Errorf("malformed event record: %w", err)
	}
	return decodeFrame(f)
}

func decodeFrame(f frame) (domain.Event, error) {
	switch domain.EventType(f.Event) {
	case domain.EventVerticesSorted:
		var p struct {
			IDs   []string `json:"ids"`
			ToRun []string `json:"to_run"`
		}
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("vertices_sorted payload: %w", err)
		}
		return domain.VerticesSortedEvent{IDs: p.IDs, ToRun: p.ToRun}, nil

	case domain.EventBuildStart:
		id, err := decodeID(f.Data)
		if err != nil {
			return nil, fmt.Errorf("build_start payload: %w", err)
		}
		return domain.VertexStartedEvent{ID: id}, nil

	case domain.EventBuildEnd:
		id, err := decodeID(f.Data)
		if err != nil {
			return nil, fmt.Errorf("build_end payload: %w", err)
		}
		return domain.VertexBuiltEvent{ID: id}, nil

	case domain.EventEndVertex:
		var p struct {
			BuildData map[string]any `json:"build_data"`
		}
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("end_vertex payload: %w", err)
		}
		result, err := DecodeBuildResult(p.BuildData)
		if err != nil {
			return nil, fmt.Errorf("end_vertex build data: %w", err)
		}
		return domain.EndVertexEvent{Result: result}, nil

	case domain.EventAddMessage:
		msg, err := decodeMessage(f.Data)
		if err != nil {
			return nil, fmt.Errorf("add_message payload: %w", err)
		}
		return domain.AddMessageEvent{Message: msg}, nil

	case domain.EventRemoveMessage:
		id, err := decodeID(f.Data)
		if err != nil {
			return nil, fmt.Errorf("remove_message payload: %w", err)
		}
		return domain.RemoveMessageEvent{ID: id}, nil

	case domain.EventToken:
		var p struct {
			ID    string `json:"id"`
			Chunk string `json:"chunk"`
		}
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return nil, fmt.Errorf("token payload: %w", err)
		}
		return domain.TokenEvent{MessageID: p.ID, Chunk: p.Chunk}, nil

	case domain.EventError:
		var raw map[string]any
		if err := json.Unmarshal(f.Data, &raw); err != nil {
			return nil, fmt.Errorf("error payload: %w", err)
		}
		source, _ := raw["source"].(string)
		msg, err := mapMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("error payload: %w", err)
		}
		msg.IsError = true
		return domain.ErrorEvent{Source: source, Message: msg}, nil

	case domain.EventEnd:
		return domain.EndEvent{}, nil

	default:
		return nil, fmt.Errorf("unknown event tag %q", f.Event)
	}
}

func decodeID(data json.RawMessage) (string, error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return "", err
	}
	return p.ID, nil
}

func decodeMessage(data json.RawMessage) (domain.Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Message{}, err
	}
	return mapMessage(raw)
}

func mapMessage(raw map[string]any) (domain.Message, error) {
	var msg domain.Message
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &msg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return domain.Message{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// wireBuildResult mirrors the engine's per-vertex build response. The
// outputs live under data.outputs and are normalized separately
// because each value is either one log entry or a list of them.
type wireBuildResult struct {
	ID           string         `mapstructure:"id"`
	Valid        bool           `mapstructure:"valid"`
	Params       string         `mapstructure:"params"`
	NextVertices []string       `mapstructure:"next_vertices_ids"`
	Inactivated  []string       `mapstructure:"inactivated_vertices"`
	Data         map[string]any `mapstructure:"data"`
	Timedelta    float64        `mapstructure:"timedelta"`
}

// DecodeBuildResult maps a raw per-vertex build response onto a
// VertexBuildResult. Used by both the event decoder (end_vertex) and
// the per-vertex build endpoint of the event-less driver.
func DecodeBuildResult(raw map[string]any) (*domain.VertexBuildResult, error) {
	var wire wireBuildResult
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &wire,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, err
	}
	if wire.ID == "" {
		return nil, fmt.Errorf("build result missing vertex id")
	}

	result := &domain.VertexBuildResult{
		ID:           wire.ID,
		Valid:        wire.Valid,
		Params:       wire.Params,
		NextVertices: wire.NextVertices,
		Inactivated:  wire.Inactivated,
		Duration:     time.Duration(wire.Timedelta * float64(time.Second)),
	}

	outputs, _ := wire.Data["outputs"].(map[string]any)
	if len(outputs) > 0 {
		result.Outputs = make(map[string][]domain.OutputLog, len(outputs))
		for name, value := range outputs {
			logs, err := decodeOutputLogs(value)
			if err != nil {
				return nil, fmt.Errorf("output %q: %w", name, err)
			}
			result.Outputs[name] = logs
		}
	}
	return result, nil
}

func decodeOutputLogs(value any) ([]domain.OutputLog, error) {
	entries, ok := value.([]any)
	if !ok {
		// Single entry on the wire.
		entries = []any{value}
	}
	logs := make([]domain.OutputLog, 0, len(entries))
	for _, e := range entries {
		var l domain.OutputLog
		if err := mapstructure.Decode(e, &l); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// Scanner iterates the events of an NDJSON stream. It tolerates blank
// lines, which polling responses use as keep-alive padding.
type Scanner struct {
	scanner *bufio.Scanner
	err     error
}

// NewScanner wraps a stream of NDJSON event records.
func NewScanner(r io.Reader) *Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Scanner{scanner: sc}
}

// Next returns the next event in the stream. It returns io.EOF once
// the stream is exhausted.
func (s *Scanner) Next() (domain.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return DecodeLine(line)
	}
	if err := s.scanner.Err(); err != nil {
		s.err = err
		return nil, err
	}
	s.err = io.EOF
	return nil, io.EOF
}

// All drains the remaining events of the stream. Used by the polling
// strategy, where each poll returns a complete buffer.
func (s *Scanner) All() ([]domain.Event, error) {
	var out []domain.Event
	for {
		ev, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}
