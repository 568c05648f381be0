package macro

import (
	"bytes"
	_ "embed"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
	"github.com/bytedance/sonic"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed macro.schema.json
var schemaJSON []byte

const schemaURL = "loopmacro://macro.schema.json"

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile(schemaURL)
	})
	return schema, schemaErr
}

// wireEvent is the on-disk event shape.
type wireEvent struct {
	Type        string      `json:"type"`
	Event       string      `json:"event"`
	EventType   string      `json:"event_type"`
	Time        float64     `json:"time"`
	PressedKeys []string    `json:"pressed_keys"`
	Position    *geom.Point `json:"position"`
}

func toSeconds(d time.Duration) float64 {
	return float64(d.Milliseconds()) / 1000
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

// Marshal encodes the events of l as an indented JSON array.
func Marshal(l *Log) ([]byte, error) {
	wire := make([]wireEvent, 0, l.Len())
	for _, ev := range l.Events {
		keys := make([]string, len(ev.ActiveKeys))
		for i, k := range ev.ActiveKeys {
			keys[i] = string(k)
		}
		kind := ev.Kind
		if kind == "" {
			kind = KindKeyboard
		}
		wire = append(wire, wireEvent{
			Type:        kind,
			Event:       string(ev.Key),
			EventType:   ev.Edge.String(),
			Time:        toSeconds(ev.Time),
			PressedKeys: keys,
			Position:    ev.Position,
		})
	}
	return sonic.ConfigStd.MarshalIndent(wire, "", "  ")
}

// Unmarshal validates data against the macro schema and decodes it.
func Unmarshal(data []byte) (*Log, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile macro schema: %w", err)
	}

	var doc any
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLog, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLog, err)
	}

	var wire []wireEvent
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLog, err)
	}

	l := &Log{Events: make([]InputEvent, 0, len(wire))}
	for i, w := range wire {
		edge, err := ParseEdge(w.EventType)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		var active []keymap.Key
		if len(w.PressedKeys) > 0 {
			active = make([]keymap.Key, len(w.PressedKeys))
			for j, k := range w.PressedKeys {
				active[j] = keymap.Key(k)
			}
		}
		ev := InputEvent{
			Kind:       w.Type,
			Key:        keymap.Key(w.Event),
			Edge:       edge,
			Time:       fromSeconds(w.Time),
			ActiveKeys: active,
			Position:   w.Position,
		}
		if err := l.Append(ev); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return l, nil
}
