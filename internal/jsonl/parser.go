package jsonl

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"

	"subtoolkit/internal/events"
)

//go:embed schema/event.schema.json
var eventSchemaJSON []byte

//go:embed schema/event.strict.schema.json
var strictSchemaJSON []byte

var (
	lenientSchema = sync.OnceValue(func() *jsonschema.Schema {
		return mustCompile("event.schema.json", eventSchemaJSON)
	})
	strictSchema = sync.OnceValue(func() *jsonschema.Schema {
		return mustCompile("event.strict.schema.json", strictSchemaJSON)
	})
)

func mustCompile(name string, raw []byte) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("jsonl: decode embedded schema %s: %v", name, err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("jsonl: add schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// Parse failure reasons without a variable part.
const (
	ReasonInvalidEncoding = "invalid encoding"
	ReasonNotObject       = "not a JSON object"
	ReasonProgressType    = "progress must be an integer"
)

// rawPreviewBytes bounds how much of an oversized line is kept for diagnostics.
const rawPreviewBytes = 1024

// Stats counts parser activity over the lifetime of a Parser.
type Stats struct {
	LinesProcessed int
	EventsParsed   int
	ParseErrors    int
	OversizedLines int
}

// SuccessRate returns the percentage of processed lines that became events.
func (s Stats) SuccessRate() float64 {
	if s.LinesProcessed == 0 {
		return 0
	}
	return float64(s.EventsParsed) / float64(s.LinesProcessed) * 100
}

// Parser turns framed lines into events or parse errors. A Parser keeps
// statistics and is not safe for concurrent use.
type Parser struct {
	strict       bool
	maxLineBytes int
	now          func() time.Time
	stats        Stats
}

// Option configures a Parser.
type Option func(*Parser)

// Strict rejects unknown fields and requires ts, progress on progress
// events, and data on result events.
func Strict() Option {
	return func(p *Parser) { p.strict = true }
}

// WithMaxLineBytes sets the cap reported for oversized lines.
func WithMaxLineBytes(n int) Option {
	return func(p *Parser) {
		if n > 0 {
			p.maxLineBytes = n
		}
	}
}

// WithClock overrides the receipt clock used for missing timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// NewParser constructs a parser.
func NewParser(opts ...Option) *Parser {
	p := &Parser{maxLineBytes: DefaultMaxLineBytes, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Stats returns a snapshot of the parser counters.
func (p *Parser) Stats() Stats { return p.stats }

// ParseString parses a single line of text.
func (p *Parser) ParseString(text string) (events.Outcome, bool) {
	return p.Parse(Line{Text: text})
}

// Parse converts one line into an outcome. Blank lines yield no outcome.
func (p *Parser) Parse(line Line) (events.Outcome, bool) {
	received := p.now().UTC()

	if line.Oversized {
		p.stats.LinesProcessed++
		p.stats.OversizedLines++
		return p.fail(line.Text, fmt.Sprintf("line exceeds %d bytes", p.maxLineBytes), true, received), true
	}

	trimmed := strings.TrimSpace(line.Text)
	if trimmed == "" {
		return events.Outcome{}, false
	}
	p.stats.LinesProcessed++

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(trimmed))
	if err != nil {
		return p.fail(line.Text, ReasonInvalidEncoding, false, received), true
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return p.fail(line.Text, ReasonNotObject, false, received), true
	}

	schema := lenientSchema()
	if p.strict {
		schema = strictSchema()
	}
	if err := schema.Validate(obj); err != nil {
		return p.fail(line.Text, describe(err), false, received), true
	}

	ts, ok := parseTimestamp(obj[events.FieldTimestamp])
	if !ok {
		if p.strict {
			return p.fail(line.Text, fmt.Sprintf("invalid timestamp: %v", obj[events.FieldTimestamp]), false, received), true
		}
		ts = received
	}

	opts := []events.Option{events.At(ts)}
	if raw, ok := obj[events.FieldProgress]; ok && raw != nil {
		percent, ok := asInt(raw)
		if !ok {
			return p.fail(line.Text, ReasonProgressType, false, received), true
		}
		opts = append(opts, events.WithProgress(percent))
	}
	if data, ok := obj[events.FieldData].(map[string]any); ok {
		opts = append(opts, events.WithPayload(normalizeMap(data)))
	}

	event := events.New(
		events.Stage(obj[events.FieldStage].(string)),
		events.Kind(obj[events.FieldType].(string)),
		obj[events.FieldMessage].(string),
		opts...,
	)
	p.stats.EventsParsed++
	return events.EventOutcome(event), true
}

func (p *Parser) fail(raw, reason string, oversized bool, received time.Time) events.Outcome {
	p.stats.ParseErrors++
	if oversized && len(raw) > rawPreviewBytes {
		raw = strings.ToValidUTF8(raw[:rawPreviewBytes], "\uFFFD")
	}
	return events.FailedOutcome(&events.ParseError{
		Raw:        raw,
		Reason:     reason,
		Oversized:  oversized,
		ReceivedAt: received,
	})
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

func parseTimestamp(value any) (time.Time, bool) {
	text, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	text = strings.TrimSpace(text)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, text); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

var fieldOrder = []string{
	events.FieldStage,
	events.FieldType,
	events.FieldMessage,
	events.FieldProgress,
	events.FieldData,
	events.FieldTimestamp,
}

// describe reduces a schema validation error to a single stable reason.
func describe(err error) string {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	leaves := collectLeaves(verr, nil)
	if len(leaves) == 0 {
		return "invalid event"
	}
	slices.SortStableFunc(leaves, func(a, b *jsonschema.ValidationError) int {
		return rank(a) - rank(b)
	})
	return reasonFor(leaves[0])
}

func collectLeaves(verr *jsonschema.ValidationError, dst []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		return append(dst, verr)
	}
	for _, cause := range verr.Causes {
		dst = collectLeaves(cause, dst)
	}
	return dst
}

func rank(verr *jsonschema.ValidationError) int {
	switch verr.ErrorKind.(type) {
	case *kind.Required:
		return 0
	case *kind.AdditionalProperties:
		return 1
	}
	if len(verr.InstanceLocation) == 0 {
		return 2
	}
	if idx := slices.Index(fieldOrder, verr.InstanceLocation[0]); idx >= 0 {
		return 3 + idx
	}
	return 3 + len(fieldOrder)
}

func reasonFor(verr *jsonschema.ValidationError) string {
	field := ""
	if len(verr.InstanceLocation) > 0 {
		field = verr.InstanceLocation[0]
	}
	switch k := verr.ErrorKind.(type) {
	case *kind.Required:
		missing := slices.Clone(k.Missing)
		slices.SortStableFunc(missing, func(a, b string) int {
			return fieldIndex(a) - fieldIndex(b)
		})
		return "missing required field: " + missing[0]
	case *kind.AdditionalProperties:
		props := slices.Clone(k.Properties)
		slices.Sort(props)
		return "unexpected field: " + props[0]
	case *kind.Enum:
		return fmt.Sprintf("invalid %s: %v", field, k.Got)
	case *kind.Type:
		switch field {
		case "":
			return ReasonNotObject
		case events.FieldProgress:
			return ReasonProgressType
		case events.FieldData:
			return "field data must be an object"
		default:
			return fmt.Sprintf("field %s must be a %s", field, strings.Join(k.Want, " or "))
		}
	case *kind.Minimum:
		return "progress out of range: " + k.Got.RatString()
	case *kind.Maximum:
		return "progress out of range: " + k.Got.RatString()
	default:
		if field != "" {
			return "invalid field " + field
		}
		return "invalid event"
	}
}

func fieldIndex(name string) int {
	if idx := slices.Index(fieldOrder, name); idx >= 0 {
		return idx
	}
	return len(fieldOrder)
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
		f, err := v.Float64()
		if err != nil || f != float64(int(f)) {
			return 0, false
		}
		return int(f), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}

func normalizeMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = normalizeValue(value)
	}
	return out
}

// normalizeValue replaces json.Number with int64 or float64.
func normalizeValue(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		return normalizeMap(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
