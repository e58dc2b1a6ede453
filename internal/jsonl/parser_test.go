package jsonl

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subtoolkit/internal/events"
)

var fixedNow = time.Date(2025, 8, 8, 7, 42, 1, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestParseValidEvent(t *testing.T) {
	p := NewParser()
	out, ok := p.ParseString(`{"ts":"2025-08-08T07:42:01Z","stage":"extract","type":"progress","msg":"Extracting","progress":50,"data":{"file":"a.mkv","count":3}}`)
	require.True(t, ok)
	require.False(t, out.Failed())

	e := out.Event
	assert.Equal(t, events.StageExtract, e.Stage())
	assert.Equal(t, events.KindProgress, e.Kind())
	assert.Equal(t, "Extracting", e.Message())
	assert.True(t, e.Timestamp().Equal(fixedNow))
	progress, ok := e.Progress()
	require.True(t, ok)
	assert.Equal(t, 50, progress)
	assert.Equal(t, map[string]any{"file": "a.mkv", "count": int64(3)}, e.Payload())
}

func TestParseBlankLinesYieldNothing(t *testing.T) {
	p := NewParser()
	for _, line := range []string{"", "   ", "\t"} {
		_, ok := p.ParseString(line)
		assert.False(t, ok, "line %q", line)
	}
	assert.Zero(t, p.Stats().LinesProcessed)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"not json", `not json`, ReasonInvalidEncoding},
		{"truncated json", `{"stage":"extract"`, ReasonInvalidEncoding},
		{"trailing garbage", `{"stage":"extract","type":"info","msg":"x"} tail`, ReasonInvalidEncoding},
		{"array", `[1,2,3]`, ReasonNotObject},
		{"string", `"hello"`, ReasonNotObject},
		{"missing stage", `{"type":"info","msg":"x"}`, "missing required field: stage"},
		{"missing type", `{"stage":"extract","msg":"x"}`, "missing required field: type"},
		{"missing msg", `{"stage":"extract","type":"info"}`, "missing required field: msg"},
		{"missing everything", `{}`, "missing required field: stage"},
		{"unknown stage", `{"stage":"render","type":"info","msg":"x"}`, "invalid stage: render"},
		{"unknown type", `{"stage":"extract","type":"debug","msg":"x"}`, "invalid type: debug"},
		{"progress too high", `{"stage":"extract","type":"progress","msg":"x","progress":150}`, "progress out of range: 150"},
		{"progress negative", `{"stage":"extract","type":"progress","msg":"x","progress":-1}`, "progress out of range: -1"},
		{"progress fractional", `{"stage":"extract","type":"progress","msg":"x","progress":12.5}`, ReasonProgressType},
		{"progress string", `{"stage":"extract","type":"progress","msg":"x","progress":"50"}`, ReasonProgressType},
		{"msg not string", `{"stage":"extract","type":"info","msg":5}`, "field msg must be a string"},
		{"data not object", `{"stage":"extract","type":"info","msg":"x","data":"not-dict"}`, "field data must be an object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(WithClock(fixedClock))
			out, ok := p.ParseString(tt.line)
			require.True(t, ok)
			require.True(t, out.Failed())
			assert.Equal(t, tt.reason, out.ParseError.Reason)
			assert.Equal(t, tt.line, out.ParseError.Raw)
			assert.Equal(t, fixedNow, out.ParseError.ReceivedAt)
			assert.Equal(t, Stats{LinesProcessed: 1, ParseErrors: 1}, p.Stats())
		})
	}
}

func TestParseLenientDefaults(t *testing.T) {
	p := NewParser(WithClock(fixedClock))

	out, ok := p.ParseString(`{"stage":"sync","type":"info","msg":""}`)
	require.True(t, ok)
	require.False(t, out.Failed())
	assert.Equal(t, fixedNow, out.Event.Timestamp())
	assert.Equal(t, "", out.Event.Message())

	out, ok = p.ParseString(`{"ts":"invalid-timestamp","stage":"sync","type":"info","msg":"x","extra":1}`)
	require.True(t, ok)
	require.False(t, out.Failed())
	assert.Equal(t, fixedNow, out.Event.Timestamp())

	out, ok = p.ParseString(`{"ts":"2024-01-01T12:00:00+02:00","stage":"sync","type":"warning","msg":"x","progress":null,"data":null}`)
	require.True(t, ok)
	require.False(t, out.Failed())
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), out.Event.Timestamp())
	_, has := out.Event.Progress()
	assert.False(t, has)
	assert.False(t, out.Event.HasPayload())

	out, ok = p.ParseString(`{"stage":"translate","type":"info","msg":"any kind may carry progress","progress":7}`)
	require.True(t, ok)
	require.False(t, out.Failed())
	progress, _ := out.Event.Progress()
	assert.Equal(t, 7, progress)
}

func TestParseStrict(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"unexpected field", `{"ts":"2025-08-08T07:42:01Z","stage":"extract","type":"info","msg":"x","extra":1}`, "unexpected field: extra"},
		{"missing ts", `{"stage":"extract","type":"info","msg":"x"}`, "missing required field: ts"},
		{"invalid ts", `{"ts":"yesterday","stage":"extract","type":"info","msg":"x"}`, "invalid timestamp: yesterday"},
		{"progress without value", `{"ts":"2025-08-08T07:42:01Z","stage":"extract","type":"progress","msg":"x"}`, "missing required field: progress"},
		{"result without data", `{"ts":"2025-08-08T07:42:01Z","stage":"extract","type":"result","msg":"x"}`, "missing required field: data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, ok := NewParser(Strict()).ParseString(tt.line)
			require.True(t, ok)
			require.True(t, out.Failed())
			assert.Equal(t, tt.reason, out.ParseError.Reason)
		})
	}

	out, ok := NewParser(Strict()).ParseString(`{"ts":"2025-08-08T07:42:01Z","stage":"extract","type":"result","msg":"done","data":{"outputs":[]}}`)
	require.True(t, ok)
	assert.False(t, out.Failed())
}

func TestParseOversizedLine(t *testing.T) {
	p := NewParser(WithMaxLineBytes(16))
	out, ok := p.Parse(Line{Text: `{"stage":"extract`, Oversized: true})
	require.True(t, ok)
	require.True(t, out.Failed())
	assert.True(t, out.ParseError.Oversized)
	assert.Equal(t, "line exceeds 16 bytes", out.ParseError.Reason)
	assert.Equal(t, Stats{LinesProcessed: 1, ParseErrors: 1, OversizedLines: 1}, p.Stats())
}

func TestParserStats(t *testing.T) {
	p := NewParser()
	p.ParseString(`{"stage":"extract","type":"info","msg":"a"}`)
	p.ParseString(`garbage`)
	p.ParseString(``)
	p.ParseString(`{"stage":"extract","type":"info","msg":"b"}`)

	stats := p.Stats()
	assert.Equal(t, 3, stats.LinesProcessed)
	assert.Equal(t, 2, stats.EventsParsed)
	assert.Equal(t, 1, stats.ParseErrors)
	assert.InDelta(t, 66.67, stats.SuccessRate(), 0.01)
	assert.Zero(t, Stats{}.SuccessRate())
}

func TestParseRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	stageGen := gen.OneConstOf(events.StageExtract, events.StageTranslate, events.StageSync)
	kindGen := gen.OneConstOf(events.KindInfo, events.KindProgress, events.KindWarning, events.KindError, events.KindResult)

	properties.Property("parse(serialize(e)) == e", prop.ForAll(
		func(stage events.Stage, kind events.Kind, msg string, progress int, withProgress bool, key string, value int64, seconds int64) bool {
			opts := []events.Option{events.At(time.Unix(seconds, 0))}
			if withProgress {
				opts = append(opts, events.WithProgress(progress))
			}
			if key != "" {
				opts = append(opts, events.WithPayload(map[string]any{key: value, "list": []any{"a", int64(1)}}))
			}
			original := events.New(stage, kind, msg, opts...)

			raw, err := json.Marshal(original)
			if err != nil {
				return false
			}
			out, ok := NewParser().ParseString(string(raw))
			if !ok || out.Failed() {
				return false
			}
			return out.Event.Equal(original)
		},
		stageGen,
		kindGen,
		gen.AnyString(),
		gen.IntRange(0, 100),
		gen.Bool(),
		gen.AlphaString(),
		gen.Int64(),
		gen.Int64Range(0, 4102444800),
	))

	properties.TestingRun(t)
}

func TestParseRoundTripKeepsEmptyData(t *testing.T) {
	const line = `{"ts":"2024-01-01T00:00:00Z","stage":"extract","type":"result","msg":"done","data":{}}`
	for _, tt := range []struct {
		name   string
		parser func() *Parser
	}{
		{"lenient", func() *Parser { return NewParser() }},
		{"strict", func() *Parser { return NewParser(Strict()) }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			first, ok := tt.parser().ParseString(line)
			require.True(t, ok)
			require.False(t, first.Failed(), "first parse: %v", first.ParseError)
			require.True(t, first.Event.HasPayload())

			raw, err := json.Marshal(first.Event)
			require.NoError(t, err)
			assert.Contains(t, string(raw), `"data":{}`)

			second, ok := tt.parser().ParseString(string(raw))
			require.True(t, ok)
			require.False(t, second.Failed(), "reparse: %v", second.ParseError)
			assert.True(t, second.Event.Equal(first.Event))
		})
	}
}

func TestParseNeverPanics(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("arbitrary input yields at most one outcome", prop.ForAll(
		func(line string) bool {
			p := NewParser()
			out, ok := p.ParseString(line)
			if !ok {
				return p.Stats().LinesProcessed == 0
			}
			return out.Failed() != (p.Stats().EventsParsed == 1)
		},
		gen.OneGenOf(
			gen.AnyString(),
			gen.AlphaString().Map(func(s string) string { return `{"stage":"` + s + `","type":"info","msg":"x"}` }),
			gen.IntRange(-50, 150).Map(func(n int) string {
				raw, _ := json.Marshal(map[string]any{"stage": "sync", "type": "progress", "msg": "p", "progress": n})
				return string(raw)
			}),
		),
	))

	properties.TestingRun(t)
}
