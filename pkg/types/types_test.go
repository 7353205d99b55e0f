package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodePassed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"numeric zero", `0`, true},
		{"numeric zero float", `0.0`, true},
		{"string zero", `"0"`, true},
		{"string pass", `"pass"`, true},
		{"numeric one", `1`, false},
		{"string fail", `"fail"`, false},
		{"string PASS is not canonical", `"PASS"`, false},
		{"null", `null`, false},
		{"bool", `true`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s StatusCode
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &s))
			assert.Equal(t, tt.want, s.Passed())
		})
	}
}

func TestStatusCodeMissingIsFailure(t *testing.T) {
	var res JobResult
	require.NoError(t, json.Unmarshal([]byte(`{"worker":"w1"}`), &res))
	assert.False(t, res.Status.Passed())
}

func TestStatusCodeKeepsRepresentation(t *testing.T) {
	for _, raw := range []string{`0`, `"0"`, `"pass"`, `2`} {
		var s StatusCode
		require.NoError(t, json.Unmarshal([]byte(raw), &s))
		out, err := json.Marshal(s)
		require.NoError(t, err)
		assert.Equal(t, raw, string(out))
	}
}

func TestSecondsAcceptsStrings(t *testing.T) {
	var res JobResult
	require.NoError(t, json.Unmarshal([]byte(`{"runtime":"12.5"}`), &res))
	assert.InDelta(t, 12.5, float64(res.Runtime), 1e-9)

	require.NoError(t, json.Unmarshal([]byte(`{"runtime":"n/a"}`), &res))
	assert.Zero(t, float64(res.Runtime))

	require.NoError(t, json.Unmarshal([]byte(`{"runtime":-3}`), &res))
	assert.Zero(t, float64(res.Runtime))
}

func TestQueueEventSplitsJob(t *testing.T) {
	data := `{
		"status": "running",
		"total": 10,
		"eta": 42,
		"job": {"result": {"status": 0, "worker": "w1", "runtime": 1.5,
			"output": "ok", "body": {"command": "./.murdock compile app b:gcc"}}}
	}`

	var ev QueueEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	require.NotNil(t, ev.Job)
	assert.Equal(t, "w1", ev.Job.Result.Worker)
	assert.Equal(t, "running", ev.Status())
	assert.NotContains(t, ev.Fields, "job")
	assert.JSONEq(t, `10`, string(ev.Fields["total"]))
}

func TestQueueEventDoneMarker(t *testing.T) {
	var ev QueueEvent
	require.NoError(t, json.Unmarshal([]byte(`{"status":"done","job":null}`), &ev))
	assert.Nil(t, ev.Job)
	assert.Equal(t, StatusDone, ev.Status())
}

func TestQueueEventRoundTrip(t *testing.T) {
	ev := QueueEvent{
		Job:    &RawJob{Result: JobResult{Status: TextStatus("pass"), Worker: "w"}},
		Fields: map[string]json.RawMessage{"total": json.RawMessage(`3`)},
	}
	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var back QueueEvent
	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Job)
	assert.True(t, back.Job.Result.Status.Passed())
	assert.JSONEq(t, `3`, string(back.Fields["total"]))
}

func TestStatusUpdateOmitsEmpty(t *testing.T) {
	u := StatusUpdate{Status: StatusText("setting up build")}
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"setting up build"}`, string(data))

	u.SetField("eta", json.RawMessage(`12`))
	u.SetField("unknown", json.RawMessage(`1`))
	u.FailedBuilds = []FailedJob{{Name: "app/b:gcc", Href: "/output/x.txt"}}
	data, err = json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"setting up build","eta":12,
		"failed_builds":[{"name":"app/b:gcc","href":"/output/x.txt"}]}`, string(data))
}
