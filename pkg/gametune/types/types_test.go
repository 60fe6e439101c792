package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Category
		wantErr bool
	}{
		{name: "lowercase", input: "tcp", want: CategoryTCP},
		{name: "uppercase", input: "DNS", want: CategoryDNS},
		{name: "whitespace", input: "  gpu ", want: CategoryGPU},
		{name: "unknown", input: "disk", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCategory(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "not found", err: ErrNotFound, want: KindNotFound},
		{name: "wrapped permission", err: fmt.Errorf("open key: %w", ErrPermissionDenied), want: KindPermissionDenied},
		{name: "invalid argument", err: ErrInvalidArgument, want: KindInvalidArgument},
		{name: "unsupported", err: fmt.Errorf("powercfg: %w", ErrUnsupported), want: KindUnsupported},
		{name: "anything else", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestFromError_KeepsDiagnosticText(t *testing.T) {
	res := FromError("stop service", fmt.Errorf("sc: %w", errors.New("error 1051")))

	assert.False(t, res.Success)
	assert.Equal(t, KindUnknown, res.Kind)
	assert.Contains(t, res.Message, "stop service")
	assert.Contains(t, res.Message, "error 1051")
}

func TestResult_Status(t *testing.T) {
	assert.Equal(t, "ok", OK("done").Status())
	assert.Equal(t, "failed", Fail(KindNotFound, "gone").Status())
	assert.Equal(t, "restart", Result{Success: true, Kind: KindRestartRequired}.Status())
	assert.Equal(t, "skipped", Skip("no adapter").Status())
	assert.Equal(t, "skipped: no adapter", Skip("no adapter").Message)
}

func TestReport(t *testing.T) {
	var r Report
	r.Add("tcp", OK("applied"))
	r.Add("gpu", Result{Success: true, Kind: KindRestartRequired, Message: "reboot"})
	r.Add("dns", Fail(KindInvalidArgument, "unknown provider"))
	r.Add("adapter", Skip("no adapter"))

	assert.Len(t, r.Steps, 4)
	assert.Equal(t, 1, r.Failed())
	assert.Equal(t, 1, r.Skipped())
	assert.True(t, r.RestartRequired())

	step, ok := r.Step("dns")
	require.True(t, ok)
	assert.Equal(t, KindInvalidArgument, step.Result.Kind)

	_, ok = r.Step("power")
	assert.False(t, ok)
}

func TestLogFunc_NilSafe(t *testing.T) {
	var f LogFunc
	assert.NotPanics(t, func() { f.Logf("hello %s", "world") })

	var got string
	f = func(msg string) { got = msg }
	f.Logf("adapter %d", 7)
	assert.Equal(t, "adapter 7", got)
}

func TestTweakRecord_PriorValue(t *testing.T) {
	rec := TweakRecord{Category: CategoryVisual, Key: "VisualFXSetting", Absent: true}
	assert.Equal(t, Missing(), rec.PriorValue())
	assert.Contains(t, rec.String(), "<absent>")

	rec = TweakRecord{Category: CategoryTCP, Key: "Internet/Timestamps", Prior: "Enabled"}
	assert.Equal(t, Present("Enabled"), rec.PriorValue())
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "done", Summarize("done", nil))
	assert.Equal(t, "done: a: ok; b: failed", Summarize("done", []string{"a: ok", "b: failed"}))
}
