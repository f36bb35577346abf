package scanning

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portward/internal/errors"
)

func validRequest() ScanRequest {
	return ScanRequest{
		Target:      "127.0.0.1",
		StartPort:   1,
		EndPort:     10,
		Timeout:     500 * time.Millisecond,
		Concurrency: 10,
	}
}

func TestScanRequestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *ScanRequest)
		code   errors.ErrorCode
	}{
		{"valid ip", func(r *ScanRequest) {}, ""},
		{"valid ipv6", func(r *ScanRequest) { r.Target = "::1" }, ""},
		{"valid hostname", func(r *ScanRequest) { r.Target = "scanme.example.org" }, ""},
		{"single port", func(r *ScanRequest) { r.StartPort, r.EndPort = 80, 80 }, ""},
		{"full range", func(r *ScanRequest) { r.StartPort, r.EndPort = 1, 65535 }, ""},
		{"reversed range", func(r *ScanRequest) { r.StartPort, r.EndPort = 50, 1 }, errors.CodeInvalidRange},
		{"port zero", func(r *ScanRequest) { r.StartPort = 0 }, errors.CodeInvalidRange},
		{"port too high", func(r *ScanRequest) { r.EndPort = 65536 }, errors.CodeInvalidRange},
		{"negative port", func(r *ScanRequest) { r.StartPort = -1 }, errors.CodeInvalidRange},
		{"empty target", func(r *ScanRequest) { r.Target = "" }, errors.CodeValidation},
		{"target with space", func(r *ScanRequest) { r.Target = "exa mple.com" }, errors.CodeTargetInvalid},
		{"target with scheme", func(r *ScanRequest) { r.Target = "http://example.com" }, errors.CodeTargetInvalid},
		{"target too long", func(r *ScanRequest) { r.Target = strings.Repeat("a", 300) }, errors.CodeTargetInvalid},
		{"negative timeout", func(r *ScanRequest) { r.Timeout = -time.Second }, errors.CodeValidation},
		{"negative concurrency", func(r *ScanRequest) { r.Concurrency = -1 }, errors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.True(t, errors.IsValidation(err))
		})
	}
}

func TestScanRequestWithDefaults(t *testing.T) {
	d := Defaults{StartPort: 1, EndPort: 1000, Timeout: time.Second, Concurrency: 200, MaxConcurrency: 1000}

	t.Run("fills omitted values", func(t *testing.T) {
		got := ScanRequest{Target: " example.com "}.WithDefaults(d)
		assert.Equal(t, "example.com", got.Target)
		assert.Equal(t, 1, got.StartPort)
		assert.Equal(t, 1000, got.EndPort)
		assert.Equal(t, time.Second, got.Timeout)
		assert.Equal(t, 200, got.Concurrency)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		req := validRequest()
		assert.Equal(t, req, req.WithDefaults(d))
	})

	t.Run("partial range is not defaulted", func(t *testing.T) {
		got := ScanRequest{Target: "h", StartPort: 0, EndPort: 80}.WithDefaults(d)
		assert.Equal(t, 0, got.StartPort)
		assert.Equal(t, errors.CodeInvalidRange, errors.GetCode(got.Validate()))
	})

	t.Run("clamps concurrency", func(t *testing.T) {
		got := ScanRequest{Target: "h", Concurrency: 5000}.WithDefaults(d)
		assert.Equal(t, 1000, got.Concurrency)
	})
}

func TestPortCount(t *testing.T) {
	assert.Equal(t, 10, validRequest().PortCount())
	assert.Equal(t, 1, ScanRequest{StartPort: 443, EndPort: 443}.PortCount())
	assert.Equal(t, 65535, ScanRequest{StartPort: 1, EndPort: 65535}.PortCount())
	assert.Equal(t, 0, ScanRequest{StartPort: 50, EndPort: 1}.PortCount())
	assert.Equal(t, 0, ScanRequest{StartPort: 0, EndPort: 10}.PortCount())
}

func TestPortStateValid(t *testing.T) {
	for _, s := range []PortState{StateOpen, StateClosed, StateFiltered, StateError} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, PortState("unknown").Valid())
}

func TestPortResultJSON(t *testing.T) {
	ssh := "SSH"
	result := PortResult{Port: 22, State: StateOpen, Service: &ssh, Latency: 1500 * time.Microsecond}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":22,"state":"open","service":"SSH","latency_ms":1.5}`, string(data))

	var decoded PortResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result, decoded)

	closed, err := json.Marshal(PortResult{Port: 23, State: StateError, Error: "boom"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":23,"state":"error","service":null,"latency_ms":0,"error":"boom"}`, string(closed))
}
