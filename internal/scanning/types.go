package scanning

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/anstrom/portward/internal/errors"
)

const (
	// MinPort and MaxPort bound every scannable TCP port.
	MinPort = 1
	MaxPort = 65535

	maxTargetLength = 255
)

// PortState is the classification of a single probe.
type PortState string

const (
	StateOpen     PortState = "open"
	StateClosed   PortState = "closed"
	StateFiltered PortState = "filtered"
	StateError    PortState = "error"
)

// Valid reports whether s is one of the known port states.
func (s PortState) Valid() bool {
	switch s {
	case StateOpen, StateClosed, StateFiltered, StateError:
		return true
	default:
		return false
	}
}

// SessionType distinguishes offensive scan sessions from monitoring sessions.
type SessionType string

const (
	SessionRedTeam  SessionType = "red_team"
	SessionBlueTeam SessionType = "blue_team"
)

// ScanRequest describes one scan of a single target across a port range.
// It is treated as immutable once a job has accepted it.
type ScanRequest struct {
	// Target is a hostname or IP address
	Target string `json:"target" validate:"required,max=255,hostname_rfc1123|ip"`
	// StartPort is the first port of the inclusive range
	StartPort int `json:"start_port" validate:"min=1,max=65535"`
	// EndPort is the last port of the inclusive range
	EndPort int `json:"end_port" validate:"min=1,max=65535,gtefield=StartPort"`
	// Timeout bounds every probe
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	// Concurrency is the maximum number of probes in flight
	Concurrency int `json:"concurrency" validate:"gte=0"`
}

// Defaults fills in the parts of a request a caller may omit.
type Defaults struct {
	StartPort      int
	EndPort        int
	Timeout        time.Duration
	Concurrency    int
	MaxConcurrency int
}

// WithDefaults returns a copy of r with omitted values filled in. The port
// range is only defaulted when both bounds are zero so that an explicit
// port 0 still fails validation. Concurrency above the maximum is clamped.
func (r ScanRequest) WithDefaults(d Defaults) ScanRequest {
	out := r
	out.Target = strings.TrimSpace(out.Target)
	if out.StartPort == 0 && out.EndPort == 0 {
		out.StartPort = d.StartPort
		out.EndPort = d.EndPort
	}
	if out.Timeout == 0 {
		out.Timeout = d.Timeout
	}
	if out.Concurrency == 0 {
		out.Concurrency = d.Concurrency
	}
	if d.MaxConcurrency > 0 && out.Concurrency > d.MaxConcurrency {
		out.Concurrency = d.MaxConcurrency
	}
	return out
}

// PortCount returns the number of ports in the range, or 0 for an invalid range.
func (r ScanRequest) PortCount() int {
	if !validRange(r.StartPort, r.EndPort) {
		return 0
	}
	return r.EndPort - r.StartPort + 1
}

func validRange(start, end int) bool {
	return start >= MinPort && end <= MaxPort && start <= end
}

var validate = validator.New()

// Validate checks the request and returns a coded error describing the first
// fault found. Range faults map to INVALID_RANGE, target faults to
// TARGET_INVALID, and everything else to VALIDATION.
func (r ScanRequest) Validate() error {
	if !validRange(r.StartPort, r.EndPort) {
		return errors.ErrInvalidRange(r.StartPort, r.EndPort)
	}

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.WrapScanError(errors.CodeValidation, "Invalid scan request", err)
	}

	fe := verrs[0]
	switch fe.StructField() {
	case "Target":
		if fe.Tag() == "required" {
			return errors.NewScanError(errors.CodeValidation, "Target is required")
		}
		if fe.Tag() == "max" {
			return errors.NewScanErrorWithTarget(errors.CodeTargetInvalid,
				fmt.Sprintf("Target exceeds %d characters", maxTargetLength), r.Target[:maxTargetLength])
		}
		return errors.ErrInvalidTarget(r.Target)
	case "StartPort", "EndPort":
		return errors.ErrInvalidRange(r.StartPort, r.EndPort)
	default:
		return errors.NewScanError(errors.CodeValidation,
			fmt.Sprintf("Invalid value for %s: must be %s %s", fe.Field(), fe.Tag(), fe.Param()))
	}
}

// PortResult is the outcome of one probe.
type PortResult struct {
	Port    int
	State   PortState
	Service *string
	Latency time.Duration
	// Error describes an ERROR-state probe and is empty otherwise
	Error string
}

type portResultJSON struct {
	Port      int       `json:"port"`
	State     PortState `json:"state"`
	Service   *string   `json:"service"`
	LatencyMS float64   `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
}

// MarshalJSON renders latency as fractional milliseconds.
func (p PortResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(portResultJSON{
		Port:      p.Port,
		State:     p.State,
		Service:   p.Service,
		LatencyMS: float64(p.Latency) / float64(time.Millisecond),
		Error:     p.Error,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *PortResult) UnmarshalJSON(data []byte) error {
	var raw portResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PortResult{
		Port:    raw.Port,
		State:   raw.State,
		Service: raw.Service,
		Latency: time.Duration(raw.LatencyMS * float64(time.Millisecond)),
		Error:   raw.Error,
	}
	return nil
}
