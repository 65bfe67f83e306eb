package testmodel

import (
	"fmt"
	"time"
)

// DeviceInfo describes the device a report was produced on.
type DeviceInfo struct {
	AppIdentifier    string  `json:"appIdentifier,omitempty"`
	Brand            string  `json:"brand,omitempty"`
	BuildNumber      string  `json:"buildNumber,omitempty"`
	Device           string  `json:"device,omitempty"`
	DeviceGroup      string  `json:"deviceGroup,omitempty"`
	DevicePixelRatio float64 `json:"devicePixelRatio,omitempty"`
	ID               string  `json:"id,omitempty"`
	Manufacturer     string  `json:"manufacturer,omitempty"`
	Model            string  `json:"model,omitempty"`
	Orientation      string  `json:"orientation,omitempty"`
	OS               string  `json:"os,omitempty"`
	OSVersion        string  `json:"osVersion,omitempty"`
	Physical         bool    `json:"physicalDevice"`
	Pixels           string  `json:"pixels,omitempty"`
}

// ReportStep is the outcome of one executed step.
type ReportStep struct {
	ID        string    `json:"id"`
	Step      string    `json:"step,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Passed reports whether the step completed without error.
func (s ReportStep) Passed() bool {
	return s.Error == ""
}

// Report is the immutable record of one completed test execution.
type Report struct {
	ID               int64        `json:"id,omitempty"`
	RunID            string       `json:"runId,omitempty"`
	Owner            string       `json:"owner,omitempty"`
	Name             string       `json:"name" validate:"required,max=512"`
	Version          int          `json:"version" validate:"gte=0,lte=2147483647"`
	DeviceInfo       DeviceInfo   `json:"deviceInfo"`
	StartTime        time.Time    `json:"startTime"`
	// EndTime may be zero or earlier than StartTime for crashed runs or
	// skewed device clocks; the report is stored as recorded.
	EndTime          time.Time    `json:"endTime"`
	Steps            []ReportStep `json:"steps"`
	Images           [][]byte     `json:"images,omitempty"`
	Logs             []string     `json:"logs,omitempty"`
	RuntimeException string       `json:"runtimeException,omitempty"`
	Success          bool         `json:"success"`
}

// Validate checks the report for fields the store relies on.
func (r *Report) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid report %q: %w", r.Name, err)
	}
	return nil
}

// PassedSteps counts the steps that completed without error.
func (r *Report) PassedSteps() int {
	n := 0
	for _, s := range r.Steps {
		if s.Passed() {
			n++
		}
	}
	return n
}

// ErrorSteps counts the steps that failed.
func (r *Report) ErrorSteps() int {
	return len(r.Steps) - r.PassedSteps()
}
