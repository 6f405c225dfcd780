package errors

import (
	"encoding/json"
)

// JSONOutput represents the JSON structure for error output
type JSONOutput struct {
	Status   string        `json:"status"`
	Errors   []*WeaveError `json:"errors"`
	Warnings []*WeaveError `json:"warnings"`
	Summary  Summary       `json:"summary"`
}

// Summary contains error and warning counts
type Summary struct {
	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`
	TotalCount   int `json:"total_count"`
}

// MarshalJSON includes the cause message alongside the structured fields
func (e *WeaveError) MarshalJSON() ([]byte, error) {
	type plain WeaveError
	out := struct {
		*plain
		Cause string `json:"cause,omitempty"`
	}{plain: (*plain)(e)}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// FormatErrorsAsJSON formats multiple errors as JSON
func FormatErrorsAsJSON(errs []*WeaveError) (string, error) {
	errorList := []*WeaveError{}
	warningList := []*WeaveError{}

	for _, err := range errs {
		if err.IsFatal() {
			errorList = append(errorList, err)
		} else if err.Severity == Warning {
			warningList = append(warningList, err)
		}
	}

	status := "success"
	if len(errorList) > 0 {
		status = "error"
	} else if len(warningList) > 0 {
		status = "warning"
	}

	output := JSONOutput{
		Status:   status,
		Errors:   errorList,
		Warnings: warningList,
		Summary: Summary{
			ErrorCount:   len(errorList),
			WarningCount: len(warningList),
			TotalCount:   len(errs),
		},
	}

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
