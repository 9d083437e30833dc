package core

// Warning is a non-fatal condition surfaced alongside a result. Estimated
// totals, collapsed variance levels and similar degeneracies arrive here
// rather than as errors.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes
const (
	WarnEstimatedTotals  = "estimated_totals"
	WarnZeroVarianceStep = "zero_variance_level"
)

func NewWarning(code, message string) Warning {
	return Warning{Code: code, Message: message}
}

func (w Warning) String() string {
	return w.Code + ": " + w.Message
}
