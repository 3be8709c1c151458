package errorsx

import "net/http"

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonValidation ReasonCode = "validation"
	ReasonNotFound   ReasonCode = "not_found"

	ReasonTTSSynthesize   ReasonCode = "tts_synthesize"
	ReasonTTSCircuitOpen  ReasonCode = "tts_circuit_open"
	ReasonTelephonyDial   ReasonCode = "telephony_dial"
	ReasonSheetUpdate     ReasonCode = "sheet_update"
	ReasonStoreQuery      ReasonCode = "store_query"
	ReasonPlannerFailed   ReasonCode = "planner_failed"
	ReasonSourceLoad      ReasonCode = "source_load"
	ReasonSessionConflict ReasonCode = "session_conflict"

	ReasonTransportInvalidSignature ReasonCode = "webhook_invalid_signature"
)

// HTTPStatus maps a reason code onto the status returned by the JSON API.
func (r ReasonCode) HTTPStatus() int {
	switch r {
	case ReasonValidation, ReasonSourceLoad:
		return http.StatusBadRequest
	case ReasonNotFound:
		return http.StatusNotFound
	case ReasonTransportInvalidSignature:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
