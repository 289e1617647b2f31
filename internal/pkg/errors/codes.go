package errors

import "net/http"

var (
	ErrHubNotFound = New(
		"HUB_NOT_FOUND",
		"Hub not found",
		http.StatusNotFound,
	)

	ErrWorkspaceNotFound = New(
		"WORKSPACE_NOT_FOUND",
		"Workspace not found",
		http.StatusNotFound,
	)

	ErrBorderNotFound = New(
		"MUNICIPALITY_BORDER_NOT_FOUND",
		"Municipality border not found",
		http.StatusNotFound,
	)

	ErrEmptySelection = New(
		"EMPTY_SELECTION",
		"No hubs selected",
		http.StatusBadRequest,
	)

	ErrActionNotEligible = New(
		"ACTION_NOT_ELIGIBLE",
		"Action is not eligible for the current selection",
		http.StatusConflict,
	)

	ErrConfirmationRequired = New(
		"CONFIRMATION_REQUIRED",
		"Action requires explicit confirmation",
		http.StatusPreconditionRequired,
	)

	ErrActionInFlight = New(
		"ACTION_IN_FLIGHT",
		"Another action on the same geography is still in flight",
		http.StatusConflict,
	)

	ErrInvalidTransition = New(
		"INVALID_TRANSITION",
		"Hub phase does not allow this transition",
		http.StatusUnprocessableEntity,
	)

	ErrMonitoringHubNotAllowed = New(
		"MONITORING_HUB_NOT_ALLOWED",
		"Monitoring hubs do not take part in the commit/retirement workflow",
		http.StatusUnprocessableEntity,
	)

	ErrDraftAlreadyExists = New(
		"DRAFT_ALREADY_EXISTS",
		"A draft already exists for this geography",
		http.StatusConflict,
	)

	ErrMalformedPackage = New(
		"MALFORMED_GEOMETRY_PACKAGE",
		"Geometry package could not be parsed",
		http.StatusBadRequest,
	)

	ErrZoneOutsideBorders = New(
		"ZONE_OUTSIDE_BORDERS",
		"Zone is not within the municipality borders",
		http.StatusUnprocessableEntity,
	)

	ErrInvalidGeometry = New(
		"INVALID_GEOMETRY",
		"Geometry must be a Polygon or MultiPolygon",
		http.StatusBadRequest,
	)

	ErrForbidden = New(
		"FORBIDDEN",
		"Caller has no edit rights",
		http.StatusForbidden,
	)

	ErrUpstreamError = New(
		"UPSTREAM_ERROR",
		"Hub repository request failed",
		http.StatusBadGateway,
	)

	ErrDatabaseError = New(
		"DATABASE_ERROR",
		"Database operation failed",
		http.StatusInternalServerError,
	)

	ErrCacheError = New(
		"CACHE_ERROR",
		"Cache operation failed",
		http.StatusInternalServerError,
	)

	ErrInvalidRequest = New(
		"INVALID_REQUEST",
		"Invalid request parameters",
		http.StatusBadRequest,
	)

	ErrInternalServer = New(
		"INTERNAL_SERVER_ERROR",
		"Internal server error",
		http.StatusInternalServerError,
	)
)

// Lookup находит сентинел по коду (используется HTTP клиентом репозитория)
func Lookup(code string) (*AppError, bool) {
	for _, e := range []*AppError{
		ErrHubNotFound, ErrWorkspaceNotFound, ErrBorderNotFound, ErrEmptySelection,
		ErrActionNotEligible, ErrConfirmationRequired, ErrActionInFlight,
		ErrInvalidTransition, ErrMonitoringHubNotAllowed, ErrDraftAlreadyExists,
		ErrMalformedPackage, ErrZoneOutsideBorders, ErrInvalidGeometry, ErrForbidden,
		ErrUpstreamError, ErrDatabaseError, ErrCacheError, ErrInvalidRequest, ErrInternalServer,
	} {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}
