package common

const (
	// AuthorizationHeader carries the "Bearer <token>" session credential.
	AuthorizationHeader = "Authorization"

	// RequestIDHeader is echoed on every HTTP response.
	RequestIDHeader = "X-Request-ID"

	// PDFMimeType is the only accepted upload content type.
	PDFMimeType = "application/pdf"
)
