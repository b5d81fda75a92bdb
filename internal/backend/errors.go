// ABOUTME: Sentinel errors for the backend error taxonomy
// ABOUTME: Callers branch with errors.Is, never on error strings

package backend

import "errors"

var (
	// ErrBackendUnavailable covers network failures, timeouts, and non-2xx
	// provider responses. The orchestrator recovers by falling back to the
	// sentence generator; it is never surfaced to the end user as an error.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrUnsupportedContent means the request carried content the model
	// cannot accept, such as images on a text-only model. The orchestrator
	// retries once with the offending content stripped.
	ErrUnsupportedContent = errors.New("unsupported content for model")

	// ErrModelNotSupported means no backend is registered for a model id.
	// This is a configuration-time error: the registry refuses to resolve,
	// so an orchestrator can never be constructed in that state.
	ErrModelNotSupported = errors.New("model not supported")
)
