package contexthelpers

import (
	"context"
)

// LearnerID returns the anonymous learner identifier of the request or an empty string.
func LearnerID(ctx context.Context) string {
	learnerID, ok := ctx.Value(learnerIDContextKey).(string)
	if !ok {
		return ""
	}

	return learnerID
}

func CurrentPath(ctx context.Context) string {
	currentPath, ok := ctx.Value(currentPathContextKey).(string)
	if !ok {
		return ""
	}

	return currentPath
}

func CSRFToken(ctx context.Context) string {
	csrfToken, ok := ctx.Value(csrfTokenContextKey).(string)
	if !ok {
		return ""
	}

	return csrfToken
}

func CSPNonce(ctx context.Context) string {
	nonce, ok := ctx.Value(cspNonceContextKey).(string)
	if !ok {
		return ""
	}

	return nonce
}
