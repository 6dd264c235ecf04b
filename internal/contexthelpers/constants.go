package contexthelpers

type contextKey string

const learnerIDContextKey = contextKey("learnerID")
const currentPathContextKey = contextKey("currentPath")
const csrfTokenContextKey = contextKey("csrfToken")
const cspNonceContextKey = contextKey("cspNonce")
