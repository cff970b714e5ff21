// Package httputil provides JSON response helpers, request parsing and the
// request-scoped middleware shared by every route.
//
// Errors are always written as {"error": "<message>"}:
//
//	httputil.WriteErrorMessage(w, http.StatusBadRequest, "name is required")
//
// RequestIDMiddleware puts a request id and a logger carrying it into the
// context; handlers fetch the logger with contextkeys.GetLogger.
package httputil
