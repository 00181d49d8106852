package rpcplane

import "encoding/json"

// OK constructs a successful Reply carrying result.
func OK(result json.RawMessage) Reply {
	return Reply{Status: StatusOK, Result: result}
}

// Failed constructs a failed Reply carrying a human-readable error message.
// Per spec.md §7, RPC errors are local to one hop and are embedded in the
// Reply rather than surfaced as a transport failure.
func Failed(message string) Reply {
	return Reply{Status: StatusError, Error: message}
}
