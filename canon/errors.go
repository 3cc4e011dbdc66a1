package canon

import "errors"

// ErrTooLarge is returned by Canonicalize when a plaintext's
// unpadded canonical JSON form already exceeds Size. The sign handler
// propagates this as errkind.ValidationFailed rather than truncating
// (see DESIGN.md's Open Question resolution).
var ErrTooLarge = errors.New("canonical form exceeds signing budget")
