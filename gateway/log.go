package gateway

// Logging convention in the `gateway` package:
// Info:
//     essential events for abnormal behavior. This level should be silent on
//     normal operation.
//     this includes:
//     - handshake and reconnect failures
//     - chunk request timeouts
//     - malformed event payloads
// Error:
//     unrecoverable crash details
//     this includes:
//     - unexpected panics even if handled and suppressed for partial operation
// V(2):
//     key events for trace debugging
//     this includes:
//     - events discarded because they reference unknown cache entries
//     - per frame send and receive markers, chunk page accounting
