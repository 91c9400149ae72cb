// Package worker drives the two flows of the bot: the one-time login
// sequence that produces the persisted account record, and the
// per-message QR confirmation flow that consumes it.
package worker

// Outcome is the terminal state of one QR confirmation flow.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeExpired   Outcome = "EXPIRED"
	OutcomeInvalid   Outcome = "INVALID"
	OutcomeFailed    Outcome = "FAILED"
)

// User-visible replies. Expired and Invalid deliberately share one
// message; only the logs and the scan log keep them apart.
const (
	ReplyConfirmed = "QR login approved, continue on the game client."
	ReplyExpired   = "That QR code has expired, request a fresh one and scan again."
)

// FlowResult is what one flow instance reports back to the messenger.
// Reply is the exactly-one user-visible response for the attempt.
type FlowResult struct {
	Outcome Outcome
	Reply   string
	Message string
}
