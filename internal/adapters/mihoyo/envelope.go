package mihoyo

import (
	"encoding/json"
	"fmt"
)

// The account service answers with two independently versioned envelope
// shapes. The web endpoints use status/msg with 1 as success, the
// sdk/takumi endpoints use retcode/message with 0 as success. Both are
// handled by one parameterized validator instead of per-endpoint parsing.
type envelopeFamily struct {
	statusField  string
	messageField string
	successValue int64
}

var (
	webEnvelope = envelopeFamily{statusField: "status", messageField: "msg", successValue: 1}
	sdkEnvelope = envelopeFamily{statusField: "retcode", messageField: "message", successValue: 0}
)

// RemoteError is a decoded envelope that signaled failure. Message carries
// the remote-provided text verbatim.
type RemoteError struct {
	Status  int64
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected request: status=%d message=%s", e.Status, e.Message)
}

// ProtocolError is a response whose shape did not match the contract:
// a missing field or an undecodable body. It indicates a defect or a
// remote contract change, never a user-fixable condition.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("unexpected response shape: %s", e.Reason)
}

func protocolErrf(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// unwrap validates raw response bytes against the family's status
// convention and returns the decoded root object. On a non-success status
// the remote message is surfaced as a *RemoteError and the payload must
// not be used.
func (f envelopeFamily) unwrap(raw []byte) (map[string]json.RawMessage, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, protocolErrf("body is not a JSON object: %v", err)
	}

	statusRaw, ok := root[f.statusField]
	if !ok {
		return nil, protocolErrf("missing %q field", f.statusField)
	}
	var status int64
	if err := json.Unmarshal(statusRaw, &status); err != nil {
		return nil, protocolErrf("field %q is not a number: %v", f.statusField, err)
	}

	if status != f.successValue {
		var message string
		_ = json.Unmarshal(root[f.messageField], &message)
		return nil, &RemoteError{Status: status, Message: message}
	}
	return root, nil
}

// member decodes a named sub-object of the envelope root into out.
// A missing member is a protocol violation, not a default.
func member(root map[string]json.RawMessage, name string, out interface{}) error {
	raw, ok := root[name]
	if !ok {
		return protocolErrf("missing %q member", name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return protocolErrf("cannot decode %q member: %v", name, err)
	}
	return nil
}
