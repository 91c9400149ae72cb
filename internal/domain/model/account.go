package model

import "strings"

// AccountRecord is the persisted credential bundle for one miHoYo account.
// LoginTicket is only kept for diagnostics; LToken/SToken are the durable
// credentials and DeviceID must stay stable for the record's lifetime.
type AccountRecord struct {
	DeviceID    string `json:"device_id"`
	UID         string `json:"uid"`
	LoginTicket string `json:"login_ticket"`
	LToken      string `json:"ltoken"`
	SToken      string `json:"stoken"`
}

// Complete reports whether the record carries everything a QR
// confirmation needs.
func (r AccountRecord) Complete() bool {
	return strings.TrimSpace(r.DeviceID) != "" &&
		strings.TrimSpace(r.UID) != "" &&
		strings.TrimSpace(r.SToken) != ""
}

// CaptchaSession holds the result of one solved GeeTest challenge together
// with the mmt_key it was created for. All four fields originate from the
// same solve; the session is consumed by exactly one login call.
type CaptchaSession struct {
	MMTKey    string
	Challenge string
	Validate  string
	SecCode   string
}
