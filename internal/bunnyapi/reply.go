// Package bunnyapi holds the status reply document the storage API sends with
// uploads, deletes and most errors.
package bunnyapi

import (
	"bytes"
	"encoding/json"
)

// StatusReply is the {"HttpCode":..,"Message":..} body.
type StatusReply struct {
	HttpCode int    `json:"HttpCode"`
	Message  string `json:"Message"`
}

// NewStatusReply encodes a reply for code.
func NewStatusReply(code int, message string) []byte {
	data, _ := json.Marshal(StatusReply{HttpCode: code, Message: message})
	return data
}

// ParseStatusReply extracts the status reply from body. ok is false when the
// body is empty, not a JSON object, or carries neither field.
func ParseStatusReply(body []byte) (reply StatusReply, ok bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return StatusReply{}, false
	}
	if err := json.Unmarshal(trimmed, &reply); err != nil {
		return StatusReply{}, false
	}
	if reply.HttpCode == 0 && reply.Message == "" {
		return StatusReply{}, false
	}
	return reply, true
}
