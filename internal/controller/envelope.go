package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/five82/roost/internal/state"
)

// fieldValue is the content of an envelope field: either raw JSON or a
// string holding encoded JSON.
type fieldValue struct {
	raw     json.RawMessage
	encoded string
	isText  bool
}

func parseField(raw json.RawMessage) (fieldValue, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return fieldValue{raw: trimmed}, nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fieldValue{}, err
	}
	return fieldValue{encoded: s, isText: true}, nil
}

// json returns the field as JSON, decoding one extra level for encoded strings.
func (v fieldValue) json() (json.RawMessage, error) {
	if !v.isText {
		return v.raw, nil
	}
	inner := bytes.TrimSpace([]byte(v.encoded))
	if !json.Valid(inner) {
		return nil, fmt.Errorf("encoded payload is not JSON: %q", truncate(v.encoded, 64))
	}
	return inner, nil
}

// unwrapEnvelope extracts the payload from a controller response. The first
// of fields present in a top-level object is used; otherwise the whole body
// is the payload. A field holding a JSON-encoded string is parsed one more
// level. This is the only place that quirk is handled.
func unwrapEnvelope(endpoint string, body []byte, fields ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, decodeError(endpoint, "empty response body")
	}

	raw := json.RawMessage(trimmed)
	if trimmed[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, decodeError(endpoint, "parse envelope: %v", err)
		}
		found := false
		for _, name := range fields {
			if v, ok := obj[name]; ok {
				raw, found = v, true
				break
			}
		}
		if !found {
			if msg, ok := obj["error"]; ok {
				return nil, decodeError(endpoint, "controller reported error: %s", truncate(string(msg), 128))
			}
			if ok, present := obj["success"]; present && string(bytes.TrimSpace(ok)) == "false" {
				return nil, decodeError(endpoint, "controller reported failure")
			}
		}
	} else if !json.Valid(trimmed) {
		return nil, decodeError(endpoint, "response is not JSON: %q", truncate(string(trimmed), 64))
	}

	field, err := parseField(raw)
	if err != nil {
		return nil, decodeError(endpoint, "parse envelope field: %v", err)
	}
	payload, err := field.json()
	if err != nil {
		return nil, decodeError(endpoint, "%v", err)
	}
	return payload, nil
}

// decodeBool accepts JSON booleans and the 0/1 numbers some firmware sends.
func decodeBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		switch n.String() {
		case "0":
			return false, nil
		case "1":
			return true, nil
		}
	}
	return false, fmt.Errorf("not a boolean: %s", truncate(string(raw), 32))
}

const automationKey = "automation"

// decodeSnapshot interprets an initial-state payload. Every device key and
// the automation flag must be present; extra keys (sensor readings) are
// ignored.
func decodeSnapshot(endpoint string, payload json.RawMessage, observedAt time.Time) (state.Snapshot, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err != nil {
		return state.Snapshot{}, decodeError(endpoint, "parse state: %v", err)
	}

	field := func(key string) (bool, error) {
		raw, ok := obj[key]
		if !ok {
			return false, decodeError(endpoint, "state is missing %q", key)
		}
		v, err := decodeBool(raw)
		if err != nil {
			return false, decodeError(endpoint, "state field %q: %v", key, err)
		}
		return v, nil
	}

	automation, err := field(automationKey)
	if err != nil {
		return state.Snapshot{}, err
	}
	var devices state.DeviceState
	for _, id := range state.Devices {
		v, err := field(id.Key())
		if err != nil {
			return state.Snapshot{}, err
		}
		devices = devices.With(id, v)
	}
	return state.NewSnapshot(devices, automation, observedAt), nil
}

// decodeToggle interprets a toggle payload: the resulting boolean, either
// bare, as {"state": bool} or keyed by the target's state field.
func decodeToggle(endpoint, key string, payload json.RawMessage) (bool, error) {
	if v, err := decodeBool(payload); err == nil {
		return v, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(payload, &obj); err == nil {
		for _, name := range []string{"state", key} {
			raw, ok := obj[name]
			if !ok {
				continue
			}
			if v, err := decodeBool(raw); err == nil {
				return v, nil
			}
		}
	}
	return false, decodeError(endpoint, "toggle result is not a boolean: %s", truncate(string(payload), 64))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…(" + strconv.Itoa(len(s)) + " bytes)"
}
