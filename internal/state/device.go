package state

import (
	"fmt"
	"strings"
)

// DeviceID identifies one of the controller's actuators.
type DeviceID int

const (
	Belt DeviceID = iota
	Fan
	Light
	Feeder
	Water

	numDevices
)

// Devices lists every actuator in display order.
var Devices = [numDevices]DeviceID{Belt, Fan, Light, Feeder, Water}

type deviceInfo struct {
	name  string // canonical lower-case name
	key   string // field name in the controller snapshot
	slug  string // suffix of the toggle endpoint
	label string // operator-facing label
}

var deviceTable = [numDevices]deviceInfo{
	Belt:   {name: "belt", key: "belt", slug: "belt", label: "Belt"},
	Fan:    {name: "fan", key: "fan", slug: "fan", label: "Fan"},
	Light:  {name: "light", key: "lightbulb", slug: "bulb", label: "Light"},
	Feeder: {name: "feeder", key: "feeder", slug: "feeder", label: "Feeder"},
	Water:  {name: "water", key: "water", slug: "water", label: "Water pump"},
}

// Valid reports whether d is one of the known actuators.
func (d DeviceID) Valid() bool {
	return d >= 0 && d < numDevices
}

func (d DeviceID) String() string {
	if !d.Valid() {
		return fmt.Sprintf("device(%d)", int(d))
	}
	return deviceTable[d].name
}

// Key returns the field name the controller uses for d in its state payload.
func (d DeviceID) Key() string {
	if !d.Valid() {
		return ""
	}
	return deviceTable[d].key
}

// Slug returns the toggle endpoint suffix for d (/api/toggle-<slug>).
func (d DeviceID) Slug() string {
	if !d.Valid() {
		return ""
	}
	return deviceTable[d].slug
}

// Label returns the operator-facing name of d.
func (d DeviceID) Label() string {
	if !d.Valid() {
		return d.String()
	}
	return deviceTable[d].label
}

// ParseDevice resolves a device by name, snapshot key or endpoint slug.
func ParseDevice(s string) (DeviceID, bool) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for _, id := range Devices {
		info := deviceTable[id]
		if needle == info.name || needle == info.key || needle == info.slug {
			return id, true
		}
	}
	return 0, false
}

// DeviceState maps every DeviceID to its on/off value. It is a value type:
// copies are independent and == compares structurally.
type DeviceState [numDevices]bool

// Get returns the value of id. Unknown ids read as off.
func (s DeviceState) Get(id DeviceID) bool {
	if !id.Valid() {
		return false
	}
	return s[id]
}

// With returns a copy of s with id set to v.
func (s DeviceState) With(id DeviceID, v bool) DeviceState {
	if id.Valid() {
		s[id] = v
	}
	return s
}

// Target is the subject of a command: one device or the automation flag.
type Target struct {
	device     DeviceID
	automation bool
}

// AutomationTarget addresses the controller's automation flag.
var AutomationTarget = Target{automation: true}

// DeviceTarget addresses a single actuator.
func DeviceTarget(id DeviceID) Target {
	return Target{device: id}
}

// Device returns the addressed device and true, or false for the automation target.
func (t Target) Device() (DeviceID, bool) {
	if t.automation {
		return 0, false
	}
	return t.device, true
}

// IsAutomation reports whether t addresses the automation flag.
func (t Target) IsAutomation() bool {
	return t.automation
}

func (t Target) String() string {
	if t.automation {
		return "automation"
	}
	return t.device.String()
}

// Label returns the operator-facing name of t.
func (t Target) Label() string {
	if t.automation {
		return "Automation"
	}
	return t.device.Label()
}

// Targets lists the automation flag followed by every device.
func Targets() []Target {
	out := make([]Target, 0, len(Devices)+1)
	out = append(out, AutomationTarget)
	for _, id := range Devices {
		out = append(out, DeviceTarget(id))
	}
	return out
}

// ParseTarget resolves "automation" (or "auto") or any name ParseDevice accepts.
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "automation", "auto":
		return AutomationTarget, nil
	}
	id, ok := ParseDevice(s)
	if !ok {
		return Target{}, fmt.Errorf("unknown target %q", s)
	}
	return DeviceTarget(id), nil
}
