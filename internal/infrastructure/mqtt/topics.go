package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT namespace.
//
// Device plugs and sensors publish retained JSON state under
// hearth/state/{device}; Core publishes commands under
// hearth/command/{device} and the firmware acts on them.
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"

	// TopicPrefixEvent is the base for event topics.
	TopicPrefixEvent = "hearth/event"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("lamp")
//	// Returns: "hearth/state/lamp"
type Topics struct{}

// DeviceState returns the retained state topic for a device.
//
// Example: hearth/state/lamp
func (Topics) DeviceState(device string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, device)
}

// DeviceCommand returns the command topic for a device.
//
// Example: hearth/command/lamp
func (Topics) DeviceCommand(device string) string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, device)
}

// ScheduleFired returns the event topic for a schedule actuation.
//
// Example: hearth/event/schedule/lamp
func (Topics) ScheduleFired(schedule string) string {
	return fmt.Sprintf("%s/schedule/%s", TopicPrefixEvent, schedule)
}

// SystemStatus returns the system status topic.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: hearth/state/+
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/state/+", TopicPrefix)
}

// AllScheduleEvents returns a pattern matching every schedule event.
//
// Pattern: hearth/event/schedule/+
func (Topics) AllScheduleEvents() string {
	return fmt.Sprintf("%s/schedule/+", TopicPrefixEvent)
}

// AllTopics returns a pattern matching all Hearth topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: hearth/#
func (Topics) AllTopics() string {
	return "hearth/#"
}

// DeviceFromStateTopic extracts the device name from a state topic,
// returning "" when the topic is not a device state topic.
func DeviceFromStateTopic(topic string) string {
	prefix := TopicPrefix + "/state/"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return ""
	}
	device := topic[len(prefix):]
	for i := 0; i < len(device); i++ {
		if device[i] == '/' {
			return ""
		}
	}
	return device
}
