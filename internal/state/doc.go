// Package state maintains the live device-state picture and issues
// device commands, both over MQTT.
//
// Devices publish retained JSON under hearth/state/{device}; the Hub
// subscribes with a single wildcard and folds every message into an
// in-memory snapshot. Because the states are retained, a freshly
// started Hub converges on the full picture as soon as the broker
// replays them.
//
// Commands go the other way: TurnOn and TurnOff publish to
// hearth/command/{device} and the device firmware applies them and
// republishes its state.
package state
