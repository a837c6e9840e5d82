package trigger

// Device is one device's property set inside an aggregate state
// snapshot. The "on" property is universal; "power" and anything else
// are optional and referenced by property triggers.
type Device map[string]Value

// On reports the device's on/off state.
func (d Device) On() bool {
	return d["on"].Truthy()
}

// Power returns the device's power draw, if reported.
func (d Device) Power() (float64, bool) {
	return d["power"].AsNumber()
}

// Get returns a property value, Absent when missing.
func (d Device) Get(prop string) Value {
	return d[prop]
}

// Clone returns an independent copy of the device record.
func (d Device) Clone() Device {
	cpy := make(Device, len(d))
	for k, v := range d {
		cpy[k] = v
	}
	return cpy
}

// Snapshot is the aggregate device state for one tick, keyed by device
// name. It is rebuilt fresh each tick; the only mutation after the
// fact is the scheduler optimistically flipping "on" right after it
// issues an action.
type Snapshot map[string]Device

// SetOn records an optimistic on/off state for a device.
func (s Snapshot) SetOn(device string, on bool) {
	if d, ok := s[device]; ok {
		d["on"] = Bool(on)
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	cpy := make(Snapshot, len(s))
	for name, dev := range s {
		cpy[name] = dev.Clone()
	}
	return cpy
}
