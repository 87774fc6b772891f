package homee

import (
	"strings"

	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

// Capability is one capability group bit. A device carries the OR of every
// group its properties qualify it for.
type Capability uint16

// Capability groups. Bit positions match the hub client's historical
// numbering so persisted masks stay comparable.
const (
	CapBattery          Capability = 1
	CapClock            Capability = 1 << 2
	CapHomeeBrain       Capability = 1 << 3
	CapSwitchBinary     Capability = 1 << 4
	CapSwitchColor      Capability = 1 << 5
	CapSwitchMultilevel Capability = 1 << 6
	CapSensorBinary     Capability = 1 << 7
	CapSensorMultilevel Capability = 1 << 8
)

// allCapabilities lists every group in a stable order.
var allCapabilities = [...]Capability{
	CapBattery,
	CapClock,
	CapHomeeBrain,
	CapSwitchBinary,
	CapSwitchColor,
	CapSwitchMultilevel,
	CapSensorBinary,
	CapSensorMultilevel,
}

var capabilityNames = map[Capability]string{
	CapBattery:          "Battery",
	CapClock:            "Clock",
	CapHomeeBrain:       "HomeeBrain",
	CapSwitchBinary:     "SwitchBinary",
	CapSwitchColor:      "SwitchColor",
	CapSwitchMultilevel: "SwitchMultilevel",
	CapSensorBinary:     "SensorBinary",
	CapSensorMultilevel: "SensorMultilevel",
}

// capabilityMembers maps each group to the property types that qualify a
// device for it.
var capabilityMembers = map[Capability][]string{
	CapBattery:          {"BatteryLevel"},
	CapClock:            {"CurrentDate"},
	CapHomeeBrain:       {"HomeeMode"},
	CapSwitchBinary:     {"OnOff"},
	CapSwitchColor:      {"Color"},
	CapSwitchMultilevel: {"DimmingLevel"},
	CapSensorBinary:     {"BinaryInput", "OpenClose"},
	CapSensorMultilevel: {
		"AirPressure",
		"AccumulatedEnergyUse",
		"AverageEnergyUse",
		"BatteryLevel",
		"Brightness",
		"CO2Level",
		"Current",
		"CurrentEnergyUse",
		"CurrentLocalGustSpeed",
		"CurrentLocalHumidity",
		"CurrentLocalTemperature",
		"CurrentLocalWeatherCondition",
		"CurrentLocalWindSpeed",
		"CurrentValvePosition",
		"DeviceTemperature",
		"DewPoint",
		"EnergyStorageLevel",
		"FeedTemperature",
		"ForecastLocalTempMax",
		"ForecastLocalTempMin",
		"ForecastLocalWeatherCondition",
		"Frequency",
		"GustDirection",
		"GustSpeed",
		"IndoorRelativeHumidity",
		"IndoorTemperature",
		"OutdoorRelativeHumidity",
		"OutdoorTemperature",
		"Position",
		"PowerInputBattery",
		"PowerInputGrid",
		"PowerLoad",
		"PowerOutputBattery",
		"PowerOutputGrid",
		"PowerPV",
		"Pressure",
		"RainFall",
		"RainFallLastHour",
		"RainFallToday",
		"RelativeAutonomy",
		"RelativeHumidity",
		"RelativeSelfConsumption",
		"SetEnergyConsumption",
		"SoilMoisture",
		"Sonometer",
		"Temperature",
		"TotalAccumulatedEnergyUse",
		"TotalCurrent",
		"TotalCurrentEnergyUse",
		"TotalEnergyInputGrid",
		"TotalEnergyLoad",
		"TotalEnergyProduction",
		"TotalEnergyRestored",
		"TotalEnergyStored",
		"TotalEnergyOutputGrid",
		"UV",
		"Voltage",
		"WindDirection",
		"WindowPosition",
		"WindSpeed",
	},
}

// capabilityByCode is the inverted membership table, built once.
var capabilityByCode = buildCapabilityIndex()

func buildCapabilityIndex() map[attribute.Code]Capability {
	idx := make(map[attribute.Code]Capability)
	for capability, members := range capabilityMembers {
		for _, name := range members {
			code, err := attribute.CodeForName(name)
			if err != nil {
				panic("homee: capability table references " + name)
			}
			idx[code] |= capability
		}
	}
	return idx
}

// Capabilities is a set of capability groups.
type Capabilities Capability

// Has reports whether every bit of c is present.
func (cs Capabilities) Has(c Capability) bool {
	return Capability(cs)&c == c
}

// List returns the groups present, in stable order.
func (cs Capabilities) List() []Capability {
	var out []Capability
	for _, c := range allCapabilities {
		if cs.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the group names present, in stable order.
func (cs Capabilities) Names() []string {
	list := cs.List()
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.String())
	}
	return out
}

func (cs Capabilities) String() string {
	return strings.Join(cs.Names(), "|")
}

func (c Capability) String() string {
	if name, ok := capabilityNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ParseCapability returns the group with the given name.
func ParseCapability(name string) (Capability, bool) {
	for c, n := range capabilityNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// ResolveCapabilities computes the capability set implied by a set of
// property types. The result depends only on which types are present, not
// on their order or multiplicity.
func ResolveCapabilities(types []attribute.Code) Capabilities {
	var out Capability
	for _, code := range types {
		out |= capabilityByCode[code]
	}
	return Capabilities(out)
}

// ResolveDescriptors computes the capability set of a raw attribute list as
// received from the hub. Entries that are not objects are skipped; entries
// without a type count as type 0.
func ResolveDescriptors(descriptors []any) Capabilities {
	types := make([]attribute.Code, 0, len(descriptors))
	for _, d := range descriptors {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		code, _ := toInt(m[fieldType])
		types = append(types, attribute.Code(code))
	}
	return ResolveCapabilities(types)
}

// propertyViewCapabilities are the groups that also apply to a single
// property view.
const propertyViewCapabilities = CapBattery | CapSensorBinary | CapSwitchBinary

// behaviourCapabilities are the groups with attached device behaviour.
const behaviourCapabilities = CapBattery | CapHomeeBrain | CapSensorBinary | CapSensorMultilevel | CapSwitchBinary

// alternativeSensors maps a generic sensor name to more specific names tried
// in order when the generic one is absent.
var alternativeSensors = map[string][]string{
	"GustSpeed":        {"CurrentLocalGustSpeed"},
	"RelativeHumidity": {"IndoorRelativeHumidity", "OutdoorRelativeHumidity", "CurrentLocalHumidity"},
	"Temperature": {
		"DeviceTemperature",
		"FeedTemperature",
		"IndoorTemperature",
		"OutdoorTemperature",
		"CurrentLocalTemperature",
	},
	"WindSpeed": {"CurrentLocalWindSpeed"},
}

// AlternativeSensorNames returns the fallback names for a generic sensor.
func AlternativeSensorNames(name string) []string {
	return append([]string(nil), alternativeSensors[name]...)
}
