package homee

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	hub "github.com/nerrad567/gray-logic-homee/internal/homee"
	"github.com/nerrad567/gray-logic-homee/internal/homee/attribute"
)

// stateKey returns the state map key for an attribute instance:
// "BatteryLevel" instance 0 is "battery_level", instance 1 "battery_level_1".
func stateKey(name string, instance int) string {
	key := snakeCase(name)
	if instance > 0 {
		key += "_" + strconv.Itoa(instance)
	}
	return key
}

// snakeCase converts a CamelCase catalog name to snake_case, keeping
// acronyms together ("StatusLED" becomes "status_led").
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(name) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// buildState snapshots every attribute of d, plus the derived "on",
// "battery" and "mode" keys for devices that carry those capabilities.
func buildState(d *hub.Device) map[string]any {
	props := d.Properties()
	state := make(map[string]any, len(props)+3)
	for _, p := range props {
		state[stateKey(p.Name(), p.Instance())] = p.Value()
	}

	if sw, ok := d.SwitchBinary(); ok {
		if on, err := sw.On(attribute.OnOff.String(), hub.AllInstances); err == nil {
			state["on"] = on
		}
	}
	if battery, ok := d.Battery(); ok {
		if level, err := battery.Level(hub.AllInstances); err == nil {
			state["battery"] = level
		}
	}
	if brain, ok := d.HomeeBrain(); ok {
		if mode, ok := brain.Mode(); ok {
			state["mode"] = mode
		}
	}
	return state
}

// numeric returns v as a float64 for metrics. Booleans and text are not numeric.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
