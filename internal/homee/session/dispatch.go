package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/nerrad567/gray-logic-homee/internal/homee"
)

// Envelope keys of the inbound stream.
const (
	keyAttribute = "attribute" // one attribute update
	keyNode      = "node"      // one full node description
	keyNodes     = "nodes"     // list of node descriptions
	keyAll       = "all"       // bulk snapshot of several resources
)

type payloadKind int

const (
	kindMap payloadKind = iota
	kindList
)

// inertKeys are recognised resources this client does not model. Their
// payloads are accepted and discarded.
var inertKeys = map[string]payloadKind{
	"attribute_history": kindMap,
	"groups":            kindList,
	"homeegram_history": kindMap,
	"homeegrams":        kindList,
	"node_history":      kindMap,
	"plans":             kindList,
	"relationships":     kindList,
	"settings":          kindMap,
	"users":             kindList,
}

// Dispatcher turns decoded envelopes into registry mutations.
type Dispatcher struct {
	registry *homee.Registry
	sender   homee.RequestSender
	logger   homee.Logger
}

// NewDispatcher returns a dispatcher that builds devices bound to sender and
// stores them in registry.
func NewDispatcher(registry *homee.Registry, sender homee.RequestSender) *Dispatcher {
	return &Dispatcher{registry: registry, sender: sender, logger: noopLogger{}}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger homee.Logger) {
	d.logger = logger
}

// Registry returns the registry the dispatcher writes to.
func (d *Dispatcher) Registry() *homee.Registry { return d.registry }

// DispatchJSON decodes one frame and dispatches it.
func (d *Dispatcher) DispatchJSON(data []byte) error {
	var envelope any
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%w: %w", homee.ErrMalformedMessage, err)
	}
	return d.Dispatch(envelope)
}

// Dispatch applies one decoded envelope. An envelope must be an object with
// exactly one recognised key whose payload has the expected shape; anything
// else fails with homee.ErrUnsupportedMessage.
func (d *Dispatcher) Dispatch(envelope any) error {
	m, ok := envelope.(map[string]any)
	if !ok || len(m) != 1 {
		return &homee.UnsupportedMessageError{Envelope: envelope}
	}

	var (
		key     string
		payload any
	)
	for k, v := range m {
		key, payload = k, v
	}

	switch key {
	case keyAttribute:
		attr, ok := payload.(map[string]any)
		if !ok {
			break
		}
		nodeID, okNode := intField(attr, "node_id")
		attrID, okAttr := intField(attr, "id")
		if !okNode || !okAttr {
			break
		}
		_, err := d.registry.RouteAttributeUpdate(nodeID, attrID, attr)
		return err

	case keyNode:
		node, ok := payload.(map[string]any)
		if !ok {
			break
		}
		dev, err := homee.NewDevice(node, d.sender)
		if err != nil {
			return err
		}
		return d.registry.AddOrReplace(dev)

	case keyNodes:
		nodes, ok := payload.([]any)
		if !ok {
			break
		}
		var errs []error
		for _, node := range nodes {
			if err := d.Dispatch(map[string]any{keyNode: node}); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case keyAll:
		all, ok := payload.(map[string]any)
		if !ok {
			break
		}
		var errs []error
		for _, sub := range sortedKeys(all) {
			if err := d.Dispatch(map[string]any{sub: all[sub]}); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	default:
		kind, inert := inertKeys[key]
		if !inert || !hasKind(payload, kind) {
			break
		}
		d.logger.Debug("ignoring resource", "key", key)
		return nil
	}

	return &homee.UnsupportedMessageError{Envelope: envelope}
}

func hasKind(v any, kind payloadKind) bool {
	switch kind {
	case kindMap:
		_, ok := v.(map[string]any)
		return ok
	case kindList:
		_, ok := v.([]any)
		return ok
	}
	return false
}

// bulkOrder puts nodes first so attribute payloads in the same snapshot
// find their devices.
var bulkOrder = map[string]int{keyNodes: 0, keyNode: 1}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		ra, okA := bulkOrder[a]
		rb, okB := bulkOrder[b]
		switch {
		case okA && okB:
			return ra - rb
		case okA:
			return -1
		case okB:
			return 1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})
	return keys
}

func intField(m map[string]any, key string) (int, bool) {
	switch n := m[key].(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
