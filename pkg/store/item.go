package store

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Item is one record of a resource. Identity is the "id" field; nothing else
// about its shape is assumed.
type Item map[string]any

// ID returns the item's id in its string form. Numeric ids are rendered in
// decimal so 7, 7.0 and "7" all compare equal. It is "" when absent.
func (i Item) ID() string {
	return idString(i["id"])
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	if i == nil {
		return nil
	}
	return deepCopy(map[string]any(i)).(map[string]any)
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		if n, err := id.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		return id.String()
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprintf("%v", id)
	}
}

// deepCopy copies maps and slices recursively and turns json.Number into
// int64 or float64. Other values are returned as is.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case Item:
		return deepCopy(map[string]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// toItems converts a payload into items. A list becomes its elements; a
// single object becomes a one-element list with single set to true.
// Anything else is rejected.
func toItems(payload any) (items []Item, single bool, err error) {
	switch p := payload.(type) {
	case []Item:
		items = make([]Item, len(p))
		for i, it := range p {
			items[i] = it.Clone()
		}
		return items, false, nil
	case []map[string]any:
		items = make([]Item, len(p))
		for i, it := range p {
			items[i] = Item(it).Clone()
		}
		return items, false, nil
	case []any:
		items = make([]Item, 0, len(p))
		for i, el := range p {
			obj, ok := el.(map[string]any)
			if !ok {
				if it, isItem := el.(Item); isItem {
					obj = it
				} else {
					return nil, false, fmt.Errorf("element %d is %T, want an object", i, el)
				}
			}
			items = append(items, Item(obj).Clone())
		}
		return items, false, nil
	case Item:
		return []Item{p.Clone()}, true, nil
	case map[string]any:
		return []Item{Item(p).Clone()}, true, nil
	default:
		return nil, false, fmt.Errorf("cannot store %T as items", payload)
	}
}

func cloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}
