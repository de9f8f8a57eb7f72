package client

import (
	"fmt"
	"strconv"
	"strings"
)

// Document is a schema-less record.
type Document map[string]interface{}

func (d Document) RecordID() string {
	if id, ok := d["id"].(string); ok {
		return id
	}
	return ""
}

// Lookup reads a dotted path; numeric segments index arrays.
func (d Document) Lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(d)
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]interface{}:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case Document:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String renders the value at path for display; missing values are "".
func (d Document) String(path string) string {
	v, ok := d.Lookup(path)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Set writes a dotted path, creating intermediate objects and growing
// arrays as needed.
func (d Document) Set(path string, value interface{}) {
	segs := strings.Split(path, ".")
	d[segs[0]] = setPath(d[segs[0]], segs[1:], value)
}

func setPath(node interface{}, segs []string, value interface{}) interface{} {
	if len(segs) == 0 {
		return value
	}
	if i, err := strconv.Atoi(segs[0]); err == nil && i >= 0 {
		arr, _ := node.([]interface{})
		for len(arr) <= i {
			arr = append(arr, nil)
		}
		arr[i] = setPath(arr[i], segs[1:], value)
		return arr
	}
	obj, ok := node.(map[string]interface{})
	if !ok {
		if doc, isDoc := node.(Document); isDoc {
			obj = doc
		} else {
			obj = map[string]interface{}{}
		}
	}
	obj[segs[0]] = setPath(obj[segs[0]], segs[1:], value)
	return obj
}

// Clone deep-copies the document's maps and slices.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]interface{}(d)).(map[string]interface{}))
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case Document:
		return cloneValue(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
