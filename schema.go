package seqdex

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	domevent "github.com/kailas-cloud/seqdex/internal/domain/event"
	"github.com/kailas-cloud/seqdex/internal/domain/index/field"
)

const tagKey = "seqdex"

var timeType = reflect.TypeFor[time.Time]()

// schemaMeta holds parsed struct tag metadata, cached per TypedIndex.
type schemaMeta struct {
	typ   reflect.Type
	ptr   bool // T is a pointer to typ
	idIdx int

	// Schema fields for index creation.
	fields []Field

	// Every mapped struct field, indexed or not.
	mapped []fieldMapping
}

type fieldMapping struct {
	structIdx int
	name      string
}

// parseSchema reflects on T and extracts seqdex struct tag metadata.
//
//	type Login struct {
//	    ID   string    `seqdex:"id,id"`
//	    At   time.Time `seqdex:"@timestamp,date"`
//	    User string    `seqdex:"user.name,keyword"`
//	    Note string    `seqdex:"note"` // stored, not indexed
//	}
func parseSchema[T any]() (*schemaMeta, error) {
	t := reflect.TypeFor[T]()
	ptr := t.Kind() == reflect.Pointer
	if ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("seqdex: type %s is not a struct", t)
	}

	meta := &schemaMeta{typ: t, ptr: ptr, idIdx: -1}
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get(tagKey)
		if tag == "" || tag == "-" || !f.IsExported() {
			continue
		}
		if err := applyTag(meta, i, f, tag); err != nil {
			return nil, err
		}
	}

	if meta.idIdx == -1 {
		return nil, fmt.Errorf("seqdex: no field with `seqdex:\"...,id\"` tag in %s", t)
	}
	return meta, nil
}

// applyTag processes a single struct field's seqdex tag.
func applyTag(meta *schemaMeta, idx int, f reflect.StructField, tag string) error {
	name, modifier, _ := strings.Cut(tag, ",")
	if name == "" {
		return fmt.Errorf("seqdex: empty name in tag on field %s", f.Name)
	}

	switch modifier {
	case "id":
		if meta.idIdx != -1 {
			return fmt.Errorf("seqdex: duplicate id tag on field %s", f.Name)
		}
		if f.Type.Kind() != reflect.String {
			return fmt.Errorf("seqdex: id field %s must be a string", f.Name)
		}
		meta.idIdx = idx
		return nil
	case "":
		// Stored in the source, not indexed.
	default:
		ft := field.Type(modifier)
		if !ft.IsValid() {
			return fmt.Errorf("seqdex: unknown modifier %q on field %s", modifier, f.Name)
		}
		if err := checkKind(ft, f); err != nil {
			return err
		}
		meta.fields = append(meta.fields, Field{Name: name, Type: FieldType(ft)})
	}
	meta.mapped = append(meta.mapped, fieldMapping{structIdx: idx, name: name})
	return nil
}

func checkKind(ft field.Type, f reflect.StructField) error {
	ok := false
	switch ft {
	case field.Keyword:
		ok = f.Type.Kind() == reflect.String || isNumber(f.Type.Kind()) || f.Type.Kind() == reflect.Bool
	case field.Numeric:
		ok = isNumber(f.Type.Kind())
	case field.Date:
		ok = f.Type == timeType || isInt(f.Type.Kind()) || f.Type.Kind() == reflect.String
	case field.Boolean:
		ok = f.Type.Kind() == reflect.Bool
	}
	if !ok {
		return fmt.Errorf("seqdex: field %s of type %s cannot be indexed as %s", f.Name, f.Type, ft)
	}
	return nil
}

func isInt(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func isNumber(k reflect.Kind) bool {
	return isInt(k) || k == reflect.Float32 || k == reflect.Float64
}

// toEvent converts a typed struct into an event ID and source. Dotted
// names are stored as nested objects.
func (m *schemaMeta) toEvent(item any) (string, map[string]any) {
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}

	source := make(map[string]any, len(m.mapped))
	for _, fm := range m.mapped {
		setPath(source, fm.name, sourceValue(v.Field(fm.structIdx)))
	}
	return v.Field(m.idIdx).String(), source
}

func sourceValue(v reflect.Value) any {
	switch {
	case v.Type() == timeType:
		return v.Interface().(time.Time).UnixMilli()
	case isInt(v.Kind()) && v.CanInt():
		return v.Int()
	case isInt(v.Kind()):
		return int64(v.Uint()) //nolint:gosec // event values fit in int64
	case v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64:
		return v.Float()
	}
	return v.Interface()
}

func setPath(source map[string]any, path string, val any) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := source[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			source[p] = next
		}
		source = next
	}
	source[parts[len(parts)-1]] = val
}

// fromEvent rebuilds a typed struct from a stored event. Fields missing
// from the source or of the wrong type keep their zero value.
func (m *schemaMeta) fromEvent(id string, source map[string]any) any {
	v := reflect.New(m.typ).Elem()
	v.Field(m.idIdx).SetString(id)
	for _, fm := range m.mapped {
		raw, ok := domevent.Lookup(source, fm.name)
		if !ok || raw == nil {
			continue
		}
		assign(v.Field(fm.structIdx), raw)
	}
	if m.ptr {
		return v.Addr().Interface()
	}
	return v.Interface()
}

func assign(dst reflect.Value, raw any) {
	if dst.Type() == timeType {
		if ms, err := field.ParseDate(raw); err == nil {
			dst.Set(reflect.ValueOf(time.UnixMilli(ms).UTC()))
		}
		return
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(domevent.Keyword(raw))
	case reflect.Bool:
		switch b := raw.(type) {
		case bool:
			dst.SetBool(b)
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				dst.SetBool(parsed)
			}
		}
	case reflect.Float32, reflect.Float64:
		if f, ok := toFloat64(raw); ok {
			dst.SetFloat(f)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f, ok := toFloat64(raw); ok {
			dst.SetInt(int64(f))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f, ok := toFloat64(raw); ok && f >= 0 {
			dst.SetUint(uint64(f))
		}
	default:
		rv := reflect.ValueOf(raw)
		if rv.Type().AssignableTo(dst.Type()) {
			dst.Set(rv)
		}
	}
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
