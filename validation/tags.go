// Package validation describes configuration structs from their koanf and validate
// tags, so the accepted keys and their rules can be listed without reading the source.
package validation

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Field is one leaf key of a configuration struct.
type Field struct {
	Path        string            // dot-separated koanf key
	Type        string            // string, int, bool, duration, ...
	Constraints map[string]string // validate rules, e.g. oneof -> "postgresql oracle"
	Optional    bool              // validate carries omitempty
}

// Rules renders Constraints as "rule=param" pairs in sorted order.
func (f Field) Rules() string {
	keys := make([]string, 0, len(f.Constraints))
	for k := range f.Constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := f.Constraints[k]; v != "" {
			parts = append(parts, k+"="+v)
		} else {
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, ",")
}

var durationType = reflect.TypeOf(time.Duration(0))

// Describe walks t, recursing into nested structs, and returns its leaf keys in
// declaration order. Fields without a koanf tag, tagged "-", unexported, or of map type
// are skipped.
func Describe(t reflect.Type) []Field {
	var fields []Field
	describe(t, "", &fields)
	return fields
}

func describe(t reflect.Type, prefix string, out *[]Field) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return
	}

	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := strings.SplitN(sf.Tag.Get("koanf"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		path := prefix + name

		ft := sf.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch {
		case ft == durationType:
		case ft.Kind() == reflect.Struct && ft.PkgPath() != "time":
			describe(ft, path+".", out)
			continue
		case ft.Kind() == reflect.Map:
			continue
		}

		constraints, optional := ParseConstraints(sf.Tag.Get("validate"))
		*out = append(*out, Field{
			Path:        path,
			Type:        typeName(ft),
			Constraints: constraints,
			Optional:    optional,
		})
	}
}

// ParseConstraints splits a validate tag into rule -> parameter pairs. omitempty is
// reported separately; dive stops parsing since later rules apply to elements.
func ParseConstraints(tag string) (map[string]string, bool) {
	constraints := map[string]string{}
	optional := false
	if tag == "" || tag == "-" {
		return constraints, optional
	}
	for _, rule := range strings.Split(tag, ",") {
		rule = strings.TrimSpace(rule)
		switch rule {
		case "":
			continue
		case "omitempty":
			optional = true
			continue
		case "dive":
			return constraints, optional
		}
		key, param, _ := strings.Cut(rule, "=")
		constraints[key] = param
	}
	return constraints, optional
}

func typeName(t reflect.Type) string {
	if t == durationType {
		return "duration"
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "uint"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.Slice:
		return "[]" + typeName(t.Elem())
	default:
		return t.Kind().String()
	}
}
