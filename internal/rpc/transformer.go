// Package rpc は /api/trpc にマウントする型付きプロシージャ呼び出しの
// サーバー・クライアント・シリアライズ変換を提供する。
package rpc

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// TypeDate はmeta.valuesで日時を表す型注釈。
const TypeDate = "Date"

// Envelope は変換済みの値とその型注釈をまとめたワイヤーフォーマット。
//
//	{"json": <value>, "meta": {"values": {"createdAt": ["Date"]}}}
type Envelope struct {
	JSON json.RawMessage `json:"json"`
	Meta *Meta           `json:"meta,omitempty"`
}

// Meta は型注釈。キーはドット区切りのパスで、配列要素は添字で表す。
type Meta struct {
	Values map[string][]string `json:"values,omitempty"`
}

// Transformer はプロシージャの入出力をEnvelopeへ相互変換する。
type Transformer interface {
	Serialize(v any) (Envelope, error)
	Deserialize(env Envelope, v any) error
}

// DateTransformer は日時を文字列化しつつ、型注釈で往復させるTransformer。
// 型付きの受け手（time.Timeフィールド）にはそのまま復元され、
// any で受けた場合は型注釈のパスがtime.Timeに戻る。
type DateTransformer struct{}

// Serialize はvをJSON化し、日時のパスをmetaに記録する。
func (DateTransformer) Serialize(v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal value: %w", err)
	}

	values := make(map[string][]string)
	collectDatePaths(reflect.ValueOf(v), nil, values)

	env := Envelope{JSON: raw}
	if len(values) > 0 {
		env.Meta = &Meta{Values: values}
	}
	return env, nil
}

// Deserialize はEnvelopeをvへ復元する。vはポインタでなければならない。
func (DateTransformer) Deserialize(env Envelope, v any) error {
	raw := env.JSON
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}

	if target, ok := v.(*any); ok {
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("failed to unmarshal value: %w", err)
		}
		if env.Meta != nil {
			for path, types := range env.Meta.Values {
				if len(types) == 0 || types[0] != TypeDate {
					continue
				}
				restored, err := restoreDate(generic, splitPath(path))
				if err != nil {
					return fmt.Errorf("failed to restore %q: %w", path, err)
				}
				generic = restored
			}
		}
		*target = generic
		return nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

var (
	timeType      = reflect.TypeOf(time.Time{})
	marshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
)

// collectDatePaths はencoding/jsonと同じフィールド名規則で値を辿り、
// time.Timeが現れるパスを集める。
func collectDatePaths(v reflect.Value, path []string, out map[string][]string) {
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return
		}
		collectDatePaths(v.Elem(), path, out)
		return
	}

	if v.Type() == timeType {
		out[joinPath(path)] = []string{TypeDate}
		return
	}
	if v.Type().Implements(marshalerType) {
		return
	}

	switch v.Kind() {
	case reflect.Struct:
		collectStructDatePaths(v, path, out)
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
			return
		}
		for i := 0; i < v.Len(); i++ {
			collectDatePaths(v.Index(i), append(path, strconv.Itoa(i)), out)
		}
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			collectDatePaths(iter.Value(), append(path, iter.Key().String()), out)
		}
	}
}

func collectStructDatePaths(v reflect.Value, path []string, out map[string][]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name, opts, tagged := parseJSONTag(field)
		if name == "-" && !tagged {
			continue
		}
		fv := v.Field(i)

		if field.Anonymous && !tagged {
			ft := field.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct && ft != timeType {
				collectDatePaths(fv, path, out)
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		if strings.Contains(opts, "omitzero") && fv.IsZero() {
			continue
		}
		if strings.Contains(opts, "omitempty") && isEmptyValue(fv) {
			continue
		}
		if name == "" {
			name = field.Name
		}
		collectDatePaths(fv, append(path, name), out)
	}
}

// parseJSONTag はjsonタグの名前とオプションを返す。
// taggedはタグで名前が明示されているかどうか。
func parseJSONTag(field reflect.StructField) (name, opts string, tagged bool) {
	tag, ok := field.Tag.Lookup("json")
	if !ok {
		return "", "", false
	}
	if tag == "-" {
		return "-", "", false
	}
	name, opts, _ = strings.Cut(tag, ",")
	return name, opts, name != ""
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Interface, reflect.Pointer:
		return v.IsZero()
	}
	return false
}

// joinPath はパス要素をドットで連結する。要素内のドットは\.にエスケープする。
func joinPath(path []string) string {
	escaped := make([]string, len(path))
	for i, p := range path {
		escaped[i] = strings.ReplaceAll(p, ".", `\.`)
	}
	return strings.Join(escaped, ".")
}

// splitPath はjoinPathの逆変換。
func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	var parts []string
	var cur strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c == '\\' && i+1 < len(path) && path[i+1] == '.' {
			cur.WriteByte('.')
			i++
			continue
		}
		if c == '.' {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	return append(parts, cur.String())
}

// restoreDate はgeneric内のpathが指す文字列をtime.Timeに置き換える。
func restoreDate(node any, path []string) (any, error) {
	if len(path) == 0 {
		s, ok := node.(string)
		if !ok {
			return nil, fmt.Errorf("date value is %T, not string", node)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, err
		}
		return t, nil
	}

	switch n := node.(type) {
	case map[string]any:
		child, ok := n[path[0]]
		if !ok {
			return nil, fmt.Errorf("key %q not found", path[0])
		}
		restored, err := restoreDate(child, path[1:])
		if err != nil {
			return nil, err
		}
		n[path[0]] = restored
		return n, nil
	case []any:
		idx, err := strconv.Atoi(path[0])
		if err != nil || idx < 0 || idx >= len(n) {
			return nil, fmt.Errorf("index %q out of range", path[0])
		}
		restored, err := restoreDate(n[idx], path[1:])
		if err != nil {
			return nil, err
		}
		n[idx] = restored
		return n, nil
	default:
		return nil, fmt.Errorf("cannot descend into %T", node)
	}
}

// compile-time interface check
var _ Transformer = DateTransformer{}
