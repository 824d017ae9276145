package graph

import "reflect"

// CopyValue returns a deep copy of v. Maps, slices, arrays and pointers are
// copied recursively; other values are returned as they are.
func CopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case string, bool, float64, float32, int, int64, int32:
		return t
	}
	return copyReflect(reflect.ValueOf(v)).Interface()
}

func copyReflect(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), copyElem(iter.Value(), v.Type().Elem()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyElem(v.Index(i), v.Type().Elem()))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(copyElem(v.Index(i), v.Type().Elem()))
		}
		return out
	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(copyElem(v.Elem(), v.Type().Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		return copyReflect(v.Elem())
	}
	return v
}

// copyElem copies an element and converts it back to the container's
// element type (interface elements come back as their dynamic type).
func copyElem(v reflect.Value, elemType reflect.Type) reflect.Value {
	c := copyReflect(v)
	if !c.IsValid() {
		return reflect.Zero(elemType)
	}
	if c.Type() != elemType {
		out := reflect.New(elemType).Elem()
		out.Set(c)
		return out
	}
	return c
}

func copyParameters(params []ConfigParameter) []ConfigParameter {
	if params == nil {
		return nil
	}
	out := make([]ConfigParameter, len(params))
	for i, p := range params {
		p.DefaultValue = CopyValue(p.DefaultValue)
		p.ParamValue = CopyValue(p.ParamValue)
		out[i] = p
	}
	return out
}
