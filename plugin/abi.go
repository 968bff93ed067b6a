package plugin

import (
	"strings"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
)

// Signature describes one host function in WIT terms. Core wasm parameter
// and result types are derived from it by flattening.
type Signature struct {
	Name    string
	Params  []Param
	Results []wit.Type
}

// Param is a named WIT parameter.
type Param struct {
	Type wit.Type
	Name string
}

// String renders the signature in WIT function syntax.
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteString(": func(")
	for i, p := range s.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(typeName(p.Type))
	}
	b.WriteByte(')')
	if len(s.Results) > 0 {
		b.WriteString(" -> ")
		b.WriteString(typeName(s.Results[0]))
	}
	return b.String()
}

// CoreParams returns the flattened core wasm parameter types.
func (s Signature) CoreParams() []api.ValueType {
	var types []api.ValueType
	for _, p := range s.Params {
		types = append(types, flatTypes(p.Type)...)
	}
	return types
}

// CoreResults returns the flattened core wasm result types.
func (s Signature) CoreResults() []api.ValueType {
	var types []api.ValueType
	for _, r := range s.Results {
		types = append(types, flatTypes(r)...)
	}
	return types
}

// CoreParamNames names each flattened core parameter. Multi-value
// parameters get _ptr and _len suffixes.
func (s Signature) CoreParamNames() []string {
	var names []string
	for _, p := range s.Params {
		flat := flatTypes(p.Type)
		if len(flat) == 1 {
			names = append(names, p.Name)
			continue
		}
		names = append(names, p.Name+"_ptr", p.Name+"_len")
	}
	return names
}

// Signatures lists the host functions exported to guests.
var Signatures = []Signature{
	{Name: "add_ref_resource", Params: []Param{{Name: "resource", Type: wit.U32{}}}, Results: []wit.Type{wit.Bool{}}},
	{Name: "release_resource", Params: []Param{{Name: "resource", Type: wit.U32{}}}, Results: []wit.Type{wit.Bool{}}},
	{Name: "add_ref_var", Params: []Param{{Name: "var", Type: wit.U32{}}}, Results: []wit.Type{wit.Bool{}}},
	{Name: "release_var", Params: []Param{{Name: "var", Type: wit.U32{}}}, Results: []wit.Type{wit.Bool{}}},
	{Name: "buffer_create", Params: []Param{{Name: "size", Type: wit.U32{}}}, Results: []wit.Type{wit.U32{}}},
	{Name: "buffer_size", Params: []Param{{Name: "resource", Type: wit.U32{}}}, Results: []wit.Type{wit.U32{}}},
	{Name: "var_from_utf8", Params: []Param{{Name: "text", Type: wit.String{}}}, Results: []wit.Type{wit.U32{}}},
	{Name: "var_length", Params: []Param{{Name: "var", Type: wit.U32{}}}, Results: []wit.Type{wit.U32{}}},
	{Name: "live_objects", Results: []wit.Type{wit.U32{}}},
}

func flatTypes(t wit.Type) []api.ValueType {
	switch t.(type) {
	case wit.Bool, wit.U8, wit.S8, wit.U16, wit.S16, wit.U32, wit.S32, wit.Char:
		return []api.ValueType{api.ValueTypeI32}
	case wit.U64, wit.S64:
		return []api.ValueType{api.ValueTypeI64}
	case wit.F32:
		return []api.ValueType{api.ValueTypeF32}
	case wit.F64:
		return []api.ValueType{api.ValueTypeF64}
	case wit.String:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	}
	return []api.ValueType{api.ValueTypeI32}
}

func typeName(t wit.Type) string {
	switch t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	}
	return "unknown"
}
