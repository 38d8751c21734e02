package pipes

import (
	"bytes"
	"encoding/json"
	"errors"
)

type MetadataType string

const (
	TypeInfer      MetadataType = "__infer__"
	TypeText       MetadataType = "text"
	TypeURL        MetadataType = "url"
	TypePath       MetadataType = "path"
	TypeNotebook   MetadataType = "notebook"
	TypeJSON       MetadataType = "json"
	TypeMd         MetadataType = "md"
	TypeFloat      MetadataType = "float"
	TypeInt        MetadataType = "int"
	TypeBool       MetadataType = "bool"
	TypeDagsterRun MetadataType = "dagster_run"
	TypeAsset      MetadataType = "asset"
	TypeNull       MetadataType = "null"
	TypeTimestamp  MetadataType = "timestamp"
	TypeJob        MetadataType = "job"
)

// Metadata is the key/value set attached to materializations and checks.
type Metadata map[string]*MetadataValue

// MetadataValue is a typed metadata entry as it travels on the wire.
type MetadataValue struct {
	RawValue *RawValue    `json:"raw_value"`
	Type     MetadataType `json:"type,omitempty"`
}

// RawValue is a JSON union. At most one field is set; all nil means null.
type RawValue struct {
	Integer *int64
	Double  *float64
	Bool    *bool
	String  *string
	Array   []any
	Map     map[string]any
}

// Value returns the held value as a plain Go value.
func (r *RawValue) Value() any {
	switch {
	case r == nil:
		return nil
	case r.Integer != nil:
		return *r.Integer
	case r.Double != nil:
		return *r.Double
	case r.Bool != nil:
		return *r.Bool
	case r.String != nil:
		return *r.String
	case r.Array != nil:
		return r.Array
	case r.Map != nil:
		return r.Map
	}
	return nil
}

func (r *RawValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

func (r *RawValue) UnmarshalJSON(data []byte) error {
	*r = RawValue{}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch v := tok.(type) {
	case nil:
		return nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			r.Integer = &i
			return nil
		}
		f, err := v.Float64()
		if err != nil {
			return errors.New("unparsable number")
		}
		r.Double = &f
		return nil
	case bool:
		r.Bool = &v
		return nil
	case string:
		r.String = &v
		return nil
	case json.Delim:
		switch v {
		case '{':
			return json.Unmarshal(data, &r.Map)
		case '[':
			return json.Unmarshal(data, &r.Array)
		}
	}
	return errors.New("cannot unmarshal metadata raw value")
}

// Value returns the plain Go value of the entry, or nil for a null entry.
func (v *MetadataValue) Value() any {
	if v == nil {
		return nil
	}
	return v.RawValue.Value()
}

// Validate checks that the raw value fits the declared type.
func (v *MetadataValue) Validate() error {
	if v == nil {
		return nil
	}
	r := v.RawValue
	switch v.Type {
	case "", TypeInfer:
		return nil
	case TypeNull:
		if r.Value() != nil {
			return errors.New("null metadata carries a value")
		}
		return nil
	}
	if r.Value() == nil {
		return errors.New("metadata of type " + string(v.Type) + " has no value")
	}
	switch v.Type {
	case TypeInt:
		if r.Integer == nil {
			return errors.New("int metadata is not an integer")
		}
	case TypeFloat, TypeTimestamp:
		if r.Double == nil && r.Integer == nil {
			return errors.New(string(v.Type) + " metadata is not a number")
		}
	case TypeBool:
		if r.Bool == nil {
			return errors.New("bool metadata is not a boolean")
		}
	case TypeJSON:
		if r.Map == nil && r.Array == nil {
			return errors.New("json metadata is not an object or array")
		}
	case TypeText, TypeURL, TypePath, TypeNotebook, TypeMd, TypeDagsterRun, TypeAsset, TypeJob:
		if r.String == nil {
			return errors.New(string(v.Type) + " metadata is not a string")
		}
	default:
		return errors.New("unknown metadata type " + string(v.Type))
	}
	return nil
}
