package attrvalue

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the single-key wire object, e.g. {"N":"12"} or
// {"L":[{"S":"a"}]}. Binary payloads travel base64-encoded.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Type {
	case TypeString:
		return json.Marshal(map[string]string{"S": v.S})
	case TypeNumber:
		return json.Marshal(map[string]string{"N": v.N})
	case TypeBinary:
		return json.Marshal(map[string]string{"B": base64.StdEncoding.EncodeToString(v.B)})
	case TypeBool:
		return json.Marshal(map[string]bool{"BOOL": v.Bool})
	case TypeNull:
		return json.Marshal(map[string]bool{"NULL": true})
	case TypeList:
		list := v.List
		if list == nil {
			list = []Value{}
		}
		return json.Marshal(map[string][]Value{"L": list})
	case TypeMap:
		m := v.Map
		if m == nil {
			m = map[string]Value{}
		}
		return json.Marshal(map[string]map[string]Value{"M": m})
	case TypeStringSet:
		return json.Marshal(map[string][]string{"SS": v.SS})
	case TypeNumberSet:
		return json.Marshal(map[string][]string{"NS": v.NS})
	case TypeBinarySet:
		encoded := make([]string, len(v.BS))
		for i, b := range v.BS {
			encoded[i] = base64.StdEncoding.EncodeToString(b)
		}
		return json.Marshal(map[string][]string{"BS": encoded})
	}
	return nil, fmt.Errorf("cannot marshal attribute value of type %q", v.Type)
}

// UnmarshalJSON decodes the single-key wire object. An object with zero or
// more than one key, or an unknown discriminator, is rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("attribute value must be an object: %w", err)
	}
	if len(raw) != 1 {
		return fmt.Errorf("attribute value must contain exactly one type key, got %d", len(raw))
	}
	for tag, payload := range raw {
		return v.decode(Type(tag), payload)
	}
	return nil
}

func (v *Value) decode(tag Type, payload json.RawMessage) error {
	*v = Value{Type: tag}
	switch tag {
	case TypeString:
		return json.Unmarshal(payload, &v.S)
	case TypeNumber:
		return json.Unmarshal(payload, &v.N)
	case TypeBinary:
		return unmarshalBase64(payload, &v.B)
	case TypeBool:
		return json.Unmarshal(payload, &v.Bool)
	case TypeNull:
		var null bool
		return json.Unmarshal(payload, &null)
	case TypeList:
		v.List = []Value{}
		return json.Unmarshal(payload, &v.List)
	case TypeMap:
		v.Map = map[string]Value{}
		return json.Unmarshal(payload, &v.Map)
	case TypeStringSet:
		return json.Unmarshal(payload, &v.SS)
	case TypeNumberSet:
		return json.Unmarshal(payload, &v.NS)
	case TypeBinarySet:
		var encoded []string
		if err := json.Unmarshal(payload, &encoded); err != nil {
			return err
		}
		v.BS = make([][]byte, len(encoded))
		for i, s := range encoded {
			b, err := base64.StdEncoding.DecodeString(s)
			if err != nil {
				return fmt.Errorf("binary set element %d: %w", i, err)
			}
			v.BS[i] = b
		}
		return nil
	}
	return fmt.Errorf("unknown attribute value type %q", tag)
}

func unmarshalBase64(payload json.RawMessage, dst *[]byte) error {
	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return err
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid base64 binary payload: %w", err)
	}
	*dst = b
	return nil
}
