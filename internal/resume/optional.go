package resume

import "encoding/json"

// OptionalString distinguishes the three states an update payload can carry
// for a field: absent (leave unchanged), explicit null (clear), and a value
// (replace). Collapsing absent and null would break photo update semantics.
type OptionalString struct {
	Present bool
	Valid   bool
	Value   string
}

// UnmarshalJSON is only invoked when the field is present in the payload,
// which is what records Present.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(data) == "null" {
		o.Valid = false
		o.Value = ""
		return nil
	}
	if err := json.Unmarshal(data, &o.Value); err != nil {
		return err
	}
	o.Valid = true
	return nil
}

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if !o.Present || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
