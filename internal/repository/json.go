package repository

import "encoding/json"

// jsonArray encodes v for a NOT NULL jsonb array column; nil becomes [].
func jsonArray(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return []byte("[]")
	}
	return b
}

// jsonNullable encodes v, mapping nil to SQL NULL.
func jsonNullable(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}

func unmarshalIfSet(b []byte, dest any) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, dest)
}
