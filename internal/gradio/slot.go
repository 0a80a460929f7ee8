package gradio

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Slot is one component update inside a data message.
type Slot struct {
	Visible bool
	Value   json.RawMessage
}

// FileRef points at a file held by the app.
type FileRef struct {
	Name   string `json:"name"`
	IsFile bool   `json:"is_file"`
	Data   string `json:"data,omitempty"`
}

// DecodeSlot reads a {visible, value} component update. A missing visible
// flag counts as hidden; null decodes to a zero Slot.
func DecodeSlot(raw json.RawMessage) (Slot, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Slot{}, nil
	}
	var v struct {
		Visible *bool           `json:"visible"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return Slot{}, fmt.Errorf("decode slot: %w", err)
	}
	s := Slot{Value: v.Value}
	if v.Visible != nil {
		s.Visible = *v.Visible
	}
	return s, nil
}

func (s Slot) isNull() bool {
	t := bytes.TrimSpace(s.Value)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// Text returns the value as a string. ok is false when the value is absent
// or not a string.
func (s Slot) Text() (string, bool) {
	if s.isNull() {
		return "", false
	}
	var out string
	if err := json.Unmarshal(s.Value, &out); err != nil {
		return "", false
	}
	return out, true
}

// Files decodes a gallery or file value. Gallery entries may be bare file
// objects or [file, caption] pairs.
func (s Slot) Files() ([]FileRef, error) {
	if s.isNull() {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(s.Value, &items); err != nil {
		ref, err := decodeFileRef(s.Value)
		if err != nil {
			return nil, err
		}
		return []FileRef{ref}, nil
	}
	refs := make([]FileRef, 0, len(items))
	for _, item := range items {
		ref, err := decodeFileRef(item)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func decodeFileRef(raw json.RawMessage) (FileRef, error) {
	var ref FileRef
	if err := json.Unmarshal(raw, &ref); err == nil {
		return ref, nil
	}
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) == 0 {
		return FileRef{}, fmt.Errorf("decode file reference: %s", truncate(string(raw), 64))
	}
	if err := json.Unmarshal(pair[0], &ref); err != nil {
		return FileRef{}, fmt.Errorf("decode file reference: %w", err)
	}
	return ref, nil
}
