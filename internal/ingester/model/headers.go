package model

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Header is one name in a header mapping together with every value recorded for it.
type Header struct {
	Name   string
	Values []string
}

// Headers is an ordered multi-valued header mapping. Access log lines carry
// headers as a JSON object of string arrays; decoding into a Go map would
// reorder names and merge repeats, so Headers keeps (name, values) pairs in
// document order instead. Marshalling reproduces the original object member
// for member, which makes it safe to use as the storage form.
type Headers []Header

func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return errors.WithStack(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("expected a JSON object of headers, got %v", tok)
	}
	headers := Headers{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return errors.WithStack(err)
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Errorf("expected a header name, got %v", tok)
		}
		var values []string
		if err := dec.Decode(&values); err != nil {
			return errors.WithMessagef(err, "values of header %q", name)
		}
		headers = append(headers, Header{Name: name, Values: values})
	}
	if _, err := dec.Token(); err != nil {
		return errors.WithStack(err)
	}
	*h = headers
	return nil
}

func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, header := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(header.Name)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf.Write(name)
		buf.WriteByte(':')
		values, err := json.Marshal(header.Values)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		buf.Write(values)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
