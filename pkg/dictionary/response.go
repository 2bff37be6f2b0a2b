package dictionary

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// searchResponse is the search.do payload.
type searchResponse struct {
	Channel struct {
		Total flexInt         `json:"total"`
		Item  json.RawMessage `json:"item"`
	} `json:"channel"`
}

type searchItem struct {
	Word       string          `json:"word"`
	TargetCode flexInt         `json:"target_code"`
	SupNo      json.RawMessage `json:"sup_no"`
	POS        string          `json:"pos"`
	Sense      json.RawMessage `json:"sense"`
}

type searchSense struct {
	SenseNo    flexInt `json:"sense_no"`
	Definition string  `json:"definition"`
	Type       string  `json:"type"`
	Link       string  `json:"link"`
}

// viewResponse is the view.do payload.
type viewResponse struct {
	Channel struct {
		Item json.RawMessage `json:"item"`
	} `json:"channel"`
}

type viewItem struct {
	Word       string          `json:"word"`
	TargetCode flexInt         `json:"target_code"`
	SupNo      json.RawMessage `json:"sup_no"`
	POS        string          `json:"pos"`
	Sense      json.RawMessage `json:"sense"`
}

type viewSense struct {
	SenseNo    flexInt         `json:"sense_no"`
	Definition string          `json:"definition"`
	Type       string          `json:"type"`
	Cat        string          `json:"cat"`
	Origin     string          `json:"origin"`
	Examples   json.RawMessage `json:"example"`
	Lexical    json.RawMessage `json:"lexical_info"`
}

type lexicalInfo struct {
	Word string `json:"word"`
	Type string `json:"type"`
}

type exampleInfo struct {
	Example string `json:"example"`
}

// flexInt accepts JSON numbers and numeric strings. Anything else decodes to 0.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	*f = flexInt(parseNumeric(b))
	return nil
}

// parseNumeric reads a JSON number or numeric string; non-numeric or absent values give 0.
func parseNumeric(raw json.RawMessage) int64 {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// decodeList decodes raw as either a JSON array of T or a single T object.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var out []T
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	if raw[0] == '"' {
		// a bare string where a list was expected carries no structured data
		return nil, nil
	}
	var one T
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}
