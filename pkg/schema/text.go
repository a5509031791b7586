package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Text is a string field that also accepts a bare JSON number or
// boolean and keeps its literal text, so a pin sent as 1234 reads as
// "1234". null decodes to "". Objects and arrays are rejected.
type Text string

func (t *Text) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		*t = Text(n)
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		*t = Text(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("schema: cannot read %s as text", raw)
}

func (t Text) String() string { return string(t) }
