package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Feedback is a single rating/comment record keyed by a client-supplied ID.
// Comment holds plaintext inside the service and a ciphertext envelope in storage.
type Feedback struct {
	ID        string `json:"id"`
	Rating    Rating `json:"rating"`
	Comment   string `json:"comment"`
	Timestamp string `json:"timestamp"`
	UserAgent string `json:"userAgent"`
}

// ErrInvalidRating is returned when a rating is neither a JSON number nor a string.
var ErrInvalidRating = errors.New("rating must be a number or a string")

// Rating is a client-supplied rating that keeps its JSON kind (number or string).
// No range validation is applied.
type Rating struct {
	Value   string
	Numeric bool
}

// NumericRating returns a Rating for a JSON number literal.
func NumericRating(v string) Rating {
	return Rating{Value: v, Numeric: true}
}

// TextRating returns a Rating for a string value.
func TextRating(v string) Rating {
	return Rating{Value: v}
}

// IsZero reports whether the rating is absent, null or an empty string.
func (r Rating) IsZero() bool {
	return r.Value == ""
}

func (r Rating) String() string {
	return r.Value
}

// MarshalJSON emits numbers unquoted and strings quoted.
func (r Rating) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	if r.Numeric {
		return []byte(r.Value), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts null, a string or a number.
func (r *Rating) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*r = Rating{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = TextRating(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRating, data)
	}
	*r = NumericRating(n.String())
	return nil
}
