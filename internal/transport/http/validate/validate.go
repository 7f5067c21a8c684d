package validate

import (
	"encoding/json"
	"net/http"
)

// DecodeJSON decodes a JSON body strictly: unknown fields are rejected
// rather than silently dropped.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
