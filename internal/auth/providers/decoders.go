package providers

import (
	"encoding/json"
	"errors"
	"net/url"
)

// Decoder parses a token endpoint response body.
type Decoder func(body []byte) (AuthInfo, error)

// DecodeJSON parses a JSON object body.
func DecodeJSON(body []byte) (AuthInfo, error) {
	info := AuthInfo{}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, &DecodeError{Format: "json", Err: err}
	}
	if info == nil {
		return nil, &DecodeError{Format: "json", Err: errors.New("response is null")}
	}
	return info, nil
}

// DecodeQueryString parses an application/x-www-form-urlencoded body. When a
// key repeats, the last value wins.
func DecodeQueryString(body []byte) (AuthInfo, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &DecodeError{Format: "query string", Err: err}
	}
	info := make(AuthInfo, len(values))
	for k, vs := range values {
		info[k] = vs[len(vs)-1]
	}
	return info, nil
}

var decoders = map[string]Decoder{
	"json":         DecodeJSON,
	"query_string": DecodeQueryString,
}

// DecoderByName returns the decoder registered under name.
func DecoderByName(name string) (Decoder, bool) {
	d, ok := decoders[name]
	return d, ok
}
