package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSiteNotConfigured is returned when no MetaCI site is stored in the keychain
var ErrSiteNotConfigured = errors.New("You must have a MetaCI site configured.  Use metaci site connect to configure an existing site or metaci site add to deploy a new Heroku app running MetaCI.")

// ConnectionError is returned when the MetaCI site cannot be reached
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("could not connect to MetaCI at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NotFoundError is returned when a lookup matched nothing
type NotFoundError struct {
	Resource   string
	Identifier string
	Hint       string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %s not found", e.Resource, e.Identifier)
	if e.Hint != "" {
		msg += ".  " + e.Hint
	}
	return msg
}

// ValidationError carries the server's rejection message verbatim
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// APIError is returned for any other unexpected status
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("MetaCI API error (status %d): %s", e.StatusCode, e.Body)
}

// validationMessage flattens a DRF error body such as
// {"name": ["already exists"]} into "name: already exists".
func validationMessage(body []byte) string {
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		var list []string
		if err := json.Unmarshal(body, &list); err == nil {
			return strings.Join(list, "; ")
		}
		return strings.TrimSpace(string(body))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		text := flatten(fields[k])
		if k == "detail" || k == "non_field_errors" {
			parts = append(parts, text)
			continue
		}
		parts = append(parts, k+": "+text)
	}
	return strings.Join(parts, "; ")
}

func flatten(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, flatten(item))
		}
		return strings.Join(out, " ")
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
