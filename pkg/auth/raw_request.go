package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Raw request blobs are copied from the browser's network inspector as
// "key:value" lines. The cookie header plus these form fields are enough
// to forge mercury requests.
var requestFields = []string{"cookie", "__user", "__a", "__dyn", "__req", "fb_dtsg", "__rev"}

// ParseRawRequest extracts a session bundle from a raw copied-request blob.
// Every line of the form "key:value" is considered; all the mercury form
// fields and the cookie header must be present.
func ParseRawRequest(raw string) (*Bundle, error) {
	values := make(map[string]string, len(requestFields))

	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		values[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan request data: %w", err)
	}

	for _, field := range requestFields {
		if values[field] == "" {
			return nil, fmt.Errorf("request data is missing the %q field", field)
		}
	}

	bundle := &Bundle{
		Cookie:    values["cookie"],
		UserID:    values["__user"],
		Ajax:      values["__a"],
		Dyn:       values["__dyn"],
		Req:       values["__req"],
		DTSG:      values["fb_dtsg"],
		Revision:  values["__rev"],
		UserAgent: values["user-agent"],
	}
	bundle.Account = bundle.UserID

	return bundle, nil
}

// ParseRawRequestFile reads a copied-request file and extracts a session
// bundle from it.
func ParseRawRequestFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request data file: %w", err)
	}
	return ParseRawRequest(string(data))
}
