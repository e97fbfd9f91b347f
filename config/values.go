package config

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

func fieldMap(cfg Config) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// Keys lists the configuration keys as they appear in the config file.
func Keys() []string {
	fields, _ := fieldMap(Config{})
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetValue returns the JSON value of key.
func GetValue(cfg Config, key string) (string, error) {
	fields, err := fieldMap(cfg)
	if err != nil {
		return "", err
	}
	raw, ok := fields[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
	return string(raw), nil
}

// SetValue returns a copy of cfg with key set from its text form. The value
// is read as JSON first and as a plain string otherwise. The result is not
// validated.
func SetValue(cfg Config, key, value string) (Config, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	fields, err := fieldMap(cfg)
	if err != nil {
		return cfg, err
	}
	if _, ok := fields[key]; !ok {
		return cfg, fmt.Errorf("unknown configuration key: %s", key)
	}

	var candidates []json.RawMessage
	if json.Valid([]byte(value)) {
		candidates = append(candidates, json.RawMessage(value))
	}
	quoted, _ := json.Marshal(value)
	candidates = append(candidates, quoted)

	for _, raw := range candidates {
		fields[key] = raw
		b, err := json.Marshal(fields)
		if err != nil {
			continue
		}
		var next Config
		if err := json.Unmarshal(b, &next); err == nil {
			return next, nil
		}
	}
	return cfg, fmt.Errorf("invalid value %q for %s", value, key)
}
