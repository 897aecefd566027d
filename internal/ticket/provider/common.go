package provider

import (
	"net/url"
	"strconv"
	"strings"
)

// getString reads a string field out of a raw JSON map, tolerating absence,
// null, or wrong type by returning "".
func getString(m map[string]any, path ...string) string {
	v := getAny(m, path...)
	s, _ := v.(string)
	return s
}

func getAny(m map[string]any, path ...string) any {
	var cur any = m
	for _, key := range path {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = mm[key]
		if !ok {
			return nil
		}
	}
	return cur
}

func getStringSlice(m map[string]any, path ...string) []string {
	v := getAny(m, path...)
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		} else if mm, ok := e.(map[string]any); ok {
			// Common shape: [{"name": "bug"}, ...]
			if name := getString(mm, "name"); name != "" {
				out = append(out, name)
			}
		}
	}
	return out
}

// parseHostList parses a comma/space separated configured host list for
// GitHub enterprise recognition (spec.md §4.2). Each entry is trimmed,
// scheme-optional, port-optional: a no-port host matches any port.
func parseHostList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		f = strings.TrimPrefix(f, "https://")
		f = strings.TrimPrefix(f, "http://")
		f = strings.TrimSuffix(f, "/")
		out = append(out, strings.ToLower(f))
	}
	return out
}

// hostMatchesList reports whether host (possibly with a port) matches any
// entry in hosts. A configured entry without a port matches any port on
// that host.
func hostMatchesList(host string, hosts []string) bool {
	host = strings.ToLower(host)
	hostNoPort := host
	if i := strings.LastIndex(host, ":"); i >= 0 {
		hostNoPort = host[:i]
	}
	for _, h := range hosts {
		if h == host {
			return true
		}
		if !strings.Contains(h, ":") && h == hostNoPort {
			return true
		}
	}
	return false
}

func parseURL(input string) (*url.URL, bool) {
	trimmed := strings.TrimSpace(input)
	if !strings.Contains(trimmed, "://") {
		return nil, false
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func trimmedUpper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func asFloatString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// statusTypeLookup is a case-insensitive, total lookup table: unknown keys
// map to the zero value supplied by caller.
func statusTypeLookup[T ~string](table map[string]T, key string, unknown T) T {
	key = strings.ToLower(strings.TrimSpace(key))
	if v, ok := table[key]; ok {
		return v
	}
	return unknown
}
