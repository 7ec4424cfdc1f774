// Package kvflag implements a pflag value for options written as
// key=value,key=value.
package kvflag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

type Map map[string]string

var _ pflag.Value = (*Map)(nil)

func (m *Map) String() string {
	if m == nil || len(*m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(*m))
	for k := range *m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%s", k, (*m)[k])
	}
	return strings.Join(pairs, ",")
}

// Set parses one occurrence of the flag, repeated occurrences accumulate
// and later keys win.
func (m *Map) Set(value string) error {
	if *m == nil {
		*m = Map{}
	}
	for _, pair := range strings.Split(value, ",") {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		key, val, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("empty key in %q", pair)
		}
		(*m)[key] = strings.Trim(strings.TrimSpace(val), `'"`)
	}
	return nil
}

func (m *Map) Type() string {
	return "key=value,..."
}

// Get returns the value for key and whether it was given at all.
func (m Map) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}
