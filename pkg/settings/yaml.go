package settings

import (
	"fmt"
	"io"
	"io/ioutil"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/go-delve/nativedbg/pkg/args"
	"github.com/go-delve/nativedbg/pkg/logflags"
)

// SaveYAML writes every value that was explicitly set as a flat map from
// dotted path to value.
func (p *Properties) SaveYAML(w io.Writer) error {
	m := yaml.MapSlice{}
	for _, path := range p.Flatten() {
		v, _ := p.GetSubValue(path)
		if v == nil || !v.wasSet {
			continue
		}
		m = append(m, yaml.MapItem{Key: path, Value: v.yamlValue()})
	}
	out, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// LoadYAML reads a flat map from dotted path to value and assigns each
// value. Every entry is attempted, the first error is returned.
func (p *Properties) LoadYAML(r io.Reader) error {
	buf, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return fmt.Errorf("unable to decode settings: %v", err)
	}
	return p.ApplyMap(m)
}

// ApplyMap assigns every value in m to the property named by its key.
// Lists and maps are converted to the textual form accepted by arrays and
// dictionaries.
func (p *Properties) ApplyMap(m map[string]interface{}) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var firstErr error
	for _, k := range keys {
		if err := p.SetSubValue(OpAssign, k, yamlToString(m[k])); err != nil {
			logflags.SettingsLogger().Errorf("could not apply setting %s: %v", k, err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %v", k, err)
			}
		}
	}
	return firstErr
}

func yamlToString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		a := args.New("")
		for _, e := range v {
			a.Append(yamlToString(e), '"')
		}
		return a.CommandString()
	case map[interface{}]interface{}:
		keys := make([]string, 0, len(v))
		vals := map[string]string{}
		for k, e := range v {
			ks := fmt.Sprint(k)
			keys = append(keys, ks)
			vals[ks] = yamlToString(e)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = args.Escape(k+"="+vals[k], '"')
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprint(v)
}
