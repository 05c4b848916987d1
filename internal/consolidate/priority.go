package consolidate

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/enrich-cli/internal/model"
)

// priorityFile is the on-disk shape of a priority override.
type priorityFile struct {
	Priority []string `yaml:"priority"`
}

// ParsePriority validates a list of method labels. Unknown or repeated
// labels are rejected. Built-in methods missing from names are appended
// in default order.
func ParsePriority(names []string) ([]model.Method, error) {
	seen := make(map[model.Method]bool, len(names))
	out := make([]model.Method, 0, len(model.DefaultPriority))
	for _, n := range names {
		m := model.Method(strings.ToLower(strings.TrimSpace(n)))
		if !model.KnownMethod(m) {
			return nil, eris.Errorf("consolidate: unknown strategy %q in priority", n)
		}
		if seen[m] {
			return nil, eris.Errorf("consolidate: strategy %q listed twice in priority", n)
		}
		seen[m] = true
		out = append(out, m)
	}
	for _, m := range model.DefaultPriority {
		if !seen[m] {
			out = append(out, m)
		}
	}
	return out, nil
}

// LoadPriorityFile reads a YAML file of the form
//
//	priority:
//	  - page-metadata
//	  - embedded-structured-data
func LoadPriorityFile(path string) ([]model.Method, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "consolidate: read priority file %s", path)
	}
	var f priorityFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "consolidate: parse priority file %s", path)
	}
	if len(f.Priority) == 0 {
		return nil, eris.Errorf("consolidate: priority file %s lists no strategies", path)
	}
	return ParsePriority(f.Priority)
}
