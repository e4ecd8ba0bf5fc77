package jobconfig

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/schema"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort = 22

	nameKey       = "name"
	volumeRootKey = "zfsroot"
	hostKey       = "host"
	portKey       = "port"
	keyPathKey    = "ssh-key"
	volumesKey    = "volumes"

	sourceKey   = "source"
	maxDaysKey  = "max-days"
	excludesKey = "excludes"
)

var volumeChecker = schema.StrictFieldMap(
	schema.Fields{
		sourceKey:   schema.String(),
		maxDaysKey:  strictInt{},
		excludesKey: schema.List(schema.String()),
	},
	schema.Defaults{
		excludesKey: schema.Omit,
	},
)

var jobChecker = schema.StrictFieldMap(
	schema.Fields{
		nameKey:       schema.String(),
		volumeRootKey: schema.String(),
		hostKey:       schema.String(),
		portKey:       strictInt{},
		keyPathKey:    schema.String(),
		volumesKey:    schema.StringMap(volumeChecker),
	},
	schema.Defaults{
		portKey:    DefaultPort,
		keyPathKey: schema.Omit,
	},
)

// strictInt accepts YAML integers only. schema.Int and schema.ForceInt would
// also take numeric strings and truncate floats.
type strictInt struct{}

func (strictInt) Coerce(v interface{}, path []string) (interface{}, error) {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.ForceInt().Coerce(v, path)
	}
	if v == nil {
		return nil, fmt.Errorf("%sexpected int, got nothing", pathPrefix(path))
	}
	return nil, fmt.Errorf("%sexpected int, got %T(%#v)", pathPrefix(path), v, v)
}

// pathPrefix renders a schema path the way juju/schema does in its errors.
func pathPrefix(path []string) string {
	if len(path) > 0 && path[0] == "." {
		path = path[1:]
	}
	s := strings.Join(path, "")
	if s == "" {
		return ""
	}
	return s + ": "
}

// Parse validates one job document. It does not touch the filesystem; source
// only names the document in errors. Every returned error satisfies
// errors.Is(err, errors.NotValid).
func Parse(source string, raw []byte) (*Job, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, notValid(source, err)
	}
	v, err := jobChecker.Coerce(doc, nil)
	if err != nil {
		return nil, notValid(source, err)
	}
	m := v.(map[string]interface{})

	job := &Job{
		Name:       m[nameKey].(string),
		VolumeRoot: strings.TrimRight(m[volumeRootKey].(string), "/"),
		Host:       m[hostKey].(string),
		Port:       m[portKey].(int),
		Source:     source,
	}
	if job.Port <= 1 || job.Port >= 65535 {
		return nil, notValid(source, fmt.Errorf("%s: %d out of range (1 < port < 65535)", portKey, job.Port))
	}
	if err := checkName(nameKey, job.Name); err != nil {
		return nil, notValid(source, err)
	}
	if job.VolumeRoot == "" {
		return nil, notValid(source, fmt.Errorf("%s: must not be empty", volumeRootKey))
	}
	if job.Host == "" {
		return nil, notValid(source, fmt.Errorf("%s: must not be empty", hostKey))
	}
	if p, ok := m[keyPathKey].(string); ok && p != "" {
		if job.PrivateKeyPath, err = homedir.Expand(p); err != nil {
			return nil, notValid(source, fmt.Errorf("%s: %w", keyPathKey, err))
		}
	}

	order, err := volumeOrder(raw)
	if err != nil {
		return nil, notValid(source, err)
	}
	volumes := m[volumesKey].(map[string]interface{})
	for _, name := range completeOrder(order, volumes) {
		if err := checkName(volumesKey+"."+name, name); err != nil {
			return nil, notValid(source, err)
		}
		vm, ok := volumes[name].(map[string]interface{})
		if !ok {
			return nil, notValid(source, fmt.Errorf("%s.%s: expected map", volumesKey, name))
		}
		sv := SubVolume{
			Name:       name,
			SourcePath: vm[sourceKey].(string),
			MaxAgeDays: vm[maxDaysKey].(int),
		}
		if strings.TrimSpace(sv.SourcePath) == "" {
			return nil, notValid(source, fmt.Errorf("%s.%s.%s: must not be empty", volumesKey, name, sourceKey))
		}
		if sv.MaxAgeDays < 0 {
			return nil, notValid(source, fmt.Errorf("%s.%s.%s: must not be negative", volumesKey, name, maxDaysKey))
		}
		if excludes, ok := vm[excludesKey].([]interface{}); ok {
			for _, e := range excludes {
				sv.Excludes = append(sv.Excludes, e.(string))
			}
		}
		job.SubVolumes = append(job.SubVolumes, sv)
	}
	return job, nil
}

func notValid(source string, err error) error {
	return errors.NewNotValid(err, "job document "+source)
}

// checkName rejects names that would change the shape of a volume path.
func checkName(key, name string) error {
	if name == "" {
		return fmt.Errorf("%s: must not be empty", key)
	}
	if strings.ContainsAny(name, "/@") {
		return fmt.Errorf("%s: %q must not contain '/' or '@'", key, name)
	}
	return nil
}

// completeOrder keeps the names of order that were decoded and appends the
// decoded names order missed, sorted.
func completeOrder(order []string, volumes map[string]interface{}) []string {
	names := make([]string, 0, len(volumes))
	seen := make(map[string]bool, len(volumes))
	for _, name := range order {
		if _, ok := volumes[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range volumes {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// volumeOrder returns the sub-volume names in document order. Keys pulled in
// with a merge key ("<<") follow the explicit ones.
func volumeOrder(raw []byte) ([]string, error) {
	var doc struct {
		Volumes yaml.Node `yaml:"volumes"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	n := &doc.Volumes
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected map", volumesKey)
	}
	var names, merged []string
	for i := 0; i+1 < len(n.Content); i += 2 {
		if isMergeKey(n.Content[i]) {
			merged = append(merged, mappingKeys(n.Content[i+1])...)
			continue
		}
		names = append(names, n.Content[i].Value)
	}
	return append(names, merged...), nil
}

// mappingKeys returns the keys of a merge value: a mapping, an alias of one
// or a sequence of those.
func mappingKeys(n *yaml.Node) []string {
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias != nil {
			return mappingKeys(n.Alias)
		}
	case yaml.SequenceNode:
		var keys []string
		for _, c := range n.Content {
			keys = append(keys, mappingKeys(c)...)
		}
		return keys
	case yaml.MappingNode:
		var keys []string
		for i := 0; i+1 < len(n.Content); i += 2 {
			if isMergeKey(n.Content[i]) {
				keys = append(keys, mappingKeys(n.Content[i+1])...)
				continue
			}
			keys = append(keys, n.Content[i].Value)
		}
		return keys
	}
	return nil
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" && (n.Tag == "" || n.Tag == "!!merge")
}
