package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// SetInstalledVersion records version as the installed version of the
// component named name in the Updatefile at path. YAML files are edited
// in place so comments and ordering survive; TOML and JSON files are
// re-encoded.
func SetInstalledVersion(path, name, version string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read Updatefile: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat Updatefile: %w", err)
	}

	var out []byte
	switch format := detectFormat(path, content); format {
	case FormatYAML:
		out, err = setVersionYAML(content, name, version)
	case FormatTOML, FormatJSON:
		out, err = setVersionDecoded(content, format, name, version)
	default:
		return fmt.Errorf("unable to detect file format for %s", path)
	}
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".Updatefile-*")
	if err != nil {
		return fmt.Errorf("failed to write Updatefile: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write Updatefile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write Updatefile: %w", err)
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write Updatefile: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace Updatefile: %w", err)
	}
	return nil
}

func setVersionYAML(content []byte, name, version string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("component not found: %s", name)
	}

	comps := mappingValue(doc.Content[0], "components")
	if comps == nil || comps.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("component not found: %s", name)
	}

	found := false
	for _, item := range comps.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		if n := mappingValue(item, "name"); n == nil || n.Value != name {
			continue
		}
		found = true
		if v := mappingValue(item, "installed_version"); v != nil {
			v.Kind = yaml.ScalarNode
			v.Tag = "!!str"
			v.Value = version
			v.Style = 0
			break
		}
		item.Content = append(item.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "installed_version"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: version},
		)
		break
	}
	if !found {
		return nil, fmt.Errorf("component not found: %s", name)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setVersionDecoded(content []byte, format Format, name, version string) ([]byte, error) {
	var doc map[string]any
	var err error
	if format == FormatJSON {
		err = json.Unmarshal(content, &doc)
	} else {
		err = toml.Unmarshal(content, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%s parse error: %w", format, err)
	}

	comps, _ := doc["components"].([]any)
	found := false
	for _, item := range comps {
		m, ok := item.(map[string]any)
		if !ok || m["name"] != name {
			continue
		}
		m["installed_version"] = version
		found = true
		break
	}
	if !found {
		return nil, fmt.Errorf("component not found: %s", name)
	}

	if format == FormatJSON {
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode JSON: %w", err)
		}
		return append(out, '\n'), nil
	}
	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode TOML: %w", err)
	}
	return out, nil
}
