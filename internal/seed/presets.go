package seed

import (
	_ "embed"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Preset describes one reproducible demo dataset.
type Preset struct {
	Description    string       `yaml:"description"`
	Members        []MemberSpec `yaml:"members"`
	RandomMembers  int          `yaml:"random_members"`
	FriendDegree   int          `yaml:"friend_degree"`
	PostsPerMember int          `yaml:"posts_per_member"`
	Privacy        PrivacyMix   `yaml:"privacy"`
}

//go:embed presets.yaml
var builtinPresets []byte

// LoadPresets decodes a YAML document mapping preset names to presets.
func LoadPresets(r io.Reader) (map[string]Preset, error) {
	var presets map[string]Preset
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&presets); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	for name, p := range presets {
		if p.RandomMembers < 0 || p.PostsPerMember < 0 || p.FriendDegree < 0 {
			return nil, fmt.Errorf("preset %q: counts must not be negative", name)
		}
	}
	return presets, nil
}

// BuiltinPresets returns the presets shipped with the binary.
func BuiltinPresets() (map[string]Preset, error) {
	var presets map[string]Preset
	if err := yaml.Unmarshal(builtinPresets, &presets); err != nil {
		return nil, fmt.Errorf("decode builtin presets: %w", err)
	}
	return presets, nil
}

// PresetNames lists preset names in order.
func PresetNames(presets map[string]Preset) []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
