package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Preference keys with a meaning for personalization.
const (
	PrefName               = "name"
	PrefPreferredLocations = "preferredLocations"
	PrefBudget             = "budget"
	PrefPropertyTypes      = "propertyTypes"
)

// Profile is a typed view over UserContext.Preferences.
type Profile struct {
	Name               string   `mapstructure:"name"`
	PreferredLocations []string `mapstructure:"preferredLocations"`
	Budget             string   `mapstructure:"budget"`
	PropertyTypes      []string `mapstructure:"propertyTypes"`
}

// PreferredLocation returns the first preferred location, if any.
func (p Profile) PreferredLocation() string {
	if len(p.PreferredLocations) == 0 {
		return ""
	}
	return p.PreferredLocations[0]
}

// DecodeProfile reads the known keys out of a preferences map.
// Unknown keys are ignored and scalar values are accepted where lists are expected.
func DecodeProfile(prefs map[string]any) (Profile, error) {
	var p Profile
	if len(prefs) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return p, fmt.Errorf("failed to build profile decoder: %w", err)
	}
	if err := dec.Decode(prefs); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}
	return p, nil
}

// Profile decodes the context preferences, ignoring malformed values.
func (c *UserContext) Profile() Profile {
	p, err := DecodeProfile(c.Preferences)
	if err != nil {
		return Profile{}
	}
	return p
}

// RememberEntities folds extracted entities into the preferences so later turns
// can personalize on them. Locations and property types are kept most-recent-first
// without duplicates; the latest budget wins.
func (c *UserContext) RememberEntities(entities []Entity) {
	if c.Preferences == nil {
		c.Preferences = make(map[string]any)
	}
	for _, e := range entities {
		switch e.Type {
		case EntityBudget:
			c.Preferences[PrefBudget] = e.Value
		case EntityLocation:
			c.Preferences[PrefPreferredLocations] = pushFront(stringList(c.Preferences[PrefPreferredLocations]), e.Value)
		case EntityPropertyType:
			c.Preferences[PrefPropertyTypes] = pushFront(stringList(c.Preferences[PrefPropertyTypes]), e.Value)
		}
	}
}

func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	default:
		return nil
	}
}

func pushFront(list []string, v string) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
