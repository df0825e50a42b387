package model

import "time"

type FeatureFlag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FlagMap is the wire shape of the flag set: name -> enabled.
type FlagMap map[string]bool

func FlagMapOf(flags []*FeatureFlag) FlagMap {
	m := make(FlagMap, len(flags))
	for _, f := range flags {
		m[f.Name] = f.Enabled
	}
	return m
}
