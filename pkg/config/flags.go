package config

import (
	"sort"

	"github.com/Blopaa/Orn-sub000/pkg/cli"
)

type GroupState struct {
	enabled  []bool
	disabled []bool
}

// SetupFlagGroups registers the -W<warning> and -F<feature> toggle groups on
// fs. Call ApplyFlagGroups with the returned states after fs.Parse.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) (warnings, features *GroupState) {
	warnings = &GroupState{
		enabled:  make([]bool, WarnCount),
		disabled: make([]bool, WarnCount),
	}
	var warnEntries []cli.FlagGroupEntry
	for wt := Warning(0); wt < WarnCount; wt++ {
		info := c.Warnings[wt]
		warnEntries = append(warnEntries, cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "W",
			Usage:    info.Description,
			Enabled:  &warnings.enabled[wt],
			Disabled: &warnings.disabled[wt],
		})
	}
	sort.Slice(warnEntries, func(i, j int) bool { return warnEntries[i].Name < warnEntries[j].Name })
	fs.AddFlagGroup("Warnings", "warning", warnEntries)

	features = &GroupState{
		enabled:  make([]bool, FeatCount),
		disabled: make([]bool, FeatCount),
	}
	var featEntries []cli.FlagGroupEntry
	for ft := Feature(0); ft < FeatCount; ft++ {
		info := c.Features[ft]
		featEntries = append(featEntries, cli.FlagGroupEntry{
			Name:     info.Name,
			Prefix:   "F",
			Usage:    info.Description,
			Enabled:  &features.enabled[ft],
			Disabled: &features.disabled[ft],
		})
	}
	sort.Slice(featEntries, func(i, j int) bool { return featEntries[i].Name < featEntries[j].Name })
	fs.AddFlagGroup("Features", "feature", featEntries)

	return warnings, features
}

// ApplyFlagGroups folds the parsed toggle states back into the config.
// Explicit no- spellings win over the plain ones.
func (c *Config) ApplyFlagGroups(warnings, features *GroupState) {
	for wt := Warning(0); wt < WarnCount; wt++ {
		if warnings.enabled[wt] {
			c.SetWarning(wt, true)
		}
		if warnings.disabled[wt] {
			c.SetWarning(wt, false)
		}
	}
	for ft := Feature(0); ft < FeatCount; ft++ {
		if features.enabled[ft] {
			c.SetFeature(ft, true)
		}
		if features.disabled[ft] {
			c.SetFeature(ft, false)
		}
	}
}
