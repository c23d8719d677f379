package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CLUB PROFILE STRUCTURE
// =============================================================================

// ClubProfile holds the club and mapping for one family of exports.
//
// A treasurer running collections for several clubs (or several
// departments of one club with separate accounts) keeps one profile per
// export layout. The first profile whose pattern matches the input file
// name wins; unmatched files use the main config.
type ClubProfile struct {
	// ProfileName is the human-readable name used in logs.
	ProfileName string `yaml:"profile_name"`

	// FileMatchingPatterns is a list of glob patterns matched against the
	// input file's base name.
	//
	// Examples:
	//   - "tennis_*.csv"
	//   - "*_mitglieder.xlsx"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Club is the collecting club for matching files.
	Club OriginatorConfig `yaml:"club"`

	// Mapping is the column mapping for matching files.
	Mapping MappingConfig `yaml:"mapping"`

	// Source is the profile's file path.
	Source string `yaml:"-"`
}

// Matches reports whether the profile applies to fileName.
func (p *ClubProfile) Matches(fileName string) bool {
	base := filepath.Base(fileName)
	for _, pattern := range p.FileMatchingPatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadProfiles loads all club profiles from a directory.
//
// PARAMETERS:
//   - profilesDir: The directory containing profile files. A missing
//     directory yields no profiles.
//
// RETURNS:
//   - The profiles sorted by file name.
//   - An error if any file cannot be parsed or has an invalid mapping.
func LoadProfiles(profilesDir string) ([]*ClubProfile, error) {
	if _, err := os.Stat(profilesDir); os.IsNotExist(err) {
		return nil, nil
	}

	// Find all YAML files in the profiles directory.
	files, err := filepath.Glob(filepath.Join(profilesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}

	// Also check for .yml extension.
	ymlFiles, err := filepath.Glob(filepath.Join(profilesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list profile files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	profiles := make([]*ClubProfile, 0, len(files))
	for _, file := range files {
		profile, err := loadProfile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}

// loadProfile loads a single profile file.
func loadProfile(filePath string) (*ClubProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var profile ClubProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if profile.ProfileName == "" {
		profile.ProfileName = filepath.Base(filePath)
	}
	profile.Source = filePath
	profile.Club.ApplyDefaults()

	if _, err := profile.Mapping.FieldMapping(); err != nil {
		return nil, err
	}

	return &profile, nil
}

// Resolve returns the club and mapping for fileName: the first matching
// profile, or the main config's own club and mapping.
func (c *MainConfig) Resolve(fileName string, profiles []*ClubProfile) (OriginatorConfig, MappingConfig, string) {
	for _, p := range profiles {
		if p.Matches(fileName) {
			return p.Club, p.Mapping, p.ProfileName
		}
	}
	return c.Club, c.Mapping, "default"
}
