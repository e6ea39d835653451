package cachestore

// Version names the pair of partitions that are current for one cache version.
type Version struct {
	Tag    string `json:"version"`
	Static string `json:"static"`
	API    string `json:"api"`
}

// NewVersion derives partition names by suffixing each prefix with the tag.
func NewVersion(tag, staticPrefix, apiPrefix string) Version {
	return Version{
		Tag:    tag,
		Static: staticPrefix + "-" + tag,
		API:    apiPrefix + "-" + tag,
	}
}

// Current reports whether name is one of this version's partitions.
func (v Version) Current(name string) bool {
	return name == v.Static || name == v.API
}
