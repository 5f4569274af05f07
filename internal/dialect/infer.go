package dialect

import (
	"path/filepath"
	"strings"
)

var extensions = map[string]Kind{
	".yaml":       Ansible,
	".yml":        Ansible,
	".rb":         Chef,
	".pp":         Puppet,
	".tf":         Terraform,
	".dockerfile": Docker,
}

// FromPath infers the dialect from a document path. Extensions are matched
// case-insensitively; a base name of "Dockerfile" maps to Docker.
func FromPath(path string) Kind {
	base := filepath.Base(path)
	if strings.EqualFold(base, "Dockerfile") {
		return Docker
	}
	if k, ok := extensions[strings.ToLower(filepath.Ext(base))]; ok {
		return k
	}
	return Unknown
}

// Resolve applies the resolution order: a non-empty override first, then the
// path. An override naming an unknown dialect resolves to Unknown rather than
// falling back to the extension.
func Resolve(override, path string) Kind {
	if strings.TrimSpace(override) != "" {
		k, err := Parse(override)
		if err != nil {
			return Unknown
		}
		return k
	}
	return FromPath(path)
}
