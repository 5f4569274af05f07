package dialect

import (
	"fmt"
	"strings"
)

// Kind represents an infrastructure-as-code dialect accepted by the analyzer's
// --tech flag.
type Kind uint8

const (
	Unknown Kind = iota
	Ansible
	Chef
	Puppet
	Terraform
	Docker

	kindCount
)

func (k Kind) String() string {
	switch k {
	case Ansible:
		return "ansible"
	case Chef:
		return "chef"
	case Puppet:
		return "puppet"
	case Terraform:
		return "terraform"
	case Docker:
		return "docker"
	default:
		return "unknown"
	}
}

func (k Kind) GoString() string {
	return fmt.Sprintf("dialect.Kind(%s)", k.String())
}

// Valid reports whether k is a member of the closed dialect set.
func (k Kind) Valid() bool {
	return k > Unknown && k < kindCount
}

// All returns every known dialect in declaration order.
func All() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := Ansible; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Parse converts an analyzer tech name into a Kind. Matching ignores case and
// surrounding whitespace.
func Parse(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := Ansible; k < kindCount; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return Unknown, fmt.Errorf("unknown dialect %q (expected: %s)", name, names())
}

func names() string {
	parts := make([]string, 0, kindCount-1)
	for _, k := range All() {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, "|")
}
