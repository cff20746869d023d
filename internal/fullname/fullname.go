// Package fullname provides an immutable dotted-name value used for
// module paths and fully qualified fixture names.
package fullname

import "strings"

// FullName is an ordered sequence of identifier parts, rendered with
// dots. The zero value is the empty name. Values are never mutated in
// place; every operation returns a new FullName.
type FullName struct {
	parts []string
}

// New builds a FullName from parts. Parts containing dots are split so
// the no-dots invariant always holds; empty parts are dropped.
func New(parts ...string) FullName {
	var out []string
	for _, p := range parts {
		for _, sub := range strings.Split(p, ".") {
			if sub != "" {
				out = append(out, sub)
			}
		}
	}
	return FullName{parts: out}
}

// Parse splits a dotted string such as "tests.unit.conftest".
func Parse(s string) FullName {
	return New(s)
}

// Parts returns a copy of the name's parts.
func (n FullName) Parts() []string {
	return append([]string(nil), n.parts...)
}

// Len returns the number of parts.
func (n FullName) Len() int {
	return len(n.parts)
}

// IsEmpty reports whether the name has no parts.
func (n FullName) IsEmpty() bool {
	return len(n.parts) == 0
}

// Head returns the first part, or "" for the empty name.
func (n FullName) Head() string {
	if n.IsEmpty() {
		return ""
	}
	return n.parts[0]
}

// Tail returns the last part, or "" for the empty name.
func (n FullName) Tail() string {
	if n.IsEmpty() {
		return ""
	}
	return n.parts[len(n.parts)-1]
}

// PushFront returns a new name with part prepended.
func (n FullName) PushFront(part string) FullName {
	return New(append([]string{part}, n.parts...)...)
}

// PushBack returns a new name with part appended.
func (n FullName) PushBack(part string) FullName {
	return New(append(n.Parts(), part)...)
}

// PopFront returns the first part and the remaining name.
func (n FullName) PopFront() (string, FullName) {
	if n.IsEmpty() {
		return "", n
	}
	return n.parts[0], FullName{parts: append([]string(nil), n.parts[1:]...)}
}

// PopBack returns the remaining name and the last part.
func (n FullName) PopBack() (FullName, string) {
	if n.IsEmpty() {
		return n, ""
	}
	last := len(n.parts) - 1
	return FullName{parts: append([]string(nil), n.parts[:last]...)}, n.parts[last]
}

// Join returns n followed by other.
func (n FullName) Join(other FullName) FullName {
	return FullName{parts: append(n.Parts(), other.parts...)}
}

// Equal reports whether both names have identical parts.
func (n FullName) Equal(other FullName) bool {
	if len(n.parts) != len(other.parts) {
		return false
	}
	for i := range n.parts {
		if n.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// String renders the dotted form.
func (n FullName) String() string {
	return strings.Join(n.parts, ".")
}
