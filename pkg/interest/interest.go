package interest

import (
	"slices"

	"github.com/pushsync/pushsync-go/pkg/syncerr"
)

// Limits for interest names and sets.
const (
	// MaxNameLength is the maximum length of an interest name in bytes.
	MaxNameLength = 164

	// MaxInterests is the maximum number of interests per device.
	MaxInterests = 5000
)

// ValidateName checks a single interest name.
func ValidateName(name string) error {
	if name == "" {
		return syncerr.New(syncerr.KindValidation, "", "interest name is empty")
	}
	if len(name) > MaxNameLength {
		return syncerr.Newf(syncerr.KindValidation, "",
			"interest name is %d bytes, maximum is %d", len(name), MaxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !validChar(name[i]) {
			return syncerr.Newf(syncerr.KindValidation, "",
				"interest name %q contains invalid character %q at %d", name, name[i], i)
		}
	}
	return nil
}

// ValidateNames checks every name and the resulting set size.
// The first invalid name fails the whole batch.
func ValidateNames(names []string) error {
	for _, n := range names {
		if err := ValidateName(n); err != nil {
			return err
		}
	}
	if n := len(FromSlice(names)); n > MaxInterests {
		return syncerr.Newf(syncerr.KindValidation, "",
			"%d interests exceed the maximum of %d", n, MaxInterests)
	}
	return nil
}

func validChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '=', c == '-', c == '.':
		return true
	}
	return false
}

// Set is an immutable set of interest names.
type Set map[string]struct{}

// FromSlice builds a Set. Duplicates collapse.
func FromSlice(names []string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports whether name is in the set.
func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of interests.
func (s Set) Len() int {
	return len(s)
}

// With returns a copy of s including name.
func (s Set) With(name string) Set {
	c := s.Clone()
	c[name] = struct{}{}
	return c
}

// Without returns a copy of s excluding name.
func (s Set) Without(name string) Set {
	c := s.Clone()
	delete(c, name)
	return c
}

// Clone returns a copy of s. A nil set clones to an empty one.
func (s Set) Clone() Set {
	c := make(Set, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

// Equal reports whether both sets hold the same names.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for n := range s {
		if _, ok := other[n]; !ok {
			return false
		}
	}
	return true
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Diff is the change from one set to another.
type Diff struct {
	// Added are names in the target but not in the base.
	Added []string

	// Removed are names in the base but not in the target.
	Removed []string

	// Target is the complete desired set.
	Target Set
}

// Empty reports whether the diff changes nothing.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}

// Compute returns the diff that turns base into target.
func Compute(base, target Set) Diff {
	d := Diff{Target: target.Clone()}
	for n := range target {
		if !base.Contains(n) {
			d.Added = append(d.Added, n)
		}
	}
	for n := range base {
		if !target.Contains(n) {
			d.Removed = append(d.Removed, n)
		}
	}
	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	return d
}
