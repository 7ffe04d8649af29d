package spiritcore

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a semantic version in the major.minor.patch[-prerelease][+build]
// form used to tag Spirit packages and their dependencies.
type SemVer struct {
	Major      uint32
	Minor      uint32
	Patch      uint32
	Prerelease string // empty means no prerelease tag
	Build      string // empty means no build metadata
}

// NewSemVer builds a plain major.minor.patch version with no prerelease or
// build metadata.
func NewSemVer(major, minor, patch uint32) SemVer {
	return SemVer{Major: major, Minor: minor, Patch: patch}
}

// WithPrerelease returns a copy of v tagged with the given prerelease string.
func (v SemVer) WithPrerelease(pre string) SemVer {
	v.Prerelease = pre
	return v
}

// WithBuild returns a copy of v carrying the given build metadata.
func (v SemVer) WithBuild(build string) SemVer {
	v.Build = build
	return v
}

// IsStable reports whether v carries no prerelease tag.
func (v SemVer) IsStable() bool { return v.Prerelease == "" }

// IsDevelopment reports whether v is still in the 0.x.y development phase.
func (v SemVer) IsDevelopment() bool { return v.Major == 0 }

// BumpMajor increments the major component and resets minor/patch to zero.
func (v SemVer) BumpMajor() SemVer { return NewSemVer(v.Major+1, 0, 0) }

// BumpMinor increments the minor component and resets patch to zero.
func (v SemVer) BumpMinor() SemVer { return NewSemVer(v.Major, v.Minor+1, 0) }

// BumpPatch increments the patch component.
func (v SemVer) BumpPatch() SemVer { return NewSemVer(v.Major, v.Minor, v.Patch+1) }

// String renders v in major.minor.patch[-prerelease][+build] form.
func (v SemVer) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		b.WriteByte('-')
		b.WriteString(v.Prerelease)
	}
	if v.Build != "" {
		b.WriteByte('+')
		b.WriteString(v.Build)
	}
	return b.String()
}

// ParseSemVer parses a semantic version string. It trims surrounding
// whitespace, then peels off build metadata (after '+') and a prerelease tag
// (after '-') before parsing the dotted major.minor.patch triple.
func ParseSemVer(s string) (SemVer, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SemVer{}, fmt.Errorf("%w: empty version string", ErrInvalidVersion)
	}

	versionPre, build := s, ""
	if i := strings.IndexByte(s, '+'); i >= 0 {
		versionPre, build = s[:i], s[i+1:]
	}

	version, prerelease := versionPre, ""
	if i := strings.IndexByte(versionPre, '-'); i >= 0 {
		version, prerelease = versionPre[:i], versionPre[i+1:]
	}

	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return SemVer{}, fmt.Errorf("%w: invalid version format %q", ErrInvalidVersion, s)
	}

	major, err := parseVersionComponent(parts[0])
	if err != nil {
		return SemVer{}, err
	}
	minor, err := parseVersionComponent(parts[1])
	if err != nil {
		return SemVer{}, err
	}
	patch, err := parseVersionComponent(parts[2])
	if err != nil {
		return SemVer{}, err
	}

	return SemVer{Major: major, Minor: minor, Patch: patch, Prerelease: prerelease, Build: build}, nil
}

func parseVersionComponent(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid version number %q", ErrInvalidVersion, s)
	}
	return uint32(n), nil
}

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than
// other. Major, minor, and patch are compared numerically; a version with a
// prerelease tag always sorts below the same major.minor.patch without one,
// and two prerelease tags are compared lexically.
func (v SemVer) Compare(other SemVer) int {
	if v.Major != other.Major {
		return cmpUint32(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpUint32(v.Minor, other.Minor)
	}
	if v.Patch != other.Patch {
		return cmpUint32(v.Patch, other.Patch)
	}
	switch {
	case v.Prerelease == "" && other.Prerelease != "":
		return 1
	case v.Prerelease != "" && other.Prerelease == "":
		return -1
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease < other.Prerelease:
		return -1
	default:
		return 1
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Less reports whether v sorts before other.
func (v SemVer) Less(other SemVer) bool { return v.Compare(other) < 0 }

// Equal reports whether v and other compare as equal (build metadata is not
// significant to equality, matching spec precedence rules).
func (v SemVer) Equal(other SemVer) bool { return v.Compare(other) == 0 }

// IsCompatibleWith reports whether v and other share a major version and v is
// not older than other within that major line.
func (v SemVer) IsCompatibleWith(other SemVer) bool {
	if v.Major != other.Major {
		return false
	}
	if v.Minor < other.Minor {
		return false
	}
	if v.Minor == other.Minor && v.Patch < other.Patch {
		return false
	}
	return true
}

// VersionRequirementKind enumerates the comparison a VersionRequirement
// performs against a candidate SemVer.
type VersionRequirementKind uint8

const (
	ReqExact VersionRequirementKind = iota
	ReqGreaterThan
	ReqGreaterOrEqual
	ReqLessThan
	ReqLessOrEqual
	ReqCompatible
	ReqAny
)

// VersionRequirement constrains which versions of a dependency are
// acceptable to a resolver.
type VersionRequirement struct {
	Kind    VersionRequirementKind
	Version SemVer // unused when Kind is ReqAny
}

// Satisfies reports whether v meets the requirement.
func (v SemVer) Satisfies(req VersionRequirement) bool {
	switch req.Kind {
	case ReqExact:
		return v.Equal(req.Version)
	case ReqGreaterThan:
		return v.Compare(req.Version) > 0
	case ReqGreaterOrEqual:
		return v.Compare(req.Version) >= 0
	case ReqLessThan:
		return v.Compare(req.Version) < 0
	case ReqLessOrEqual:
		return v.Compare(req.Version) <= 0
	case ReqCompatible:
		return v.IsCompatibleWith(req.Version)
	case ReqAny:
		return true
	default:
		return false
	}
}

// ParseVersionRequirement parses the textual requirement forms: "*" (any),
// ">=V", "<=V", ">V", "<V", "^V" (compatible), "=V" (exact), and a bare "V"
// which defaults to compatible, treating an unprefixed version as a caret
// range.
func ParseVersionRequirement(s string) (VersionRequirement, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return VersionRequirement{Kind: ReqAny}, nil
	}

	switch {
	case strings.HasPrefix(s, ">="):
		v, err := ParseSemVer(s[2:])
		return VersionRequirement{Kind: ReqGreaterOrEqual, Version: v}, err
	case strings.HasPrefix(s, "<="):
		v, err := ParseSemVer(s[2:])
		return VersionRequirement{Kind: ReqLessOrEqual, Version: v}, err
	case strings.HasPrefix(s, ">"):
		v, err := ParseSemVer(s[1:])
		return VersionRequirement{Kind: ReqGreaterThan, Version: v}, err
	case strings.HasPrefix(s, "<"):
		v, err := ParseSemVer(s[1:])
		return VersionRequirement{Kind: ReqLessThan, Version: v}, err
	case strings.HasPrefix(s, "^"):
		v, err := ParseSemVer(s[1:])
		return VersionRequirement{Kind: ReqCompatible, Version: v}, err
	case strings.HasPrefix(s, "="):
		v, err := ParseSemVer(s[1:])
		return VersionRequirement{Kind: ReqExact, Version: v}, err
	default:
		v, err := ParseSemVer(s)
		return VersionRequirement{Kind: ReqCompatible, Version: v}, err
	}
}

// String renders the requirement back to its textual form.
func (r VersionRequirement) String() string {
	switch r.Kind {
	case ReqExact:
		return "=" + r.Version.String()
	case ReqGreaterThan:
		return ">" + r.Version.String()
	case ReqGreaterOrEqual:
		return ">=" + r.Version.String()
	case ReqLessThan:
		return "<" + r.Version.String()
	case ReqLessOrEqual:
		return "<=" + r.Version.String()
	case ReqCompatible:
		return "^" + r.Version.String()
	case ReqAny:
		return "*"
	default:
		return ""
	}
}
