// Package version checks for newer releases of reel.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// Release is a parsed release tag such as v1.4.0 or 1.5.0-rc.1.
type Release struct {
	Major, Minor, Patch int
	Pre                 string
}

// Prerelease reports whether r carries a pre-release suffix.
func (r Release) Prerelease() bool { return r.Pre != "" }

func (r Release) String() string {
	s := fmt.Sprintf("%d.%d.%d", r.Major, r.Minor, r.Patch)
	if r.Pre != "" {
		s += "-" + r.Pre
	}
	return s
}

// Parse reads a release tag. A missing patch component counts as zero.
func Parse(tag string) (Release, error) {
	var r Release

	core, pre, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(tag), "v"), "-")
	r.Pre = pre

	parts := strings.Split(core, ".")
	if len(parts) < 2 || len(parts) > 3 {
		return r, fmt.Errorf("release %q: want major.minor[.patch]", tag)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return r, fmt.Errorf("release %q: bad component %q", tag, p)
		}
		nums[i] = n
	}

	r.Major, r.Minor, r.Patch = nums[0], nums[1], nums[2]
	return r, nil
}

// Compare orders two release tags: 1 if a is newer, -1 if older, 0 if equal.
// A pre-release sorts before the release it precedes.
func Compare(a, b string) (int, error) {
	av, err := Parse(a)
	if err != nil {
		return 0, err
	}

	bv, err := Parse(b)
	if err != nil {
		return 0, err
	}

	return av.compare(bv), nil
}

func (r Release) compare(o Release) int {
	for _, pair := range []lo.Tuple2[int, int]{
		{A: r.Major, B: o.Major},
		{A: r.Minor, B: o.Minor},
		{A: r.Patch, B: o.Patch},
	} {
		if pair.A != pair.B {
			return lo.Ternary(pair.A > pair.B, 1, -1)
		}
	}

	switch {
	case r.Pre == o.Pre:
		return 0
	case r.Pre == "":
		return 1
	case o.Pre == "":
		return -1
	default:
		return strings.Compare(r.Pre, o.Pre)
	}
}
