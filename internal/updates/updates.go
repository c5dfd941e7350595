// Package updates computes whether a newer firmware tag should be offered
// to a device, given its live version, update branch, and the cached
// release catalog.
package updates

import (
	"strings"
	"sync"
	"time"

	"github.com/wledfleet/wledd/internal/registry"
)

// Release is one entry of the external release catalog.
type Release struct {
	Tag         string    `json:"tag"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

const (
	// betaMarker inside a version string marks a beta build, e.g. "0.14.0-b2".
	betaMarker = "-b"
	// nightly tags never become update candidates.
	nightlyMarker = "nightly"
)

// ComputeUpdate returns the tag that should be offered to a device, or
// ("", false) when no update applies.
//
// Rules, in order: an empty live version yields nothing; the candidate is
// the newest non-nightly catalog entry (prereleases excluded unless the
// branch is beta); a candidate equal to skipTag is suppressed; a stable
// device currently running a beta build is always offered the candidate so
// it can leave the beta channel regardless of version ordering; otherwise
// the candidate is offered only if strictly newer than the live version.
func ComputeUpdate(currentVersion string, branch registry.Branch, skipTag string, catalog []Release) (string, bool) {
	if currentVersion == "" {
		return "", false
	}

	includePrerelease := branch == registry.BranchBeta

	var candidate *Release
	for i := range catalog {
		rel := &catalog[i]
		if strings.Contains(strings.ToLower(rel.Tag), nightlyMarker) {
			continue
		}
		if rel.Prerelease && !includePrerelease {
			continue
		}
		if candidate == nil || rel.PublishedAt.After(candidate.PublishedAt) {
			candidate = rel
		}
	}
	if candidate == nil || candidate.Tag == skipTag {
		return "", false
	}

	// Beta-exit rule: a stable-branch device running a beta build gets the
	// newest stable tag even when that tag orders below its version.
	if !includePrerelease && strings.Contains(currentVersion, betaMarker) {
		return candidate.Tag, true
	}

	if CompareVersions(candidate.Tag, currentVersion) > 0 {
		return candidate.Tag, true
	}
	return "", false
}

// IsBetaBuild reports whether a version string carries the beta marker.
func IsBetaBuild(version string) bool {
	return strings.Contains(version, betaMarker)
}

// ClassifyBranch derives the initial branch for a device from its reported
// version string.
func ClassifyBranch(version string) registry.Branch {
	if version == "" {
		return registry.BranchUnknown
	}
	if IsBetaBuild(version) {
		return registry.BranchBeta
	}
	return registry.BranchStable
}

// CompareVersions orders two version strings with numeric, dot-segment-aware
// comparison. Leading "v" is ignored. Within a segment the numeric prefix
// compares numerically; on a tie a bare segment outranks one with a
// remainder ("0.14.0" > "0.14.0-b2") and remainders compare
// lexicographically. Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(strings.TrimPrefix(a, "v"), ".")
	bs := strings.Split(strings.TrimPrefix(b, "v"), ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	na, ra := numericPrefix(a)
	nb, rb := numericPrefix(b)
	if na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	// Same number: a plain segment beats one carrying a suffix.
	if ra == "" && rb != "" {
		return 1
	}
	if ra != "" && rb == "" {
		return -1
	}
	return strings.Compare(ra, rb)
}

// numericPrefix splits a segment into its leading integer value and the rest.
func numericPrefix(s string) (int, string) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n := 0
	for _, c := range s[:i] {
		n = n*10 + int(c-'0')
	}
	return n, s[i:]
}

// Checker memoizes per-device update results so reactive recomputation only
// notifies when the outcome actually changed.
type Checker struct {
	mu      sync.Mutex
	catalog []Release
	last    map[string]string // MAC -> last computed tag ("" means none)
}

// NewChecker creates an empty checker; the catalog arrives via SetCatalog.
func NewChecker() *Checker {
	return &Checker{
		last: make(map[string]string),
	}
}

// SetCatalog replaces the cached release catalog.
func (c *Checker) SetCatalog(catalog []Release) {
	c.mu.Lock()
	c.catalog = append([]Release(nil), catalog...)
	c.mu.Unlock()
}

// Catalog returns a copy of the cached catalog.
func (c *Checker) Catalog() []Release {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Release(nil), c.catalog...)
}

// Evaluate recomputes the update tag for one device and reports whether the
// result differs from the previous evaluation. An unchanged result must not
// re-notify, so callers only act when changed is true.
func (c *Checker) Evaluate(mac, currentVersion string, branch registry.Branch, skipTag string) (tag string, changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag, _ = ComputeUpdate(currentVersion, branch, skipTag, c.catalog)
	if prev, seen := c.last[mac]; seen && prev == tag {
		return tag, false
	}
	c.last[mac] = tag
	return tag, true
}

// Forget drops the memoized result for a device, e.g. when its record is
// removed.
func (c *Checker) Forget(mac string) {
	c.mu.Lock()
	delete(c.last, mac)
	c.mu.Unlock()
}
