// Package timeout derives per-file processing deadlines from input size.
// Larger scans take Ghostscript longer, so the budget grows in tiers
// rather than being a single flat value that either starves big files
// or lets small broken ones hang the batch.
package timeout

import "time"

// Budget is the maximum wall time allowed for one engine invocation.
// NoLimit disables enforcement entirely.
type Budget time.Duration

// NoLimit is the unlimited-budget sentinel.
const NoLimit Budget = 0

// Unlimited reports whether the budget disables timeout enforcement.
func (b Budget) Unlimited() bool {
	return b == NoLimit
}

// Duration returns the budget as a time.Duration. Only meaningful when
// the budget is not unlimited.
func (b Budget) Duration() time.Duration {
	return time.Duration(b)
}

// Size tier boundaries in bytes.
const (
	smallFileBytes  = 1 << 20  // 1 MB
	mediumFileBytes = 10 << 20 // 10 MB
	largeFileBytes  = 50 << 20 // 50 MB
)

// Policy maps an input file size to a Budget. The zero value is not
// usable; construct with DefaultPolicy or from config.
type Policy struct {
	// Base is added to every budget regardless of size.
	Base time.Duration

	// Per-tier additions on top of Base. Must be non-decreasing from
	// Small through XLarge to keep the policy monotonic in size.
	Small  time.Duration // files under 1 MB
	Medium time.Duration // files under 10 MB
	Large  time.Duration // files under 50 MB
	XLarge time.Duration // everything bigger
}

// DefaultPolicy returns the standard tiered policy: 2 minutes base,
// plus 1/3/10/20 minutes by size tier.
func DefaultPolicy() Policy {
	return Policy{
		Base:   2 * time.Minute,
		Small:  1 * time.Minute,
		Medium: 3 * time.Minute,
		Large:  10 * time.Minute,
		XLarge: 20 * time.Minute,
	}
}

// ForSize returns the budget for an input file of the given size in
// bytes. The result is monotonic non-decreasing in size.
func (p Policy) ForSize(size int64) Budget {
	add := p.XLarge
	switch {
	case size < smallFileBytes:
		add = p.Small
	case size < mediumFileBytes:
		add = p.Medium
	case size < largeFileBytes:
		add = p.Large
	}
	return Budget(p.Base + add)
}

// Resolve returns the effective budget for a file, honoring an optional
// user override. A nil override selects the size-tiered policy; a zero
// override disables the timeout; a positive override is used verbatim.
func (p Policy) Resolve(size int64, override *time.Duration) Budget {
	if override == nil {
		return p.ForSize(size)
	}
	if *override <= 0 {
		return NoLimit
	}
	return Budget(*override)
}
