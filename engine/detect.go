package engine

import "strings"

// Verdict classifies the health of a search timeline page.
type Verdict int

const (
	// Healthy means collection can continue.
	Healthy Verdict = iota
	// SoftError means a transient load failure with an in-page retry
	// path. Recovery happens without reloading.
	SoftError
	// RateLimited means the service is throttling or challenging the
	// session. Recovery is backoff, then the same query again.
	RateLimited
)

func (v Verdict) String() string {
	switch v {
	case Healthy:
		return "healthy"
	case SoftError:
		return "soft_error"
	case RateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// Classifier turns a page signal into a verdict. The engine takes any
// implementation; Detector is the default phrase-table heuristic.
type Classifier interface {
	Classify(sig Signal) Verdict
}

// Detector classifies pages by matching known phrases in the visible
// text and known fragments in the URL. Rate limiting outranks soft
// errors when both match.
type Detector struct {
	// SoftPhrases mark transient load failures.
	SoftPhrases []string
	// RatePhrases mark throttling or verification walls.
	RatePhrases []string
	// ChallengeFragments are URL substrings of interstitial pages.
	ChallengeFragments []string
}

// NewDetector returns a Detector loaded with the default phrase tables.
// The tables cover English and Indonesian variants of the interface.
func NewDetector() *Detector {
	return &Detector{
		SoftPhrases: []string{
			"something went wrong",
			"went wrong",
			"load failed",
			"failed to load",
			"try again",
			"error occurred",
			"gagal memuat",
			"muat ulang",
		},
		RatePhrases: []string{
			"rate limit",
			"too many requests",
			"try again later",
			"unusual activity",
			"verify it's really you",
			"access denied",
			"blocked",
		},
		ChallengeFragments: []string{
			"unusual", "rate", "limit", "access",
			"safety", "verify", "challenge",
		},
	}
}

// Classify applies the phrase tables to a page signal.
func (d *Detector) Classify(sig Signal) Verdict {
	url := strings.ToLower(sig.URL)
	for _, frag := range d.ChallengeFragments {
		if strings.Contains(url, frag) {
			return RateLimited
		}
	}

	text := strings.ToLower(sig.PageText)
	for _, phrase := range d.RatePhrases {
		if strings.Contains(text, phrase) {
			return RateLimited
		}
	}
	for _, phrase := range d.SoftPhrases {
		if strings.Contains(text, phrase) {
			return SoftError
		}
	}

	// A retry affordance counts as a load failure even when the alert
	// text is missing or phrased in an unknown language.
	if sig.HasRetry {
		return SoftError
	}
	return Healthy
}
