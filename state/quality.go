package state

import (
	"fmt"
	"math"
)

// Preset is a compression quality tier chosen to match available bandwidth.
type Preset int

const (
	PresetLow Preset = iota
	PresetMedium
	PresetHigh
	PresetOriginal
)

func (p Preset) String() string {
	switch p {
	case PresetLow:
		return "low"
	case PresetMedium:
		return "medium"
	case PresetHigh:
		return "high"
	case PresetOriginal:
		return "original"
	default:
		return fmt.Sprintf("preset(%d)", int(p))
	}
}

// BestRate picks the most trustworthy throughput figure available, in bits per
// second. Measured transfer throughput beats the handshake estimate, which
// beats the first-hop interface bitrate. Zero values are treated as absent.
func (l LinkState) BestRate() (uint64, bool) {
	for _, r := range []*uint64{l.ExpectedRate, l.EstablishmentRate, l.NextHopBitrate} {
		if r != nil && *r > 0 {
			return *r, true
		}
	}
	return 0, false
}

func presetForRate(rate uint64) Preset {
	switch {
	case rate < LowRateCeiling:
		return PresetLow
	case rate < MediumRateCeiling:
		return PresetMedium
	case rate < HighRateCeiling:
		return PresetHigh
	default:
		return PresetOriginal
	}
}

// RecommendPreset maps the link's best rate to a compression preset. When the
// only datum is the first-hop bitrate on a multi-hop path, the recommendation
// is capped at medium: downstream hops may be far slower than the first.
// Without any rate, hop count decides; without hops, a recorded failure means
// low and an unknown-but-hopeful link defaults to medium.
func RecommendPreset(l LinkState) Preset {
	if rate, ok := l.BestRate(); ok {
		preset := presetForRate(rate)
		firstHopOnly := l.ExpectedRate == nil && l.EstablishmentRate == nil && l.NextHopBitrate != nil
		if firstHopOnly && l.Hops != nil && *l.Hops > 1 && preset > PresetMedium {
			preset = PresetMedium
		}
		return preset
	}
	if l.Hops != nil {
		switch {
		case *l.Hops <= DirectHopCeiling:
			return PresetHigh
		case *l.Hops <= NearHopCeiling:
			return PresetMedium
		default:
			return PresetLow
		}
	}
	if l.Err != "" {
		return PresetLow
	}
	return PresetMedium
}

// EstimateTransferTime returns the expected seconds to transfer sizeBytes over
// the link, or false when no usable rate is known.
func EstimateTransferTime(l LinkState, sizeBytes uint64) (float64, bool) {
	rate, ok := l.BestRate()
	if !ok {
		return 0, false
	}
	return float64(sizeBytes) * 8 / float64(rate), true
}

// FormatTransferTime renders a transfer estimate as a short human string, e.g.
// "~1m 30s". The smaller unit is omitted when zero.
func FormatTransferTime(seconds float64) string {
	if seconds < 1 {
		return "< 1s"
	}
	total := int64(math.Round(seconds))
	switch {
	case total < 60:
		return fmt.Sprintf("~%ds", total)
	case total < 3600:
		m, s := total/60, total%60
		if s == 0 {
			return fmt.Sprintf("~%dm", m)
		}
		return fmt.Sprintf("~%dm %ds", m, s)
	default:
		h, m := total/3600, (total%3600)/60
		if m == 0 {
			return fmt.Sprintf("~%dh", h)
		}
		return fmt.Sprintf("~%dh %dm", h, m)
	}
}
