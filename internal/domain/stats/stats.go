// Package stats computes competition-style rolling statistics over an
// ordered solve sequence. Everything here is a pure function of its input
// slice; there is no hidden state and no I/O.
package stats

import (
	"math"
	"sort"
)

// Window sizes for trimmed averages.
const (
	Ao5Size  = 5
	Ao12Size = 12
)

// dnfCutoff is the number of DNFs in a window at which the trimmed average
// itself becomes a DNF rather than a number.
const dnfCutoff = 2

// Attempt is one solve as seen by the rolling engine: an effective time in
// milliseconds, or a DNF marker with no numeric time.
type Attempt struct {
	EffectiveMs int64
	DNF         bool
}

// Average is a trimmed-average outcome. Three cases:
//   - Ms set: a numeric average.
//   - Ms nil, DNF false: insufficient data.
//   - Ms nil, DNF true: the average itself is a DNF (too many DNFs in the
//     window). Distinct from insufficient data and must stay that way.
type Average struct {
	Ms  *int64
	DNF bool
}

// RollingWindow aggregates a user's recent solves. Fields are nil when not
// enough data exists; absence is a distinct outcome from zero.
type RollingWindow struct {
	Count    int64    `json:"count"`
	BestMs   *int64   `json:"bestMs"`
	WorstMs  *int64   `json:"worstMs"`
	Ao5Ms    *int64   `json:"ao5Ms"`
	Ao5DNF   bool     `json:"ao5Dnf"`
	Ao12Ms   *int64   `json:"ao12Ms"`
	Ao12DNF  bool     `json:"ao12Dnf"`
	AvgMs    *int64   `json:"avgMs"`
	AvgScore *float64 `json:"avgScore"`
}

// AoN computes the average-of-n over the n most recent attempts, dropping
// exactly one best and one worst and averaging the remaining n-2.
//
// attempts must be ordered most recent first. Rules, per competition
// convention:
//   - fewer than n attempts: insufficient data (nil, not zero).
//   - one DNF among the n: the DNF is the worst and is the one dropped.
//   - two or more DNFs: the average is itself a DNF.
func AoN(attempts []Attempt, n int) Average {
	if n < 3 || len(attempts) < n {
		return Average{}
	}
	window := attempts[:n]

	dnfs := 0
	times := make([]int64, 0, n)
	for _, a := range window {
		if a.DNF {
			dnfs++
			continue
		}
		times = append(times, a.EffectiveMs)
	}
	if dnfs >= dnfCutoff {
		return Average{DNF: true}
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	if dnfs == 1 {
		// The DNF is the worst; drop it plus the single best time.
		times = times[1:]
	} else {
		times = times[1 : len(times)-1]
	}

	var sum int64
	for _, t := range times {
		sum += t
	}
	avg := sum / int64(len(times))
	return Average{Ms: &avg}
}

// Window computes the full rolling aggregate over attempts (most recent
// first) and the corresponding known scores. totalCount is the user's full
// solve count, which may exceed len(attempts) when the engine only sees the
// most recent slice.
func Window(attempts []Attempt, scores []float64, totalCount int64) RollingWindow {
	w := RollingWindow{Count: totalCount}

	var (
		sum   int64
		times int64
	)
	for _, a := range attempts {
		if a.DNF {
			continue
		}
		t := a.EffectiveMs
		if w.BestMs == nil || t < *w.BestMs {
			v := t
			w.BestMs = &v
		}
		if w.WorstMs == nil || t > *w.WorstMs {
			v := t
			w.WorstMs = &v
		}
		sum += t
		times++
	}
	if times > 0 {
		avg := sum / times
		w.AvgMs = &avg
	}

	ao5 := AoN(attempts, Ao5Size)
	w.Ao5Ms, w.Ao5DNF = ao5.Ms, ao5.DNF
	ao12 := AoN(attempts, Ao12Size)
	w.Ao12Ms, w.Ao12DNF = ao12.Ms, ao12.DNF

	if len(scores) > 0 {
		var s float64
		for _, sc := range scores {
			s += sc
		}
		mean := s / float64(len(scores))
		w.AvgScore = &mean
	}
	return w
}

// Median returns the median of times, false when times is empty.
func Median(times []int64) (float64, bool) {
	if len(times) == 0 {
		return 0, false
	}
	sorted := make([]int64, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid]), true
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2, true
}

// StdDev returns the population standard deviation of up to the last n
// values, false when fewer than two values exist.
func StdDev(times []int64, n int) (float64, bool) {
	if n > 0 && len(times) > n {
		times = times[len(times)-n:]
	}
	if len(times) < 2 {
		return 0, false
	}
	var sum float64
	for _, t := range times {
		sum += float64(t)
	}
	mean := sum / float64(len(times))
	var sq float64
	for _, t := range times {
		d := float64(t) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(times))), true
}
