package timeline

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// all is the sentinel value the UI sends for an unset filter.
const all = "all"

// Filters restricts a timeline. Empty or "all" fields impose no constraint.
type Filters struct {
	Role          string `json:"role,omitempty"`
	Status        string `json:"status,omitempty"`
	TransportMode string `json:"transport_mode,omitempty"`
	// QualityRange is an inclusive "min-max" range, e.g. "80-100".
	QualityRange string `json:"quality_range,omitempty"`
}

// QualityRange is an inclusive quality score range.
type QualityRange struct {
	Min int
	Max int
}

// Contains reports whether q lies within the range.
func (r QualityRange) Contains(q int) bool {
	return q >= r.Min && q <= r.Max
}

// ParseQualityRange parses a "min-max" range with 0 <= min <= max <= 100.
func ParseQualityRange(s string) (QualityRange, error) {
	lo, hi, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return QualityRange{}, eris.Wrapf(model.ErrInvalidInput, "timeline: quality range %q", s)
	}

	minQ, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return QualityRange{}, eris.Wrapf(model.ErrInvalidInput, "timeline: quality range min %q", lo)
	}
	maxQ, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return QualityRange{}, eris.Wrapf(model.ErrInvalidInput, "timeline: quality range max %q", hi)
	}
	if minQ < 0 || maxQ > 100 || minQ > maxQ {
		return QualityRange{}, eris.Wrapf(model.ErrInvalidInput, "timeline: quality range %d-%d out of bounds", minQ, maxQ)
	}
	return QualityRange{Min: minQ, Max: maxQ}, nil
}

func set(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != all
}

// IsEmpty reports whether no filter field is set.
func (f Filters) IsEmpty() bool {
	return !set(f.Role) && !set(f.Status) && !set(f.TransportMode) && !set(f.QualityRange)
}

// Validate checks that the enumerated fields hold known values and that the
// quality range parses.
func (f Filters) Validate() error {
	if set(f.Status) && !model.Status(f.Status).Valid() {
		return eris.Wrapf(model.ErrInvalidInput, "timeline: unknown status %q", f.Status)
	}
	if set(f.TransportMode) && !model.TransportMode(f.TransportMode).Valid() {
		return eris.Wrapf(model.ErrInvalidInput, "timeline: unknown transport mode %q", f.TransportMode)
	}
	if set(f.QualityRange) {
		if _, err := ParseQualityRange(f.QualityRange); err != nil {
			return err
		}
	}
	return nil
}

// Filter returns the events matching f as a stable subsequence. An empty
// filter set returns events unchanged. Events without a quality score are
// kept when a quality range is set. An unparsable quality range is ignored;
// callers that need to reject it should call Validate first.
func Filter(events []model.TimelineEvent, f Filters) []model.TimelineEvent {
	if f.IsEmpty() {
		return events
	}

	var qr *QualityRange
	if set(f.QualityRange) {
		if r, err := ParseQualityRange(f.QualityRange); err == nil {
			qr = &r
		}
	}

	out := make([]model.TimelineEvent, 0, len(events))
	for _, ev := range events {
		if set(f.Role) && ev.Role != f.Role {
			continue
		}
		if set(f.Status) && string(ev.Status) != f.Status {
			continue
		}
		if set(f.TransportMode) && (ev.TransportMode == nil || string(*ev.TransportMode) != f.TransportMode) {
			continue
		}
		if qr != nil && scored(ev) && !qr.Contains(*ev.QualityScore) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// scored reports whether ev carries a quality score. A zero score counts as
// unscored, as in the tracking page.
func scored(ev model.TimelineEvent) bool {
	return ev.QualityScore != nil && *ev.QualityScore != 0
}

// Roles returns the distinct roles in first-seen order, for filter menus.
func Roles(events []model.TimelineEvent) []string {
	seen := make(map[string]struct{}, len(events))
	var roles []string
	for _, ev := range events {
		if _, ok := seen[ev.Role]; ok {
			continue
		}
		seen[ev.Role] = struct{}{}
		roles = append(roles, ev.Role)
	}
	return roles
}
