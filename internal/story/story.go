// Package story turns a product timeline into a first-person narrative for
// consumers.
package story

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/blocktrace/blocktrace/internal/model"
	"github.com/blocktrace/blocktrace/internal/timeline"
)

// ErrNoEvents is returned when there is nothing to narrate.
var ErrNoEvents = eris.New("story: no events")

const (
	maxListedLocations = 3
	maxListedActors    = 4
	maxQuotedNotes     = 2
)

// endings are matched in order against the lowercased last action; the
// first entry is also the fallback.
var endings = []struct {
	keyword string
	format  string
}{
	{"delivered", "I've finally reached my destination at %s! I can't wait to make someone happy. 🎉"},
	{"shipped", "I'm on my way to %s right now and can't wait to meet my new family! 🚛"},
	{"quality", "I just passed quality inspection at %s and I'm ready for the next step! ✅"},
	{"manufacturing", "I'm still being crafted with care at %s, every detail perfected for you! 🏭"},
	{"warehouse", "I'm safely stored at %s, dreaming about my future home! 📦"},
}

var (
	printer = message.NewPrinter(language.English)
	titler  = cases.Title(language.English)
)

type actor struct{ name, role string }

// Generate builds the template story for a product from every field its
// timeline carries. Output is deterministic for a given input.
func Generate(productID string, events []model.TimelineEvent) (string, error) {
	if len(events) == 0 {
		return "", ErrNoEvents
	}
	sum := timeline.Summarize(events)
	first, last := events[0], events[len(events)-1]

	var b strings.Builder
	p := func(format string, args ...any) { b.WriteString(printer.Sprintf(format, args...)) }
	para := func() { b.WriteString("\n\n") }

	p("Hi! I'm %s! 🌟", productID)
	para()

	p("My journey began when %s, a dedicated %s, first took care of me at %s. ", first.Actor, first.Role, first.Location)
	if first.BatchNumber != nil {
		p("I was part of batch %s, which made me feel like I belonged to something special! ", *first.BatchNumber)
	}
	if first.TemperatureCelsius != nil {
		p("They kept me at a comfortable %v°C. ", *first.TemperatureCelsius)
	}
	if first.Notes != nil {
		p("They even noted: \"%s\". ", *first.Notes)
	}
	para()

	if sum.TotalDistanceKm > 0 {
		p("Then I set off on a %.0f kilometer adventure! ", sum.TotalDistanceKm)
		if modes := transportModes(events); len(modes) > 0 {
			p("I travelled by %s. ", strings.Join(modes, ", "))
		}
		if sum.TotalCostUSD.IsPositive() {
			p("My journey cost $%s, and I was worth every penny! ", sum.TotalCostUSD.StringFixed(2))
		}
		para()
	}

	if sum.AvgTemperature != nil || sum.AvgHumidity != nil || sum.TotalCarbonKg > 0 {
		p("Everyone took good care of me along the way. ")
		if sum.AvgTemperature != nil {
			p("They held my temperature at %.1f°C, ", *sum.AvgTemperature)
		}
		if sum.AvgHumidity != nil {
			p("kept humidity at %.1f%%, ", *sum.AvgHumidity)
		}
		if sum.TotalCarbonKg > 0 {
			p("and my carbon footprint was only %.2f kg CO₂. ", sum.TotalCarbonKg)
		}
		para()
	}

	certs := countCertified(events)
	if (sum.AvgQuality != nil && *sum.AvgQuality > 0) || certs > 0 {
		p("I'm proud of my quality! ")
		if sum.AvgQuality != nil && *sum.AvgQuality > 0 {
			p("I scored %d/100 on quality tests %s ", *sum.AvgQuality, qualityEmoji(*sum.AvgQuality))
		}
		if certs > 0 {
			p("and earned %d official certifications! ", certs)
		}
		para()
	}

	if hasGPS(events) {
		locs := uniqueLocations(events)
		shown := locs[:min(len(locs), maxListedLocations)]
		p("My journey was tracked by GPS across %d locations: %s", len(locs), strings.Join(shown, " → "))
		if extra := len(locs) - len(shown); extra > 0 {
			p(" and %d more", extra)
		}
		p("! Every coordinate was recorded so you know exactly where I've been.")
		para()
	}

	if len(events) > 1 {
		actors := uniqueActors(events)
		shown := actors[:min(len(actors), maxListedActors)]
		names := make([]string, len(shown))
		for i, a := range shown {
			names[i] = a.name + " (" + a.role + ")"
		}
		p("I met so many caring people along the way: %s", strings.Join(names, ", "))
		if len(events) > maxListedActors {
			p(" and %d other professionals", len(events)-maxListedActors)
		}
		p(".")
		para()
	}

	if notes := allNotes(events); len(notes) > 0 {
		quoted := make([]string, 0, maxQuotedNotes)
		for _, n := range notes[:min(len(notes), maxQuotedNotes)] {
			quoted = append(quoted, `"`+n+`"`)
		}
		p("Some special moments from my journey: %s.", strings.Join(quoted, " and "))
		para()
	}

	p("Every one of my %d steps is permanently recorded on the blockchain. ", len(events))
	if hasBlockchainHash(events) {
		p("My blockchain hashes prove my story is authentic and tamper-proof! ")
	}
	para()

	p(ending(last.Action), last.Location)
	para()
	p("Thank you for caring about my journey! 💝")

	return b.String(), nil
}

func ending(action string) string {
	a := strings.ToLower(action)
	for _, e := range endings {
		if strings.Contains(a, e.keyword) {
			return e.format
		}
	}
	return endings[0].format
}

func qualityEmoji(q int) string {
	switch {
	case q >= 95:
		return "🌟"
	case q >= 85:
		return "⭐"
	default:
		return "📊"
	}
}

func transportModes(events []model.TimelineEvent) []string {
	seen := make(map[model.TransportMode]bool)
	var out []string
	for _, ev := range events {
		if ev.TransportMode == nil || seen[*ev.TransportMode] {
			continue
		}
		seen[*ev.TransportMode] = true
		out = append(out, titler.String(string(*ev.TransportMode)))
	}
	return out
}

func uniqueLocations(events []model.TimelineEvent) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ev := range events {
		if !seen[ev.Location] {
			seen[ev.Location] = true
			out = append(out, ev.Location)
		}
	}
	return out
}

func uniqueActors(events []model.TimelineEvent) []actor {
	seen := make(map[string]bool)
	var out []actor
	for _, ev := range events {
		if !seen[ev.Actor] {
			seen[ev.Actor] = true
			out = append(out, actor{ev.Actor, ev.Role})
		}
	}
	return out
}

func allNotes(events []model.TimelineEvent) []string {
	var out []string
	for _, ev := range events {
		if ev.Notes != nil && *ev.Notes != "" {
			out = append(out, *ev.Notes)
		}
	}
	return out
}

func countCertified(events []model.TimelineEvent) int {
	n := 0
	for _, ev := range events {
		if ev.CertificationHash != nil {
			n++
		}
	}
	return n
}

func hasGPS(events []model.TimelineEvent) bool {
	for _, ev := range events {
		if ev.HasGPS() {
			return true
		}
	}
	return false
}

func hasBlockchainHash(events []model.TimelineEvent) bool {
	for _, ev := range events {
		if ev.BlockchainHash != nil {
			return true
		}
	}
	return false
}
