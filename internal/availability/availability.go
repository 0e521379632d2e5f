// Package availability turns HubSpot meeting-link availability payloads into
// human-readable slot lists grouped by meeting duration.
package availability

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotLayout is the display format of a single slot, e.g. "Wednesday 2025-05-27 11:30".
const SlotLayout = "Monday 2006-01-02 15:04"

// UnknownDuration labels duration keys that are not a non-negative integer.
const UnknownDuration = "UnknownDuration"

// Slot start times outside years 1 to 9999 cannot be rendered.
const (
	minStartMillis = -62135596800000
	maxStartMillis = 253402300799999
)

// Slots maps a duration label ("30min") to formatted slot start times.
type Slots map[string][]string

// Response is the subset of the HubSpot availability-page payload we read.
type Response struct {
	LinkAvailability json.RawMessage `json:"linkAvailability"`
}

// DurationLabel converts a millisecond count to a label such as "30min".
func DurationLabel(durationMS string) string {
	ms, err := strconv.ParseInt(strings.TrimSpace(durationMS), 10, 64)
	if err != nil || ms < 0 {
		return UnknownDuration
	}
	return fmt.Sprintf("%dmin", ms/(1000*60))
}

// LoadLocation resolves an IANA time zone name. Unlike time.LoadLocation it
// rejects the empty string and "Local".
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("unknown or invalid timezone: %q", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown or invalid timezone: %q", name)
	}
	return loc, nil
}

// Transform converts a raw availability payload into Slots rendered in loc.
// When filter is non-nil, slots outside its business hours are dropped.
// Malformed entries are skipped; durations left without slots are omitted.
func Transform(resp *Response, loc *time.Location, filter *BusinessHours, logger *slog.Logger) (Slots, error) {
	if loc == nil {
		return nil, fmt.Errorf("location is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	result := Slots{}

	byDuration, ok := durations(resp)
	if !ok {
		logger.Warn("linkAvailabilityByDuration is not an object or is missing")
		return result, nil
	}

	// Sorted so that durations sharing a label merge deterministically.
	keys := make([]string, 0, len(byDuration))
	for k := range byDuration {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		label := DurationLabel(key)

		details, ok := byDuration[key].(map[string]any)
		if !ok {
			continue
		}
		rawSlots, _ := details["availabilities"].([]any)

		var formatted []string
		for _, raw := range rawSlots {
			slot, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			startMillis, ok := slot["startMillisUtc"].(float64)
			if !ok || math.IsNaN(startMillis) || startMillis < minStartMillis || startMillis > maxStartMillis {
				logger.Debug("Skipping slot without a usable startMillisUtc", "duration", label, "value", slot["startMillisUtc"])
				continue
			}

			local := slotTime(startMillis).In(loc)
			if filter != nil && !filter.Contains(local) {
				continue
			}
			formatted = append(formatted, local.Format(SlotLayout))
		}

		if len(formatted) > 0 {
			result[label] = append(result[label], formatted...)
		}
	}

	return result, nil
}

// slotTime converts fractional epoch milliseconds without passing through
// nanoseconds, which overflow int64 after the year 2262.
func slotTime(startMillis float64) time.Time {
	whole := math.Trunc(startMillis)
	frac := time.Duration((startMillis - whole) * float64(time.Millisecond))
	return time.UnixMilli(int64(whole)).Add(frac)
}

// durations extracts linkAvailability.linkAvailabilityByDuration. A missing
// linkAvailability counts as an empty object.
func durations(resp *Response) (map[string]any, bool) {
	if resp == nil || len(resp.LinkAvailability) == 0 {
		return map[string]any{}, true
	}

	var link map[string]any
	if err := json.Unmarshal(resp.LinkAvailability, &link); err != nil {
		return nil, false
	}
	if link == nil {
		return map[string]any{}, true
	}

	raw, present := link["linkAvailabilityByDuration"]
	if !present {
		return map[string]any{}, true
	}
	byDuration, ok := raw.(map[string]any)
	return byDuration, ok
}
