package types

import (
	"strings"
	"time"
)

type Timing struct {
	Start time.Time
	End   time.Time
}

func (t *Timing) Duration() time.Duration {
	return t.End.Sub(t.Start)
}

// TimingCollection records stage timings in the order the stages ran
type TimingCollection struct {
	names   []string
	timings map[string]Timing
}

func NewTimingCollection() *TimingCollection {
	return &TimingCollection{timings: make(map[string]Timing)}
}

func (c *TimingCollection) Add(name string, t Timing) {
	if _, ok := c.timings[name]; !ok {
		c.names = append(c.names, name)
	}
	c.timings[name] = t
}

func (c *TimingCollection) Get(name string) (Timing, bool) {
	t, ok := c.timings[name]
	return t, ok
}

func (c *TimingCollection) Total() time.Duration {
	var total time.Duration
	for _, t := range c.timings {
		total += t.Duration()
	}
	return total
}

func (c *TimingCollection) String() string {
	var sb strings.Builder
	sb.WriteString("Timing:\n")
	// get max label length
	maxLabelLen := 0
	for _, k := range c.names {
		if len(k) > maxLabelLen {
			maxLabelLen = len(k)
		}
	}

	for _, k := range c.names {
		sb.WriteString(k)
		sb.WriteString(":")
		// pad label to max length
		for i := len(k); i < maxLabelLen; i++ {
			sb.WriteString(" ")
		}
		t := c.timings[k]
		sb.WriteString(t.Duration().String())
		sb.WriteString("\n")
	}
	return sb.String()
}
