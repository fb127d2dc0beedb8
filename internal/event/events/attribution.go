package events

import (
	"github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/collabedit/internal/engine/position"
	"github.com/dshills/collabedit/internal/event"
)

// Attribution event topics.
const (
	// TopicRangeAdded is published when a new attribution range is created.
	TopicRangeAdded event.Topic = "attribution.range.added"

	// TopicRangeMerged is published when an insertion extended a range.
	TopicRangeMerged event.Topic = "attribution.range.merged"

	// TopicRangeSplit is published when an insertion split a range in two.
	TopicRangeSplit event.Topic = "attribution.range.split"

	// TopicRangesPruned is published when empty ranges were dropped.
	TopicRangesPruned event.Topic = "attribution.ranges.pruned"
)

// RangeAdded describes a new range.
type RangeAdded struct {
	Span  position.Span
	Color colorful.Color
}

// RangeMerged describes a range whose bounds grew to absorb an insertion.
type RangeMerged struct {
	Before position.Span
	After  position.Span
	Color  colorful.Color
}

// RangeSplit describes a range cut around a foreign insertion.
type RangeSplit struct {
	Head  position.Span
	Tail  position.Span
	Color colorful.Color
}

// RangesPruned reports how many empty ranges were dropped.
type RangesPruned struct {
	Count int
}
