package source

import (
	"strings"

	"influxrelay/internal/record"
)

// TopicMatcher matches MQTT topics against a subscription pattern and
// knows which record origin the pattern carries.
type TopicMatcher struct {
	Pattern  string
	Origin   record.Origin
	segments []string
	wildcard bool
}

// NewTopicMatcher creates a new topic matcher
func NewTopicMatcher(pattern string, origin record.Origin) *TopicMatcher {
	return &TopicMatcher{
		Pattern:  pattern,
		Origin:   origin,
		segments: strings.Split(pattern, "/"),
		wildcard: strings.ContainsAny(pattern, "+#"),
	}
}

// Match checks if a topic matches the pattern
func (tm *TopicMatcher) Match(topic string) bool {
	if !tm.wildcard {
		return tm.Pattern == topic
	}

	topicSegments := strings.Split(topic, "/")
	for i, seg := range tm.segments {
		if seg == "#" {
			// # matches the parent level and everything below it
			return true
		}
		if i >= len(topicSegments) || (seg != "+" && seg != topicSegments[i]) {
			return false
		}
	}
	return len(tm.segments) == len(topicSegments)
}
