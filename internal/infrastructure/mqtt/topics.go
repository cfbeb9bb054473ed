package mqtt

import "strings"

// TopicSystemStatus carries the core's retained online/offline state.
const TopicSystemStatus = "garage/system/status"

// validatePublishTopic rejects topics a broker would refuse for publishing.
func validatePublishTopic(topic string) error {
	if topic == "" || strings.ContainsAny(topic, "+#") {
		return ErrInvalidTopic
	}
	return nil
}

// validateFilter rejects empty filters and misplaced wildcards.
func validateFilter(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return ErrInvalidTopic
		}
		if strings.Contains(level, "+") && level != "+" {
			return ErrInvalidTopic
		}
	}
	return nil
}
