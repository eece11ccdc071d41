package mqtt

// System topics published by the Core itself. Device-facing topics are
// owned by the topic package; the broker client only needs its own
// status address for the last-will registration and online announce.
const topicPrefixSystem = "homelink/system"

// SystemStatusTopic returns the retained topic carrying the Core's
// online/offline status.
//
// Topic: homelink/system/status
func SystemStatusTopic() string {
	return topicPrefixSystem + "/status"
}
