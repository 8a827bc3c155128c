package mqtt

// Topic prefixes for the BlueWatt namespace.
const (
	// TopicPrefix is the root of all BlueWatt topics.
	TopicPrefix = "bluewatt"

	// IngestPrefix is the root of device ingestion topics.
	IngestPrefix = "bluewatt/ingest"

	// SystemPrefix is the root of service status topics.
	SystemPrefix = "bluewatt/system"
)

// Topics builds topic strings for the BlueWatt namespace. The zero value
// is ready to use.
type Topics struct{}

// IngestPower returns the topic devices publish power readings to.
func (Topics) IngestPower() string {
	return IngestPrefix + "/power"
}

// IngestAnomaly returns the topic devices publish anomaly events to.
func (Topics) IngestAnomaly() string {
	return IngestPrefix + "/anomaly"
}

// SystemStatus returns the topic carrying the service online/offline
// status, including the Last Will.
func (Topics) SystemStatus() string {
	return SystemPrefix + "/status"
}
