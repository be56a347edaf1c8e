package version

// Any is a Check value that disables the optimistic concurrency check on append.
var Any = CheckAny{}

// Check is used to specify the expected version of an Event Stream
// before appending new Domain Events.
type Check interface {
	isVersionCheck()
}

// CheckAny skips the version check.
type CheckAny struct{}

func (CheckAny) isVersionCheck() {}

// CheckExact requires the Event Stream to be exactly at the specified version.
type CheckExact Version

func (CheckExact) isVersionCheck() {}
