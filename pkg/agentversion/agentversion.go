package agentversion

// Set at build time with -ldflags "-X github.com/bizflycloud/zfs-backup/pkg/agentversion.version=...".
var (
	version   string
	commit    string
	buildTime string
)

// Version returns the tool version.
func Version() string {
	if version == "" {
		version = "dev"
	}

	return version
}

func Commit() string {
	if commit == "" {
		return "unknown"
	}
	return commit
}

func BuildTime() string {
	if buildTime == "" {
		return "unknown"
	}
	return buildTime
}
