package support

import (
	"os/user"
	"path/filepath"
)

// CheckPath returns the default job documents directory and log file for the
// current user.
func CheckPath() (string, string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", "", err
	}
	configDir, logPath := pathsFor(currentUser)
	return configDir, logPath, nil
}

func pathsFor(u *user.User) (configDir, logPath string) {
	if u.Username == "root" {
		return "/etc/zfs-backup/jobs.d", "/var/log/zfs-backup/zfs-backup.log"
	}
	return filepath.Join(u.HomeDir, ".config/zfs-backup/jobs.d"),
		filepath.Join(u.HomeDir, "var/log/zfs-backup/zfs-backup.log")
}
