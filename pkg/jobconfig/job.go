package jobconfig

import (
	"github.com/bizflycloud/zfs-backup/pkg/mirror"
)

// Job is one validated backup job: one remote host and the sub-volumes
// pulled from it. A Job is never modified after Parse returns it.
type Job struct {
	Name           string
	VolumeRoot     string
	Host           string
	Port           int
	PrivateKeyPath string
	// SubVolumes are kept in document order.
	SubVolumes []SubVolume

	// Source is the document the job was loaded from.
	Source string
}

type SubVolume struct {
	Name       string
	SourcePath string
	MaxAgeDays int
	Excludes   []string
}

// RootVolume returns the volume holding every sub-volume of the job.
func (j *Job) RootVolume() string {
	return j.VolumeRoot + "/" + j.Name
}

func (j *Job) SubVolumePath(sv SubVolume) string {
	return j.RootVolume() + "/" + sv.Name
}

func (j *Job) Remote() mirror.Remote {
	return mirror.Remote{
		Host:           j.Host,
		Port:           j.Port,
		PrivateKeyPath: j.PrivateKeyPath,
	}
}
