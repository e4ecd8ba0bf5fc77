// This file is part of zfs-backup
//
// Copyright (C) 2020  BizFly Cloud
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>

package cmd

import (
	"context"
	"strconv"
	"time"

	"github.com/bizflycloud/bizflyctl/formatter"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bizflycloud/zfs-backup/pkg/jobconfig"
	"github.com/bizflycloud/zfs-backup/pkg/runner"
	"github.com/bizflycloud/zfs-backup/pkg/volume"
)

var listSnapshotsHeaders = []string{"Snapshot", "Volume", "Created", "Retention", "Expires"}

type snapshotLister interface {
	ListSnapshots(ctx context.Context, path string) ([]volume.Snapshot, bool)
}

// snapshotsCmd represents the snapshots command
var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List the retention-tagged snapshots of every job.",
	Run: func(cmd *cobra.Command, args []string) {
		jobs, err := jobconfig.Discover(viper.GetString("config_dir"), runCtx)
		if err != nil {
			runCtx.Error(err.Error())
			return
		}
		store := volume.NewZFS(runner.New(runCtx), runCtx, volume.WithBinary(viper.GetString("zfs_bin")))
		snaps := collectSnapshots(context.Background(), store, jobs)
		formatter.Output(listSnapshotsHeaders, snapshotRows(snaps, time.Now()))
	},
}

// collectSnapshots lists the snapshots of every sub-volume. A volume that
// cannot be listed is skipped, the store reports why.
func collectSnapshots(ctx context.Context, l snapshotLister, jobs []*jobconfig.Job) []volume.Snapshot {
	var all []volume.Snapshot
	for _, job := range jobs {
		for _, sv := range job.SubVolumes {
			snaps, ok := l.ListSnapshots(ctx, job.SubVolumePath(sv))
			if !ok {
				continue
			}
			all = append(all, snaps...)
		}
	}
	return all
}

func snapshotRows(snaps []volume.Snapshot, now time.Time) [][]string {
	data := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		data = append(data, []string{
			s.Name,
			s.Volume,
			humanize.RelTime(s.Created, now, "ago", "from now"),
			strconv.Itoa(s.RetentionDays) + "d",
			humanize.RelTime(s.Expires(), now, "ago", "from now"),
		})
	}
	return data
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
}
