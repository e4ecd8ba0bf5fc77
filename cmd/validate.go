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
	"strconv"
	"strings"

	"github.com/bizflycloud/bizflyctl/formatter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bizflycloud/zfs-backup/pkg/jobconfig"
)

var listJobsHeaders = []string{"Name", "Host", "Port", "Volume", "Sub-volumes", "SSH key", "Document"}

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every job document without backing anything up.",
	Run: func(cmd *cobra.Command, args []string) {
		jobs, err := jobconfig.Discover(viper.GetString("config_dir"), runCtx)
		if err != nil {
			runCtx.Error(err.Error())
			return
		}
		formatter.Output(listJobsHeaders, jobRows(jobs))
	},
}

func jobRows(jobs []*jobconfig.Job) [][]string {
	data := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		names := make([]string, 0, len(job.SubVolumes))
		for _, sv := range job.SubVolumes {
			names = append(names, sv.Name)
		}
		key := job.PrivateKeyPath
		if key == "" {
			key = "-"
		}
		data = append(data, []string{
			job.Name,
			job.Host,
			strconv.Itoa(job.Port),
			job.RootVolume(),
			strings.Join(names, ","),
			key,
			job.Source,
		})
	}
	return data
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
