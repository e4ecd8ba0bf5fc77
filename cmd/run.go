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
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bizflycloud/zfs-backup/pkg/broker"
	"github.com/bizflycloud/zfs-backup/pkg/broker/mqtt"
	"github.com/bizflycloud/zfs-backup/pkg/jobconfig"
	"github.com/bizflycloud/zfs-backup/pkg/mirror"
	"github.com/bizflycloud/zfs-backup/pkg/orchestrator"
	"github.com/bizflycloud/zfs-backup/pkg/reporter"
	"github.com/bizflycloud/zfs-backup/pkg/runner"
	"github.com/bizflycloud/zfs-backup/pkg/volume"
)

const brokerConnectTimeout = 10 * time.Second

var runJobNames []string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Back up every configured job now.",
	Run: func(cmd *cobra.Command, args []string) {
		jobs, err := jobconfig.Discover(viper.GetString("config_dir"), runCtx)
		if err != nil {
			runCtx.Error(err.Error())
			return
		}
		jobs = selectJobs(jobs, runJobNames, runCtx)

		parallel := viper.GetInt("parallel")
		r := runner.New(runCtx)
		store := volume.NewZFS(r, runCtx, volume.WithBinary(viper.GetString("zfs_bin")))
		m := mirror.NewRsync(r, runCtx,
			mirror.WithBinary(viper.GetString("rsync_bin")),
			mirror.WithRemoteShell(viper.GetString("ssh_bin")),
			mirror.WithProgress(progressEnabled(verbosity, parallel, isatty.IsTerminal(os.Stdout.Fd()))),
		)

		opts := []orchestrator.Option{
			orchestrator.WithStore(store),
			orchestrator.WithMirror(m),
			orchestrator.WithParallel(parallel),
		}
		if b, machineID := connectBroker(runCtx); b != nil {
			defer func() {
				if err := b.Disconnect(); err != nil {
					runCtx.Warn(err.Error())
				}
			}()
			opts = append(opts,
				orchestrator.WithBroker(b, brokerTopic(viper.GetString("broker_topic"), machineID)),
				orchestrator.WithMachineID(machineID),
			)
		}

		o, err := orchestrator.New(opts...)
		if err != nil {
			runCtx.Error(fmt.Sprintf("invalid configuration: %v", err))
			return
		}
		o.RunAll(context.Background(), runCtx, jobs)
	},
}

// selectJobs keeps the jobs named in names, in discovery order. No names
// keeps every job.
func selectJobs(jobs []*jobconfig.Job, names []string, rep reporter.Reporter) []*jobconfig.Job {
	if len(names) == 0 {
		return jobs
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	selected := make([]*jobconfig.Job, 0, len(names))
	for _, job := range jobs {
		if wanted[job.Name] {
			selected = append(selected, job)
			delete(wanted, job.Name)
		}
	}
	for _, name := range names {
		if wanted[name] {
			rep.Warn("no job named " + name)
			delete(wanted, name)
		}
	}
	return selected
}

// progressEnabled reports whether rsync should stream its progress: only at
// verbosity 2 or more, on a terminal, with one job at a time.
func progressEnabled(verbosity, parallel int, terminal bool) bool {
	return verbosity >= 2 && parallel <= 1 && terminal
}

// connectBroker returns a connected broker when broker_url is set. A broker
// that cannot connect is a warning and the run goes on without notifications.
func connectBroker(rep reporter.Reporter) (broker.Broker, string) {
	url := viper.GetString("broker_url")
	if url == "" {
		return nil, ""
	}
	machineID := viper.GetString("machine_id")
	if machineID == "" {
		machineID, _ = os.Hostname()
	}

	b, err := mqtt.NewBroker(mqtt.WithURL(url), mqtt.WithClientID(machineID), mqtt.WithLogger(logger))
	if err != nil {
		rep.Warn(fmt.Sprintf("notifications disabled: %v", err))
		return nil, ""
	}
	if err := broker.Connect(b, brokerConnectTimeout); err != nil {
		rep.Warn(fmt.Sprintf("notifications disabled: %v", err))
		return nil, ""
	}
	rep.Debug("connected to " + b.String())
	return b, machineID
}

func brokerTopic(topic, machineID string) string {
	if topic != "" {
		return topic
	}
	return "zfs-backup/" + machineID
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.PersistentFlags().StringArrayVar(&runJobNames, "job", nil, "only run the named job (repeatable)")
	runCmd.PersistentFlags().Int("parallel", 1, "number of jobs to run at once")
	_ = viper.BindPFlag("parallel", runCmd.PersistentFlags().Lookup("parallel"))
}
