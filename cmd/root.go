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
	"fmt"
	"io"
	"os"
	rdebug "runtime/debug"

	"github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bizflycloud/zfs-backup/pkg/mirror"
	"github.com/bizflycloud/zfs-backup/pkg/orchestrator"
	"github.com/bizflycloud/zfs-backup/pkg/reporter"
	"github.com/bizflycloud/zfs-backup/pkg/support"
	"github.com/bizflycloud/zfs-backup/pkg/volume"
)

const (
	exitOK    = 0
	exitError = 1
	exitFault = 2

	envPrefix = "ZFS_BACKUP"
)

var (
	cfgFile   string
	debug     bool
	quiet     bool
	verbosity int
	logFile   string
	logger    *zap.Logger

	// runCtx collects every event of the invocation and decides the exit code.
	runCtx *orchestrator.RunContext
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "zfs-backup",
	Short: "Pull backups of remote hosts into ZFS volumes.",
	Long: `zfs-backup mirrors directories of remote hosts over rsync and ssh into
per-host ZFS volumes and snapshots them with a retention tag.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			fmt.Println(err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(execute())
}

func execute() (code int) {
	defer func() {
		if r := recover(); r != nil {
			reportFault(os.Stderr, r, faultStack(r, rdebug.Stack()))
			code = exitFault
		}
	}()
	defer func() {
		if logger != nil {
			_ = logger.Sync()
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		return exitError
	}
	return exitCode(runCtx)
}

func exitCode(rc *orchestrator.RunContext) int {
	if rc != nil && rc.Errors() > 0 {
		return exitError
	}
	return exitOK
}

// faultStack prefers the stack of the worker goroutine a job panicked on.
func faultStack(r interface{}, stack []byte) []byte {
	if jp, ok := r.(*orchestrator.JobPanic); ok && len(jp.Stack) > 0 {
		return jp.Stack
	}
	return stack
}

// reportFault prints an unexpected panic. With --debug the stack trace and
// every event recorded so far are included.
func reportFault(w io.Writer, r interface{}, stack []byte) {
	if !debug {
		fmt.Fprintf(w, "zfs-backup: internal error: %v (rerun with --debug for details)\n", r)
		return
	}
	fmt.Fprintf(w, "zfs-backup: internal error: %v\n%s\n", r, stack)
	if runCtx != nil {
		fmt.Fprintln(w, "events so far:")
		_, _ = runCtx.Journal().WriteTo(w)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.zfs-backup.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug (default is false)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only report warnings and errors")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity, repeat for more detail")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "rotated JSON log file (default depends on the user)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	configDir, logPath, err := support.CheckPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitError)
	}

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(exitError)
		}

		// Search config in home directory with name ".zfs-backup" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".zfs-backup")
	}

	// Set default value for config
	viper.SetDefault("config_dir", configDir)
	viper.SetDefault("log_file", logPath)
	viper.SetDefault("zfs_bin", volume.DefaultBinary)
	viper.SetDefault("rsync_bin", mirror.DefaultBinary)
	viper.SetDefault("ssh_bin", mirror.DefaultRemoteShell)
	viper.SetDefault("parallel", 1)

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	readErr := viper.ReadInConfig()
	if logFile != "" {
		viper.Set("log_file", logFile)
	}

	logger, err = reporter.NewLog(reporter.LogConfig{
		Debug: debug,
		Quiet: quiet,
		Color: isatty.IsTerminal(os.Stderr.Fd()),
		File:  viper.GetString("log_file"),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(exitError)
	}
	runCtx = orchestrator.NewRunContext(reporter.NewLogger(logger, verbosity))

	// If a config file is found, read it in.
	switch {
	case readErr == nil:
		runCtx.Debug("Using config file: " + viper.ConfigFileUsed())
	case cfgFile != "":
		runCtx.Error(fmt.Sprintf("failed to read config file %s: %v", cfgFile, readErr))
	}
}
