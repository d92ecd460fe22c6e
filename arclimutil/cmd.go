/*
Copyright © 2024 the arclim authors.
This file is part of arclim.

arclim is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

arclim is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with arclim.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package arclimutil is the command-line interface to the ARCLIM
// climate index archive.
package arclimutil

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/arclim"
	"github.com/spatialmodel/arclim/download"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to arclim.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "dir",
			usage: `
              dir is the working directory. It must contain the catalog
              of climate index codes, and the archive is downloaded and
              extracted into it.`,
			shorthand:  "d",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "url",
			usage: `
              url is the location of the archive. It can be an http(s) URL
              or a gs://, s3:// or file:// blob location.`,
			defaultVal: arclim.DefaultURL,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "archive",
			usage: `
              archive is the name of the downloaded archive, without the
              .zip extension, and of the directory it is extracted into.`,
			defaultVal: arclim.DefaultArchiveName,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "catalog",
			usage: `
              catalog is the .csv or .xlsx file listing the climate index
              codes in its 'Código' column, relative to dir.`,
			defaultVal: arclim.DefaultCatalogFile,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "template",
			usage: `
              template locates a raster within the extracted archive.
              {code}, {period}, {month} and {ext} are replaced by the
              requested values.`,
			defaultVal: arclim.DefaultPathTemplate,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "ext",
			usage: `
              ext is the file extension of the rasters in the archive.`,
			defaultVal: arclim.DefaultRasterExt,
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "format",
			usage: `
              format is the representation to load. Only 'grid' is
              supported.`,
			shorthand:  "f",
			defaultVal: string(arclim.FormatGrid),
			flagsets:   []*pflag.FlagSet{loadCmd.Flags()},
		},
		{
			name: "timeout",
			usage: `
              timeout is the maximum duration of one download attempt.`,
			defaultVal: "1h",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "retries",
			usage: `
              retries is the number of times a failed download is retried.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "retry-sleep",
			usage: `
              retry-sleep is how long to wait before retrying a failed
              download.`,
			defaultVal: "30s",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "skip-complete",
			usage: `
              skip-complete skips the download when a previous fetch of
              the same archive completed and its files are still present.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "sha256",
			usage: `
              sha256 is the expected SHA-256 digest of the archive. It is
              checked when skip-complete is set.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fetchCmd.Flags()},
		},
		{
			name: "verbose",
			usage: `
              verbose enables debug logging.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("ARCLIM")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(fetchCmd)
	Root.AddCommand(loadCmd)
	Root.AddCommand(catalogCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("arclim: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "arclim",
	Short: "Access the ARCLIM climate index archive.",
	Long: `arclim downloads the ARCLIM (Atlas de Riesgos Climáticos) archive of
climate indices for Chile and loads individual index layers from it.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'ARCLIM_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	SilenceUsage:      true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of arclim.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("arclim v%s\n", arclim.Version)
	},
	DisableAutoGenTag: true,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download and extract the archive",
	Long: `fetch downloads the archive into the working directory and extracts it,
including the archives it contains. Each run downloads the archive again
unless --skip-complete is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		return s.Fetch(context.Background())
	},
	DisableAutoGenTag: true,
}

var loadCmd = &cobra.Command{
	Use:   "load CODE PERIOD MONTH",
	Short: "Load a climate index layer and summarize it",
	Long: `load reads the layer of climate index CODE for PERIOD (present, future or
delta) and MONTH (jan ... dec, djf, mam, jja, son, summer, winter or annual)
from the extracted archive, and prints its dimensions, extent, spatial
reference and per-band statistics.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		g, err := s.LoadString(args[0], args[1], args[2], Cfg.GetString("format"))
		if err != nil {
			return err
		}
		return printGrid(cmd.OutOrStdout(), g)
	},
	DisableAutoGenTag: true,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the climate index codes",
	Long:  "catalog prints the entries of the catalog of climate index codes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newStore()
		if err != nil {
			return err
		}
		return printCatalog(cmd.OutOrStdout(), s.Catalog())
	},
	DisableAutoGenTag: true,
}

// newLogger returns a logger writing to standard error.
func newLogger() *logrus.Logger {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = logrus.InfoLevel
	if Cfg.GetBool("verbose") {
		log.Level = logrus.DebugLevel
	}
	return log
}

// newStore returns a Store configured from Cfg.
func newStore() (*arclim.Store, error) {
	timeout, err := cast.ToDurationE(Cfg.Get("timeout"))
	if err != nil {
		return nil, fmt.Errorf("arclim: invalid timeout: %v", err)
	}
	sleep, err := cast.ToDurationE(Cfg.Get("retry-sleep"))
	if err != nil {
		return nil, fmt.Errorf("arclim: invalid retry-sleep: %v", err)
	}
	retries, err := cast.ToIntE(Cfg.Get("retries"))
	if err != nil || retries < 0 {
		return nil, fmt.Errorf("arclim: invalid number of retries %v", Cfg.Get("retries"))
	}
	strategy := download.DefaultStrategy()
	strategy.Timeout = timeout
	strategy.RetrySleep = sleep
	strategy.MaxRetries = uint64(retries)

	opts := []arclim.Option{
		arclim.WithURL(Cfg.GetString("url")),
		arclim.WithArchiveName(Cfg.GetString("archive")),
		arclim.WithCatalogFile(Cfg.GetString("catalog")),
		arclim.WithPathTemplate(Cfg.GetString("template")),
		arclim.WithRasterExt(Cfg.GetString("ext")),
		arclim.WithFetchStrategy(strategy),
		arclim.WithLogger(newLogger()),
		arclim.WithProgress(os.Stderr),
	}
	if Cfg.GetBool("skip-complete") {
		opts = append(opts, arclim.WithSkipIfComplete(Cfg.GetString("sha256")))
	}
	return arclim.New(Cfg.GetString("dir"), opts...)
}
