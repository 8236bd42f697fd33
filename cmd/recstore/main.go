package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kjk/recstore/alert"
	"github.com/kjk/recstore/log"
	"github.com/kjk/recstore/s3archive"
)

var cmdMain = &cobra.Command{
	Use:               "recstore",
	Short:             "Inspect, repair, archive and stress-test record store files",
	PersistentPreRunE: initMain,
	Run:               printUsageAndExit1,
	SilenceUsage:      true,
}

var flagMain struct {
	Config  string
	LogDir  string
	Verbose bool
}

// settings from config file and RECSTORE_* env variables
// e.g. s3.bucket can be set with RECSTORE_S3_BUCKET
var config = viper.New()

func init() {
	cmdMain.PersistentFlags().StringVar(&flagMain.Config, "config", "", "Config file (yaml, toml or json)")
	cmdMain.PersistentFlags().StringVar(&flagMain.LogDir, "log-dir", "", "Directory for daily log files")
	cmdMain.PersistentFlags().BoolVarP(&flagMain.Verbose, "verbose", "v", false, "Verbose logging")

	_ = config.BindPFlag("log.dir", cmdMain.PersistentFlags().Lookup("log-dir"))
	_ = config.BindPFlag("verbose", cmdMain.PersistentFlags().Lookup("verbose"))
	config.SetEnvPrefix("RECSTORE")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.AutomaticEnv()
	config.SetDefault("s3.region", "auto")
}

func main() {
	err := cmdMain.Execute()
	log.Close()
	if err != nil {
		os.Exit(1)
	}
}

func initMain(cmd *cobra.Command, args []string) error {
	if flagMain.Config != "" {
		config.SetConfigFile(flagMain.Config)
		if err := config.ReadInConfig(); err != nil {
			return fmt.Errorf("read config '%s': %w", flagMain.Config, err)
		}
	}
	log.Verbose = config.GetBool("verbose")
	if dir := config.GetString("log.dir"); dir != "" {
		log.Init(&log.Config{Dir: dir})
	}
	return nil
}

func printUsageAndExit1(cmd *cobra.Command, args []string) {
	_ = cmd.Usage()
	os.Exit(1)
}

func s3Config() *s3archive.Config {
	return &s3archive.Config{
		Access:   config.GetString("s3.access"),
		Secret:   config.GetString("s3.secret"),
		Bucket:   config.GetString("s3.bucket"),
		Endpoint: config.GetString("s3.endpoint"),
		Region:   config.GetString("s3.region"),
		Insecure: config.GetBool("s3.insecure"),
	}
}

// alertConfig returns nil if alerting is not configured
func alertConfig() *alert.Config {
	uri := config.GetString("alert.url")
	if uri == "" {
		return nil
	}
	return &alert.Config{
		URL:    uri,
		ApiKey: config.GetString("alert.api_key"),
	}
}
