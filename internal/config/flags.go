package config

import (
	"flag"
	"fmt"
	"strconv"
)

// parseArgs turns the orchestrate subcommand's flag set (spec.md §6) into a
// kvLayer, the highest-precedence layer. Grounded on the teacher's
// per-subcommand flag.NewFlagSet usage (e.g. paas_deploy_bluegreen.go)
// rather than a positional-arg or cobra parser.
func parseArgs(args []string) (kvLayer, error) {
	layer := kvLayer{}
	fs := flag.NewFlagSet("orchestrate", flag.ContinueOnError)
	fs.Usage = func() {}

	var (
		configPath                                        string
		port, splunkWebPort, indexers, searchHeads, rf, sf int
		dataDir, splunkDataDir, projectName                string
		interactive                                        bool
		withMonitoring, noMonitoring                        bool
		withSplunk, noSplunk                                bool
		splunkMode                                          string
		splunkPassword, splunkSecret                        string
		appCPU, appMem                                      string
		dryRun, verbose, noValidation                       bool
		logLevel                                            string
		writeEffective                                      string
	)

	fs.StringVar(&configPath, "config", "", "path to a K=V config template")
	fs.IntVar(&port, "port", 0, "app port")
	fs.StringVar(&dataDir, "data-dir", "", "app data directory")
	fs.StringVar(&projectName, "project-name", "", "compose project name")
	fs.BoolVar(&interactive, "i", false, "interactive prompting")
	fs.BoolVar(&interactive, "interactive", false, "interactive prompting")
	fs.BoolVar(&withMonitoring, "with-monitoring", false, "enable monitoring stack")
	fs.BoolVar(&noMonitoring, "no-monitoring", false, "disable monitoring stack")
	fs.BoolVar(&withSplunk, "with-splunk", false, "enable splunk stack")
	fs.BoolVar(&noSplunk, "no-splunk", false, "disable splunk stack")
	fs.StringVar(&splunkMode, "splunk-mode", "", "single|cluster")
	fs.IntVar(&splunkWebPort, "splunk-web-port", 0, "splunk web port")
	fs.IntVar(&indexers, "indexers", 0, "indexer count")
	fs.IntVar(&searchHeads, "search-heads", 0, "search head count")
	fs.IntVar(&rf, "replication-factor", 0, "replication factor")
	fs.IntVar(&sf, "search-factor", 0, "search factor")
	fs.StringVar(&splunkDataDir, "splunk-data-dir", "", "splunk data directory")
	fs.StringVar(&splunkPassword, "splunk-password", "", "splunk admin password")
	fs.StringVar(&splunkSecret, "splunk-secret", "", "splunk secret key")
	fs.StringVar(&appCPU, "app-cpu", "", "app cpu limit")
	fs.StringVar(&appMem, "app-mem", "", "app memory limit")
	fs.BoolVar(&dryRun, "dry-run", false, "print the plan without applying it")
	fs.BoolVar(&verbose, "verbose", false, "verbose logging")
	fs.StringVar(&logLevel, "log-level", "", "debug|info|warn|error")
	fs.BoolVar(&noValidation, "no-validation", false, "skip preflight and supply-chain validation")
	fs.StringVar(&writeEffective, "write-effective", "", "write the normalized config to PATH")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if configPath != "" {
		layer["__config_path"] = configPath
	}
	if port != 0 {
		layer["APP_PORT"] = strconv.Itoa(port)
	}
	if dataDir != "" {
		layer["DATA_DIR"] = dataDir
	}
	if projectName != "" {
		layer["PROJECT_NAME"] = projectName
	}
	if interactive {
		layer["__interactive"] = "true"
	}
	if withMonitoring {
		layer["ENABLE_MONITORING"] = "true"
	}
	if noMonitoring {
		layer["ENABLE_MONITORING"] = "false"
	}
	if withSplunk {
		layer["ENABLE_SPLUNK"] = "true"
	}
	if noSplunk {
		layer["ENABLE_SPLUNK"] = "false"
	}
	if splunkMode != "" {
		layer["SPLUNK_CLUSTER_MODE"] = splunkMode
	}
	if splunkWebPort != 0 {
		layer["SPLUNK_WEB_PORT"] = strconv.Itoa(splunkWebPort)
	}
	if indexers != 0 {
		layer["INDEXER_COUNT"] = strconv.Itoa(indexers)
	}
	if searchHeads != 0 {
		layer["SEARCH_HEAD_COUNT"] = strconv.Itoa(searchHeads)
	}
	if rf != 0 {
		layer["REPLICATION_FACTOR"] = strconv.Itoa(rf)
	}
	if sf != 0 {
		layer["SEARCH_FACTOR"] = strconv.Itoa(sf)
	}
	if splunkDataDir != "" {
		layer["SPLUNK_DATA_DIR"] = splunkDataDir
	}
	if splunkPassword != "" {
		layer["__splunk_password"] = splunkPassword
	}
	if splunkSecret != "" {
		layer["__splunk_secret"] = splunkSecret
	}
	if appCPU != "" {
		layer["__app_cpu"] = appCPU
	}
	if appMem != "" {
		layer["__app_mem"] = appMem
	}
	if dryRun {
		layer["DRY_RUN"] = "true"
	}
	if verbose {
		layer["VERBOSE"] = "true"
	}
	if logLevel != "" {
		layer["LOG_LEVEL"] = logLevel
	}
	if noValidation {
		layer["__no_validation"] = "true"
	}
	if writeEffective != "" {
		layer["__write_effective"] = writeEffective
	}

	return layer, nil
}
