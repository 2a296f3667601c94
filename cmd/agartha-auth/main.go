package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ps78674/docopt.go"

	"github.com/PaulChristophel/agartha"
	"github.com/PaulChristophel/agartha/internal/config"
	"github.com/PaulChristophel/agartha/internal/logger"
	"github.com/PaulChristophel/agartha/internal/store"
)

var (
	versionString = "devel"
	programName   = filepath.Base(os.Args[0])
)

var usage = fmt.Sprintf(`%[1]s: check agartha external-auth decisions from the command line

Usage:
  %[1]s auth <username> <password> [-c <CONFIGPATH> -l <LOGPATH> -d]
  %[1]s groups <username> [-p <PASSWORD> -j <JOBID> -c <CONFIGPATH> -l <LOGPATH> -d]
  %[1]s wait-table <table> [-c <CONFIGPATH> -l <LOGPATH> -d]

Options:
  -c, --config <CONFIGPATH>    master config path [default: /etc/salt/master, env: CONFIG_PATH]
  -p, --password <PASSWORD>    user password for per-user binds
  -j, --jobid <JOBID>          job id marking a first group-resolution call
  -l, --log <LOGPATH>          log file path
  -d, --debug                  turn on debug logging [default: false]

  -h, --help                   show this screen
  --version                    show version
`, programName)

type cliConfig struct {
	Auth       bool   `docopt:"auth"`
	Groups     bool   `docopt:"groups"`
	WaitTable  bool   `docopt:"wait-table"`
	Username   string `docopt:"<username>"`
	Password   string `docopt:"<password>"`
	Table      string `docopt:"<table>"`
	ConfigPath string `docopt:"--config"`
	BindPass   string `docopt:"--password"`
	JobID      string `docopt:"--jobid"`
	LogPath    string `docopt:"--log"`
	Debug      bool   `docopt:"--debug"`
}

func main() {
	args, err := docopt.ParseArgs(usage, nil, versionString)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var cfg cliConfig
	if err := args.Bind(&cfg); err != nil {
		fmt.Printf("error binding option values: %s\n", err)
		os.Exit(1)
	}

	log, err := logger.Setup(cfg.LogPath, cfg.Debug, true, false)
	if err != nil {
		fmt.Printf("error creating logger: %s\n", err)
		os.Exit(1)
	}

	opts, err := config.LoadFile(cfg.ConfigPath)
	if err != nil {
		log.Fatalf("error loading master config: %s", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Auth:
		ok, err := agartha.Auth(ctx, opts, cfg.Username, cfg.Password)
		if err != nil {
			log.Fatalf("auth error: %s", err)
		}
		fmt.Println(ok)
		if !ok {
			os.Exit(1)
		}
	case cfg.Groups:
		gopts := []agartha.GroupOption{}
		if cfg.BindPass != "" {
			gopts = append(gopts, agartha.WithPassword(cfg.BindPass))
		}
		if cfg.JobID != "" {
			gopts = append(gopts, agartha.WithJobID(cfg.JobID))
		}
		groups, err := agartha.Groups(opts, cfg.Username, gopts...)
		if err != nil {
			log.Fatalf("groups error: %s", err)
		}
		fmt.Println(strings.Join(groups, "\n"))
	case cfg.WaitTable:
		if err := store.WaitForTable(ctx, opts, cfg.Table); err != nil {
			log.Fatalf("wait error: %s", err)
		}
	}
}
