package main

import (
	"flag"

	"github.com/ldsec/capsweep/sweep"
	"github.com/ldsec/capsweep/utils"
	"go.dedis.ch/onet/v3/log"
)

func main() {
	configFile := flag.String("config", "", "toml file overriding the default sweep")
	debug := flag.Int("debug", 1, "debug level, 0 to 5")
	flag.Parse()

	log.SetDebugVisible(*debug)

	cfg := sweep.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = sweep.LoadConfig(*configFile)
		log.ErrFatal(err)
	}
	log.Lvlf1("Sweeping %d datasets into %s", len(cfg.Datasets), cfg.Root)

	loader := &utils.FileLoader{Dir: cfg.DataDir, MaxLen: cfg.Model.MaxLen}
	reports, err := sweep.New(cfg, loader).Run()
	log.ErrFatal(err)
	log.Lvl1("Done,", len(reports), "runs")
}
