package main

import (
	"errors"
	"os"
	"strings"

	"github.com/ripwire-labs/procsnap/internal/fdtable"
	"github.com/ripwire-labs/procsnap/internal/gwconfig"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
)

const (
	defaultConfigLoc  = `/etc/procsnap/procsnap.cfg`
	defaultLogLevel   = `INFO`
	defaultStoreDir   = `/var/lib/procsnap`
	defaultKeepCount  = 5
	defaultWatchEvery = 30 // seconds
)

// global mirrors the teacher's own [Global] config block: where to log and
// at what level.
type global struct {
	Log_File  string
	Log_Level string
}

// checkpointCfg governs where artifacts and the registry live, and the
// default fd restorability policy applied unless a subcommand overrides it.
type checkpointCfg struct {
	Store_Dir   string
	Keep_Count  int
	Fd_Allow    []string
	Fd_Deny     []string
	Watch_Every int // seconds between auto-save ticks in watch mode
}

type cfgType struct {
	Global     global
	Checkpoint checkpointCfg
}

// GetConfig loads path if it exists, or falls back to compiled-in defaults
// if path is the default location and isn't present - an operator running
// procsnap without ever writing a config file still gets a working tool.
func GetConfig(path string) (c cfgType, err error) {
	c = defaultConfig()
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) && path == defaultConfigLoc {
			return c, nil
		}
		return c, statErr
	}
	if err = gwconfig.LoadConfigFile(&c, path); err != nil {
		return
	}
	c.applyDefaults()
	return c, c.Validate()
}

func defaultConfig() cfgType {
	c := cfgType{
		Global: global{Log_Level: defaultLogLevel},
		Checkpoint: checkpointCfg{
			Store_Dir:   defaultStoreDir,
			Keep_Count:  defaultKeepCount,
			Watch_Every: defaultWatchEvery,
		},
	}
	return c
}

// applyDefaults fills in anything the config file left zero, the same
// override order the teacher follows: flags > file > compiled default.
func (c *cfgType) applyDefaults() {
	if c.Global.Log_Level == `` {
		c.Global.Log_Level = defaultLogLevel
	}
	if c.Checkpoint.Store_Dir == `` {
		c.Checkpoint.Store_Dir = defaultStoreDir
	}
	if c.Checkpoint.Keep_Count <= 0 {
		c.Checkpoint.Keep_Count = defaultKeepCount
	}
	if c.Checkpoint.Watch_Every <= 0 {
		c.Checkpoint.Watch_Every = defaultWatchEvery
	}
}

func (c cfgType) Validate() error {
	if strings.TrimSpace(c.Checkpoint.Store_Dir) == `` {
		return errors.New("checkpoint store directory must not be empty")
	}
	return nil
}

func (c cfgType) GetLogger() (*gwlog.Logger, error) {
	if c.Global.Log_File == `` {
		return gwlog.NewDiscardLogger(), nil
	}
	l, err := gwlog.NewFile(c.Global.Log_File)
	if err != nil {
		return nil, err
	}
	lvl, err := gwlog.LevelFromString(c.Global.Log_Level)
	if err != nil {
		return nil, err
	}
	if err := l.SetLevel(lvl); err != nil {
		return nil, err
	}
	return l, nil
}

func (c cfgType) FdPolicy() fdtable.Policy {
	return fdtable.NewPolicy(c.Checkpoint.Fd_Allow, c.Checkpoint.Fd_Deny)
}
