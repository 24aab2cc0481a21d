package main

import (
	"os"

	"github.com/ripwire-labs/procsnap/internal/gwconfig"
	"github.com/ripwire-labs/procsnap/internal/gwlog"
)

const (
	defaultConfigLoc = `/etc/procsnap/procsnap.cfg`
	defaultLogLevel  = `INFO`
	defaultStoreDir  = `/var/lib/procsnap`
)

type global struct {
	Log_File  string
	Log_Level string
}

type checkpointCfg struct {
	Store_Dir string
}

type cfgType struct {
	Global     global
	Checkpoint checkpointCfg
}

// GetConfig shares the CLI's config file format (same [Global]/[Checkpoint]
// sections), so one config file serves both procsnap and procsnap-tui.
func GetConfig(path string) (c cfgType, err error) {
	c = cfgType{Global: global{Log_Level: defaultLogLevel}, Checkpoint: checkpointCfg{Store_Dir: defaultStoreDir}}
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) && path == defaultConfigLoc {
			return c, nil
		}
		return c, statErr
	}
	if err = gwconfig.LoadConfigFile(&c, path); err != nil {
		return
	}
	if c.Checkpoint.Store_Dir == `` {
		c.Checkpoint.Store_Dir = defaultStoreDir
	}
	return c, nil
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
