package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetConfigMissingDefaultPathReturnsCompiledDefaults(t *testing.T) {
	c, err := GetConfig(defaultConfigLoc)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if c.Checkpoint.Store_Dir != defaultStoreDir {
		t.Errorf("Store_Dir: got %q want %q", c.Checkpoint.Store_Dir, defaultStoreDir)
	}
	if c.Checkpoint.Keep_Count != defaultKeepCount {
		t.Errorf("Keep_Count: got %d want %d", c.Checkpoint.Keep_Count, defaultKeepCount)
	}
}

func TestGetConfigMissingExplicitPathFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.cfg")
	if _, err := GetConfig(path); err == nil {
		t.Fatalf("expected an explicit missing config path to error")
	}
}

func TestGetConfigParsesFileAndAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsnap.cfg")
	body := "[Global]\nLog-Level=DEBUG\n\n[Checkpoint]\nStore-Dir=/tmp/procsnap-store\nKeep-Count=9\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := GetConfig(path)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if c.Global.Log_Level != "DEBUG" {
		t.Errorf("Log_Level: got %q want DEBUG", c.Global.Log_Level)
	}
	if c.Checkpoint.Store_Dir != "/tmp/procsnap-store" {
		t.Errorf("Store_Dir: got %q", c.Checkpoint.Store_Dir)
	}
	if c.Checkpoint.Keep_Count != 9 {
		t.Errorf("Keep_Count: got %d want 9", c.Checkpoint.Keep_Count)
	}
	// Watch_Every was never set in the file, so the default still applies.
	if c.Checkpoint.Watch_Every != defaultWatchEvery {
		t.Errorf("Watch_Every: got %d want default %d", c.Checkpoint.Watch_Every, defaultWatchEvery)
	}
}

func TestGetConfigEmptyStoreDirFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "procsnap.cfg")
	body := "[Checkpoint]\nStore-Dir=\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// An explicit empty value still falls back to the compiled default via
	// applyDefaults, so this should succeed rather than fail Validate.
	c, err := GetConfig(path)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if c.Checkpoint.Store_Dir != defaultStoreDir {
		t.Errorf("Store_Dir: got %q want default %q", c.Checkpoint.Store_Dir, defaultStoreDir)
	}
}
