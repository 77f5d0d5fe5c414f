// Package config resolves MCP server and plugin definitions from global and
// project scoped configuration files.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"

	"github.com/tidwall/jsonc"

	"github.com/agentdeck/agentdeck/pkg/types"
)

// fileConfig is the on-disk schema of agentdeck.json / agentdeck.jsonc.
type fileConfig struct {
	MCPServers map[string]types.MCPServerDef `json:"mcpServers,omitempty"`
	Plugins    []types.PluginDef             `json:"plugins,omitempty"`
}

// Resolved holds merged configuration for one working directory.
type Resolved struct {
	MCPServers map[string]types.MCPServerDef
	Plugins    []types.PluginDef
}

// Load resolves configuration for a working directory. Sources, in priority
// order (later wins on name collision):
//  1. Global config (~/.config/agentdeck/)
//  2. Project config (<dir>/agentdeck.json[c], <dir>/.agentdeck/agentdeck.json[c])
func Load(directory string) (*Resolved, error) {
	resolved := &Resolved{
		MCPServers: make(map[string]types.MCPServerDef),
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadFile(path, resolved) == nil {
			loaded[absPath] = true
		}
	}

	globalDir := GlobalConfigDir()
	loadOnce(filepath.Join(globalDir, "agentdeck.json"))
	loadOnce(filepath.Join(globalDir, "agentdeck.jsonc"))

	if directory != "" {
		loadOnce(filepath.Join(directory, "agentdeck.json"))
		loadOnce(filepath.Join(directory, "agentdeck.jsonc"))
		projectDir := filepath.Join(directory, ".agentdeck")
		loadOnce(filepath.Join(projectDir, "agentdeck.json"))
		loadOnce(filepath.Join(projectDir, "agentdeck.jsonc"))
	}

	return resolved, nil
}

// MCPServers returns merged MCP server definitions for a directory.
func MCPServers(directory string) (map[string]types.MCPServerDef, error) {
	resolved, err := Load(directory)
	if err != nil {
		return nil, err
	}
	return resolved.MCPServers, nil
}

// Plugins returns merged plugin definitions for a directory.
func Plugins(directory string) ([]types.PluginDef, error) {
	resolved, err := Load(directory)
	if err != nil {
		return nil, err
	}
	return resolved.Plugins, nil
}

// loadFile loads one config file into resolved, later files overriding
// earlier entries of the same name.
func loadFile(path string, resolved *Resolved) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err // File doesn't exist, skip
	}

	// Strip JSONC comments using tidwall/jsonc
	data = jsonc.ToJSON(data)
	data = interpolate(data)

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return err
	}

	for name, def := range fc.MCPServers {
		resolved.MCPServers[name] = def
	}
	for _, plugin := range fc.Plugins {
		replaced := false
		for i, existing := range resolved.Plugins {
			if existing.Name == plugin.Name {
				resolved.Plugins[i] = plugin
				replaced = true
				break
			}
		}
		if !replaced {
			resolved.Plugins = append(resolved.Plugins, plugin)
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// interpolate processes {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})
}

// GlobalConfigDir returns the global configuration directory,
// AGENTDECK_CONFIG_DIR or ~/.config/agentdeck.
func GlobalConfigDir() string {
	if dir := os.Getenv("AGENTDECK_CONFIG_DIR"); dir != "" {
		return dir
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, "agentdeck")
}
