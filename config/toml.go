package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// defaultDirPerm is the default permissions used when creating directories.
const defaultDirPerm = 0700

var configTemplate *template.Template

func init() {
	var err error
	tmpl := template.New("configFileTemplate").Funcs(template.FuncMap{
		"StringsJoin": strings.Join,
	})
	if configTemplate, err = tmpl.Parse(defaultConfigTemplate); err != nil {
		panic(err)
	}
}

/****** these are for production settings ***********/

// EnsureRoot creates the root, config, and data directories if they don't
// exist, and panics if it fails.
func EnsureRoot(rootDir string) {
	if err := ensureDir(rootDir); err != nil {
		panic(err.Error())
	}
	if err := ensureDir(filepath.Join(rootDir, defaultConfigDir)); err != nil {
		panic(err.Error())
	}
	if err := ensureDir(filepath.Join(rootDir, defaultDataDir)); err != nil {
		panic(err.Error())
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return fmt.Errorf("could not create directory %q: %w", dir, err)
	}
	return nil
}

// WriteConfigFile renders config using the template and writes it to
// configFilePath. This function is called by cmd/hdbridge/commands/init.go.
func WriteConfigFile(rootDir string, config *Config) error {
	return config.WriteToTemplate(filepath.Join(rootDir, defaultConfigFilePath))
}

// WriteToTemplate writes the config to the exact file specified by the path,
// in the default toml template and does not mangle the path or filename at
// all.
func (cfg *Config) WriteToTemplate(path string) error {
	var buffer bytes.Buffer

	if err := configTemplate.Execute(&buffer, cfg); err != nil {
		return err
	}

	return writeFile(path, buffer.Bytes(), 0644)
}

func writeFile(filePath string, contents []byte, mode os.FileMode) error {
	if err := os.WriteFile(filePath, contents, mode); err != nil {
		return fmt.Errorf("could not write config file %q: %w", filePath, err)
	}
	return nil
}

// Note: any changes to the comments/variables/mapstructure
// must be reflected in the appropriate struct in config/config.go
const defaultConfigTemplate = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml

# NOTE: Any path below can be absolute (e.g. "/var/myawesomeapp/data") or
# relative to the home directory (e.g. "data"). The home directory is
# "$HOME/.hdbridge" by default, but could be changed via $HDBRIDGE_HOME env
# variable or --home cmd flag.

#######################################################################
###                   Main Base Config Options                      ###
#######################################################################

# A custom human readable name for this node
moniker = "{{ .BaseConfig.Moniker }}"

# Output level for logging, including package level options
log-level = "{{ .BaseConfig.LogLevel }}"

# Output format: 'plain' (colored text) or 'json'
log-format = "{{ .BaseConfig.LogFormat }}"

# Identities granted the admin role at first boot. Ignored once a registry
# snapshot exists in the store.
admins = [{{ range $i, $a := .BaseConfig.Admins }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]

#######################################################
###         Ledger Configuration Options            ###
#######################################################
[ledger]

# Number of distinct approving validator votes a proof needs before it can
# finalize.
required-validators = {{ .Ledger.RequiredValidators }}

# How long after submission votes are still accepted.
validation-window = "{{ .Ledger.ValidationWindow }}"

#######################################################
###          Relay Configuration Options            ###
#######################################################
[relay]

# Number of distinct relayer confirmations a transfer needs before it
# completes.
required-confirmations = {{ .Relay.RequiredConfirmations }}

#######################################################
###          Store Configuration Options            ###
#######################################################
[store]

# Database backend: goleveldb | memdb
backend = "{{ .Store.Backend }}"

#######################################################
###       Instrumentation Configuration Options     ###
#######################################################
[instrumentation]

# When true, Prometheus metrics are served under /metrics on
# prometheus-listen-addr.
prometheus = {{ .Instrumentation.Prometheus }}

# Address to listen for Prometheus collector(s) connections
prometheus-listen-addr = "{{ .Instrumentation.PrometheusListenAddr }}"

# Maximum number of simultaneous connections.
max-open-connections = {{ .Instrumentation.MaxOpenConnections }}

# Instrumentation namespace
namespace = "{{ .Instrumentation.Namespace }}"
`
