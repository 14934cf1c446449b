package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/volrender/catalog"
	"github.com/janelia-flyem/volrender/volrender"
)

const (
	// DefaultSaveDir is where "onlysave" renders are written unless configured.
	DefaultSaveDir = "data"

	// DefaultShutdownTimeout is the time given to in-flight requests on shutdown.
	DefaultShutdownTimeout = 5 * time.Second
)

var (
	// the parsed TOML configuration data
	tc tomlConfig

	// the TOML config file location
	tcLocation string
)

func init() {
	tc = defaultConfig()
}

type tomlConfig struct {
	Server  serverConfig
	Render  renderConfig
	Logging volrender.LogConfig
}

type serverConfig struct {
	WebClient       string   `toml:"webclient"`
	SaveDir         string   `toml:"savedir"`
	MaxConnections  int      `toml:"max_connections"`
	ShutdownTimeout int      `toml:"shutdown_timeout"` // seconds
	CorsDomains     []string `toml:"cors_domains"`
}

type renderConfig struct {
	MaxMemoryGB   int  `toml:"max_memory_gb"`
	MemoryMapping bool `toml:"memory_mapping"`
	ImageCacheMB  int  `toml:"image_cache_mb"`
}

func defaultConfig() tomlConfig {
	return tomlConfig{
		Server: serverConfig{
			SaveDir:         DefaultSaveDir,
			ShutdownTimeout: int(DefaultShutdownTimeout / time.Second),
		},
		Render: renderConfig{
			MaxMemoryGB:   catalog.DefaultOptions.MaxMemoryGB,
			MemoryMapping: catalog.DefaultOptions.MemoryMapping,
		},
	}
}

// Some settings in the TOML can be given as relative paths.
// This function converts them in-place to absolute paths,
// assuming the given paths were relative to the TOML file's own directory.
func (c *tomlConfig) convertPathsToAbsolute(configPath string) error {
	var err error

	configDir := filepath.Dir(configPath)

	// [server].webclient
	if c.Server.WebClient != "" {
		c.Server.WebClient, err = volrender.ConvertToAbsolute(c.Server.WebClient, configDir)
		if err != nil {
			return fmt.Errorf("error converting webclient setting to absolute path")
		}
	}

	// [server].savedir
	if c.Server.SaveDir != "" {
		c.Server.SaveDir, err = volrender.ConvertToAbsolute(c.Server.SaveDir, configDir)
		if err != nil {
			return fmt.Errorf("error converting savedir setting to absolute path")
		}
	}

	// [logging].logfile
	if c.Logging.Logfile != "" {
		c.Logging.Logfile, err = volrender.ConvertToAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path")
		}
	}
	return nil
}

// LoadConfig loads server configuration from a TOML file.  Settings absent from
// the file keep their defaults.
func LoadConfig(filename string) error {
	if filename == "" {
		return fmt.Errorf("no server TOML configuration file provided")
	}
	c := defaultConfig()
	if _, err := toml.DecodeFile(filename, &c); err != nil {
		return fmt.Errorf("could not decode TOML config: %v", err)
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %v", err)
	}
	tc = c
	tcLocation = filename
	volrender.Infof("tomlConfig: %+v\n", tc)
	if tc.Render.ImageCacheMB > 0 {
		volrender.Infof("Rendered image cache: %s\n", humanize.Bytes(uint64(tc.Render.ImageCacheMB)*volrender.Mega))
	}
	return nil
}

// ConfigLocation returns the path of the loaded TOML file, if any.
func ConfigLocation() string {
	return tcLocation
}

func currentDir() string {
	currentDir, err := os.Getwd()
	if err != nil {
		log.Fatalln("Could not get current directory:", err)
	}
	return currentDir
}

// WebClientDir returns the directory holding index.html and the js/ and css/ folders.
func WebClientDir() string {
	if tc.Server.WebClient == "" {
		return currentDir()
	}
	return tc.Server.WebClient
}

// SaveDir returns the directory for "onlysave" renders.
func SaveDir() string {
	if tc.Server.SaveDir == "" {
		return DefaultSaveDir
	}
	return tc.Server.SaveDir
}

// MaxConnections returns the bound on concurrent connections, 0 if unbounded.
func MaxConnections() int {
	return tc.Server.MaxConnections
}

// ShutdownTimeout returns how long in-flight requests may run after shutdown starts.
func ShutdownTimeout() time.Duration {
	if tc.Server.ShutdownTimeout <= 0 {
		return DefaultShutdownTimeout
	}
	return time.Duration(tc.Server.ShutdownTimeout) * time.Second
}

// CorsDomains returns the origins allowed to make cross-origin requests.
func CorsDomains() []string {
	return tc.Server.CorsDomains
}

// ImageCacheBytes returns the size of the rendered image cache, 0 if disabled.
func ImageCacheBytes() int {
	return tc.Render.ImageCacheMB * volrender.Mega
}

// CatalogOptions returns the dataset instantiation options.
func CatalogOptions() catalog.Options {
	return catalog.Options{
		MaxMemoryGB:   tc.Render.MaxMemoryGB,
		MemoryMapping: tc.Render.MemoryMapping,
	}
}

// LogConfig returns the [logging] settings.
func LogConfig() *volrender.LogConfig {
	return &tc.Logging
}
