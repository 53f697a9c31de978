package configure

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/kr/pretty"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

/*
{
  "level": "info",
  "api_addr": ":8090",
  "cache_ttl": "5m",
  "max_file_size": 268435456,
  "root_dir": "/data/photos",
  "embedded": "mp4",
  "jwt": {
    "secret": "testing",
    "algorithm": "HS256"
  }
}
*/

// JWT is the api authentication config
type JWT struct {
	Secret    string `mapstructure:"secret"`
	Algorithm string `mapstructure:"algorithm"`
}

// ServerCfg is the whole config
type ServerCfg struct {
	Level       string        `mapstructure:"level"`
	ConfigFile  string        `mapstructure:"config_file"`
	APIAddr     string        `mapstructure:"api_addr"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	MaxFileSize int64         `mapstructure:"max_file_size"`
	RootDir     string        `mapstructure:"root_dir"`
	Embedded    string        `mapstructure:"embedded"`
	JWT         JWT           `mapstructure:"jwt"`
}

// default config
var defaultConf = ServerCfg{
	Level:       "info",
	ConfigFile:  "livephoto.yaml",
	APIAddr:     "",
	CacheTTL:    5 * time.Minute,
	MaxFileSize: 256 << 20,
	RootDir:     ".",
	Embedded:    "mp4",
}

// Config holds the merged configuration
var Config = viper.New()

func initLog() {
	if l, err := log.ParseLevel(Config.GetString("level")); err == nil {
		log.SetLevel(l)
		log.SetReportCaller(l == log.DebugLevel)
	}
}

// Init loads defaults, flags from args, the config file and the environment,
// in increasing precedence for the last three. It returns the positional args.
func Init(args []string) ([]string, error) {
	Config = viper.New()

	// Default config
	b, _ := json.Marshal(defaultConf)
	defaults := viper.New()
	defaults.SetConfigType("json")
	if err := defaults.ReadConfig(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	if err := Config.MergeConfigMap(defaults.AllSettings()); err != nil {
		return nil, err
	}

	// Flags
	flags := pflag.NewFlagSet("livephoto", pflag.ContinueOnError)
	flags.String("level", "info", "Log level")
	flags.String("config_file", "livephoto.yaml", "configure filename")
	flags.String("api_addr", "", "HTTP manage interface server listen address, empty to run once on the given files")
	flags.Duration("cache_ttl", 5*time.Minute, "Lifetime of cached probe reports")
	flags.Int64("max_file_size", 256<<20, "Largest file accepted by the api")
	flags.String("root_dir", ".", "Directory the api may probe files in")
	flags.String("embedded", "mp4", "Format of the video embedded in motion photos")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if err := Config.BindPFlags(flags); err != nil {
		return nil, err
	}

	// File
	Config.SetConfigFile(Config.GetString("config_file"))
	Config.AddConfigPath(".")
	if err := Config.ReadInConfig(); err != nil {
		log.Debug(err)
		log.Debug("Using default config")
	}

	// Environment
	replacer := strings.NewReplacer(".", "_")
	Config.SetEnvKeyReplacer(replacer)
	Config.AllowEmptyEnv(true)
	Config.AutomaticEnv()

	// Log
	initLog()

	// Print final config
	c, err := Current()
	if err != nil {
		return nil, err
	}
	log.Debugf("Current configurations: \n%# v", pretty.Formatter(c))
	return flags.Args(), nil
}

// Current decodes the merged configuration
func Current() (ServerCfg, error) {
	c := ServerCfg{}
	err := Config.Unmarshal(&c)
	return c, err
}
