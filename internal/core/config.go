package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains all of the configuration options available to keycast.
type Config struct {
	Logging struct {
		// Minimum level of a log required to be written. Options: debug, info, warn, error
		LogLevel string `mapstructure:"log_level"`
		// Full path to file to which logs will be written. Blank will write to stdout.
		LogFilePath string `mapstructure:"log_file_path"`
	} `mapstructure:"logging"`

	Transport struct {
		// Serial port the keyboard device is attached to, e.g. /dev/ttyUSB0 or COM3.
		SerialPort string `mapstructure:"serial_port"`
		BaudRate   int    `mapstructure:"baud_rate"`
		// Host and port of a network keyboard server.
		ServerHost string `mapstructure:"server_host"`
		ServerPort int    `mapstructure:"server_port"`
		// Timeout for connecting to a keyboard server.
		DialTimeout time.Duration `mapstructure:"dial_timeout"`
		// How long to wait for keyboard servers to answer a discovery broadcast.
		DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
	} `mapstructure:"transport"`

	Transmit struct {
		// Token policy used for file payloads. Options: six, five
		Policy string `mapstructure:"policy"`
		// Time a key is held before its release report is sent.
		KeyDelay time.Duration `mapstructure:"key_delay"`
		// Time between a release report and the next report.
		PacketDelay time.Duration `mapstructure:"packet_delay"`
		// Polling interval while the device has paused the link.
		PollInterval time.Duration `mapstructure:"poll_interval"`

		Launch struct {
			// Start the receiving application before a file is sent.
			Enabled bool   `mapstructure:"enabled"`
			Key     string `mapstructure:"key"`
			// Time the receiving application needs to start.
			Wait time.Duration `mapstructure:"wait"`
			// Characters typed in one report to select the transfer mode.
			ModeCodes string `mapstructure:"mode_codes"`
		} `mapstructure:"launch"`
	} `mapstructure:"transmit"`

	Database struct {
		// Options: sqlite, postgres
		Engine string `mapstructure:"engine"`
		// SQLite database file.
		Filename string `mapstructure:"filename"`
		// Hostname of the Postgres database instance.
		Host string `mapstructure:"host"`
		// Port on host on which the Postgres instance is accepting connections.
		Port int `mapstructure:"port"`
		// Name of the database in Postgres for keycast.
		Name string `mapstructure:"name"`
		// Username and password of a user with full RW privileges to name.
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
		// Set to verify-full if the Postgres instance supports SSL.
		SSLMode string `mapstructure:"sslmode"`
	} `mapstructure:"database"`

	Cache struct {
		// How long a compressed payload is kept for a retried send.
		TTL             time.Duration `mapstructure:"ttl"`
		CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	} `mapstructure:"cache"`

	Debugging struct {
		// Enable extra info-providing mechanisms.
		Enabled bool `mapstructure:"enabled"`
		// Port on which a pprof server will be started if debug mode is enabled.
		PprofPort int `mapstructure:"pprof_port"`
		// Log every report written to the device.
		PacketLoggingEnabled bool `mapstructure:"packet_logging_enabled"`
		// Enable database-level query logging.
		DatabaseLoggingEnabled bool `mapstructure:"database_logging_enabled"`
	} `mapstructure:"debugging"`
}

const envVarPrefix = "KEYCAST"

// SetDefaults registers a default for every option so that keycast works
// without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.log_level", "info")
	v.SetDefault("logging.log_file_path", "")

	v.SetDefault("transport.serial_port", "")
	v.SetDefault("transport.baud_rate", 921600)
	v.SetDefault("transport.server_host", "")
	v.SetDefault("transport.server_port", 3720)
	v.SetDefault("transport.dial_timeout", 5*time.Second)
	v.SetDefault("transport.discovery_timeout", 5*time.Second)

	v.SetDefault("transmit.policy", "six")
	v.SetDefault("transmit.key_delay", time.Millisecond)
	v.SetDefault("transmit.packet_delay", time.Duration(0))
	v.SetDefault("transmit.poll_interval", time.Millisecond)
	v.SetDefault("transmit.launch.enabled", true)
	v.SetDefault("transmit.launch.key", "F11")
	v.SetDefault("transmit.launch.wait", 2*time.Second)
	v.SetDefault("transmit.launch.mode_codes", "0000")

	v.SetDefault("database.engine", "sqlite")
	v.SetDefault("database.filename", "keycast.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "keycast")
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.cleanup_interval", 15*time.Minute)

	v.SetDefault("debugging.enabled", false)
	v.SetDefault("debugging.pprof_port", 6060)
	v.SetDefault("debugging.packet_logging_enabled", false)
	v.SetDefault("debugging.database_logging_enabled", false)
}

// LoadConfig reads config.yaml from configPath on top of the defaults. A
// missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.AddConfigPath(configPath)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// This allows us to set nested yaml config options through environment
	// variables. For example, database.host can be set using: <envVarPrefix>_DATABASE_HOST
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("error binding %s to %s: %w", k, envVarPrefix+"_"+envVar, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config object: %w", err)
	}
	return config, nil
}

const databaseURITemplate = "host=%s port=%d dbname=%s user=%s password=%s sslmode=%s"

// DatabaseURL returns a database URL generated from the provided config values.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		databaseURITemplate,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.Username,
		c.Database.Password,
		c.Database.SSLMode,
	)
}

// ServerAddress returns the host:port of the configured keyboard server.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Transport.ServerHost, c.Transport.ServerPort)
}
