package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"secchannel/internal/channel"
	"secchannel/internal/crypto"
	"secchannel/internal/protocol"
)

// minMessages is what one logical message needs from the window: a header
// and a payload send, twice over for a sealed payload and its signature.
const minMessages = 4

// ChannelConfig selects and sizes the channel.
type ChannelConfig struct {
	Name             string        `yaml:"name" env:"SECCHANNEL_NAME" env-default:"secure-channel-queue" env-description:"channel name"`
	Dir              string        `yaml:"dir" env:"SECCHANNEL_DIR" env-description:"socket directory (default $XDG_RUNTIME_DIR or the temp dir)"`
	MaxMessages      int           `yaml:"max_messages" env:"SECCHANNEL_MAX_MESSAGES" env-default:"1024" env-description:"unread messages allowed per direction"`
	MaxMessageSize   int           `yaml:"max_message_size" env:"SECCHANNEL_MAX_MESSAGE_SIZE" env-default:"4096" env-description:"largest single message in bytes"`
	ReceiveTimeout   time.Duration `yaml:"receive_timeout" env:"SECCHANNEL_RECEIVE_TIMEOUT" env-default:"30s" env-description:"per-step receive deadline, negative disables"`
	DialTimeout      time.Duration `yaml:"dial_timeout" env:"SECCHANNEL_DIAL_TIMEOUT" env-default:"5s" env-description:"connect and hello deadline"`
	PeerPollInterval time.Duration `yaml:"peer_poll_interval" env:"SECCHANNEL_PEER_POLL_INTERVAL" env-default:"1s" env-description:"initiator liveness poll interval"`
}

// CryptoConfig names the algorithm suite.
type CryptoConfig struct {
	Exchange  string `yaml:"exchange" env:"SECCHANNEL_EXCHANGE" env-default:"x25519" env-description:"x25519 or rsa-oaep"`
	Signature string `yaml:"signature" env:"SECCHANNEL_SIGNATURE" env-default:"ed25519ph" env-description:"ed25519ph or ecdsa-p256"`
	Cipher    string `yaml:"cipher" env:"SECCHANNEL_CIPHER" env-default:"aes-256-cbc" env-description:"aes-256-cbc or aes-128-cbc"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"SECCHANNEL_LOG_LEVEL" env-default:"info" env-description:"panic..trace"`
	Format string `yaml:"format" env:"SECCHANNEL_LOG_FORMAT" env-default:"text" env-description:"text or json"`
}

// Config is the complete runtime configuration.
type Config struct {
	Channel ChannelConfig `yaml:"channel"`
	Crypto  CryptoConfig  `yaml:"crypto"`
	Log     LogConfig     `yaml:"log"`
}

// Load reads the configuration. An env file, when given, is loaded into the
// process environment first without overriding variables already set. A
// YAML file, when given, is read next and environment variables override
// it. Defaults fill whatever is left.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns the configuration Load yields with no file and a clean
// environment.
func Default() *Config {
	cfg := &Config{
		Channel: ChannelConfig{
			Name:             protocol.DefaultChannelName,
			MaxMessages:      protocol.MaxMessageNumber,
			MaxMessageSize:   protocol.MaxMessageSize,
			ReceiveTimeout:   30 * time.Second,
			DialTimeout:      channel.DefaultDialTimeout,
			PeerPollInterval: time.Second,
		},
		Crypto: CryptoConfig{Exchange: "x25519", Signature: "ed25519ph", Cipher: "aes-256-cbc"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Channel.Dir == "" {
		c.Channel.Dir = channel.DefaultDir()
	}
}

// Usage describes the environment variables Load honours.
func Usage() (string, error) {
	return cleanenv.GetDescription(&Config{}, nil)
}

// Suite parses the crypto section.
func (c *Config) Suite() (crypto.Suite, error) {
	return crypto.ParseSuite(c.Crypto.Exchange, c.Crypto.Signature, c.Crypto.Cipher)
}

// Validate checks the configuration is usable. The channel must carry the
// largest blob the chosen suite exchanges.
func (c *Config) Validate() error {
	var errs []error
	if _, err := channel.SocketPath(c.Channel.Dir, c.Channel.Name); err != nil {
		errs = append(errs, err)
	}
	if c.Channel.MaxMessages < minMessages {
		errs = append(errs, fmt.Errorf("channel.max_messages must be at least %d, got %d", minMessages, c.Channel.MaxMessages))
	}
	if c.Channel.DialTimeout <= 0 || c.Channel.PeerPollInterval <= 0 {
		errs = append(errs, errors.New("channel.dial_timeout and channel.peer_poll_interval must be positive"))
	}
	suite, err := c.Suite()
	if err != nil {
		errs = append(errs, err)
	} else if need := suite.MaxBlobSize(); c.Channel.MaxMessageSize < need {
		errs = append(errs, fmt.Errorf("channel.max_message_size %d cannot carry %s blobs of %d bytes", c.Channel.MaxMessageSize, suite, need))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return multierr.Combine(errs...)
}
