package util

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/litemap/lib/codec"
	"github.com/ValentinKolb/litemap/lib/config"
	"github.com/ValentinKolb/litemap/lib/logging"
	"github.com/ValentinKolb/litemap/lib/registry"
	"github.com/ValentinKolb/litemap/lib/store/lstore"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var log = logger.GetLogger("cli")

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupStoreFlags adds the flags selecting store, namespace and codec to a command
func SetupStoreFlags(cmd *cobra.Command) {
	key := "store"
	cmd.PersistentFlags().String(key, config.DefaultIdentifier, WrapString("Store identifier: a sqlite file path or one of memory:<name>, sqlite:<path>, bolt:<path>, pebble:<dir>"))

	key = "namespace"
	cmd.PersistentFlags().String(key, config.DefaultNamespace, WrapString("Namespace (key prefix) the record commands work on"))

	key = "codec"
	cmd.PersistentFlags().String(key, codec.NameJSONIter, WrapString("Codec used to encode records (jsoniter, json)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, config.DefaultLogLevel, WrapString("Log level (debug, info, warn, error)"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, 30*time.Second, WrapString("How long to wait for a store operation"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("litemap")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetConfig reads the configuration from viper
func GetConfig() (config.Config, error) {
	conf := config.Config{
		Identifier: viper.GetString("store"),
		Namespace:  viper.GetString("namespace"),
		Codec:      viper.GetString("codec"),
		LogLevel:   viper.GetString("log-level"),
	}
	err := conf.Validate()
	return conf, err
}

// Setup binds the flags of cmd, reads the configuration and initializes the loggers.
// It is used as PersistentPreRunE of the root command.
func Setup(cmd *cobra.Command, _ []string) error {
	if err := BindCommandFlags(cmd); err != nil {
		return err
	}
	conf, err := GetConfig()
	if err != nil {
		return err
	}
	return logging.Init(conf.LogLevel)
}

// --------------------------------------------------------------------------
// Store access
// --------------------------------------------------------------------------

var (
	registryOnce sync.Once
	reg          *registry.Registry
)

// Registry returns the registry shared by all commands of the process.
// The codec is taken from the configuration on first use.
func Registry() *registry.Registry {
	registryOnce.Do(func() {
		c, err := codec.ByName(viper.GetString("codec"))
		if err != nil {
			c = codec.Default()
		}
		reg = registry.New(registry.WithCodec(c))
	})
	return reg
}

// Namespace returns the configured namespace of the configured store
func Namespace() (*lstore.Namespace, error) {
	conf, err := GetConfig()
	if err != nil {
		return nil, err
	}
	return Registry().Namespace(conf.Identifier, conf.Namespace)
}

// Context returns a context bounded by the configured timeout
func Context() (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}

// Shutdown closes every store opened by the commands. Registered with cobra.OnFinalize.
func Shutdown() {
	if reg == nil {
		return
	}
	ctx, cancel := Context()
	defer cancel()
	if err := reg.CloseAll(ctx); err != nil {
		log.Errorf("closing stores failed: %v", err)
	}
}

// --------------------------------------------------------------------------
// JSON helper
// --------------------------------------------------------------------------

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ParseJSON parses a command line argument as JSON value.
// Arguments that are not valid JSON are taken as plain string.
func ParseJSON(arg string) any {
	var v any
	if err := jsonAPI.UnmarshalFromString(arg, &v); err != nil {
		return arg
	}
	return v
}

// ParseJSONObject parses a command line argument as JSON object.
func ParseJSONObject(arg string) (map[string]any, error) {
	var v map[string]any
	if err := jsonAPI.UnmarshalFromString(arg, &v); err != nil {
		return nil, fmt.Errorf("expected a JSON object: %w", err)
	}
	if v == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}
	return v, nil
}

// PrintJSON writes v as indented JSON to stdout
func PrintJSON(v any) error {
	data, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
