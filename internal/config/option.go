package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Option is one configurable value: where it lives in the Config struct and
// how it is named on the flag set, in the environment and in the TOML file.
type Option struct {
	Name         string
	EnvVar       string
	TomlKey      string
	Usage        string
	ConfigKey    interface{}
	DefaultValue interface{}
	// CustomSetValue overrides the default per-type parsing; options using
	// it are surfaced as string flags.
	CustomSetValue func(*Option, interface{}) error
	Validate       func(*Option) error

	flag *pflag.Flag
}

func (o *Option) envKey() string {
	if o.EnvVar != "" {
		return o.EnvVar
	}
	return strings.ToUpper(strings.ReplaceAll(o.Name, "-", "_"))
}

func (o *Option) tomlKey() string {
	if o.TomlKey != "" {
		return o.TomlKey
	}
	return strings.ReplaceAll(o.Name, "-", "_")
}

func (o *Option) usageText() string {
	return fmt.Sprintf("%s (%s)", o.Usage, o.envKey())
}

// AddFlag registers the option on the flag set. Only the types the wallet
// config actually uses are supported.
func (o *Option) AddFlag(flagset *pflag.FlagSet) error {
	if o.CustomSetValue != nil {
		def := ""
		if o.DefaultValue != nil {
			def = fmt.Sprint(o.DefaultValue)
		}
		flagset.String(o.Name, def, o.usageText())
		o.flag = flagset.Lookup(o.Name)
		return nil
	}
	switch key := o.ConfigKey.(type) {
	case *string:
		def, _ := o.DefaultValue.(string)
		flagset.String(o.Name, def, o.usageText())
	case *bool:
		def, _ := o.DefaultValue.(bool)
		flagset.Bool(o.Name, def, o.usageText())
	case *time.Duration:
		def, _ := o.DefaultValue.(time.Duration)
		flagset.Duration(o.Name, def, o.usageText())
	case *uint16:
		def, _ := o.DefaultValue.(uint16)
		flagset.Uint16(o.Name, def, o.usageText())
	default:
		return fmt.Errorf("unexpected option type for %s: %T", o.Name, key)
	}
	o.flag = flagset.Lookup(o.Name)
	return nil
}

// setValue applies a raw value from any of the sources.
func (o *Option) setValue(v interface{}) error {
	if v == nil {
		return nil
	}
	if o.CustomSetValue != nil {
		return o.CustomSetValue(o, v)
	}
	switch key := o.ConfigKey.(type) {
	case *string:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("could not parse string %s: %v", o.Name, v)
		}
		*key = s
	case *bool:
		switch t := v.(type) {
		case bool:
			*key = t
		case string:
			switch strings.ToLower(t) {
			case "true", "1":
				*key = true
			case "false", "0":
				*key = false
			default:
				return fmt.Errorf("invalid boolean value %s: %s", o.Name, t)
			}
		default:
			return fmt.Errorf("could not parse boolean %s: %v", o.Name, v)
		}
	case *time.Duration:
		switch t := v.(type) {
		case time.Duration:
			*key = t
		case string:
			d, err := time.ParseDuration(t)
			if err != nil {
				return fmt.Errorf("could not parse duration %q: %w", t, err)
			}
			*key = d
		default:
			return fmt.Errorf("%s is not a duration", o.Name)
		}
	case *uint16:
		switch t := v.(type) {
		case uint16:
			*key = t
		case int64:
			if t < 0 || t > 65535 {
				return fmt.Errorf("%s overflows uint16", o.Name)
			}
			*key = uint16(t)
		default:
			return fmt.Errorf("could not parse uint16 %s: %v", o.Name, v)
		}
	default:
		return fmt.Errorf("unexpected option type for %s: %T", o.Name, key)
	}
	return nil
}

// resolve sets the option from the highest-priority source that provides it:
// explicit flag, then environment, then TOML file, then the default.
func (o *Option) resolve(flagset *pflag.FlagSet, toml map[string]interface{}) error {
	if o.flag != nil && o.flag.Changed {
		return o.setValue(o.flag.Value.String())
	}
	if env, ok := os.LookupEnv(o.envKey()); ok {
		return o.setValue(env)
	}
	if v, ok := toml[o.tomlKey()]; ok {
		return o.setValue(v)
	}
	return o.setValue(o.DefaultValue)
}
