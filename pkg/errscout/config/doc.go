/*
Package config loads errscout configuration.

# Config

Config wraps a decoded YAML or JSON document and provides typed accessors
that fall back to a default when a key is missing or has the wrong type.
Keys may be dotted paths into nested sections:

	cfg, err := config.FromFile("errscout.yaml")
	timeout := cfg.Duration("api.timeout", 30*time.Second)
	planner := cfg.Sub("session").String("planner", "sweep")

Duration accepts duration strings ("30s") and bare numbers of seconds.
Int accepts floats without a fractional part, which is how JSON numbers
decode.

# Settings

Settings is the resolved CLI configuration. Load reads an optional file and
then applies ERRSCOUT_* environment variables, which always win:

	s, err := config.Load(path)
	if err != nil {
	    return err
	}
	if err := s.Validate(); err != nil {
	    return err
	}

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation.
*/
package config
