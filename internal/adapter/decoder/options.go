package decoder

// WithTagName sets the struct tag read while decoding. Defaults to the
// document tag.
func WithTagName(name string) Option {
	return func(d *Decoder) {
		d.tagName = name
	}
}

// WithWeaklyTyped enables the weak conversions of mapstructure, like
// strings into numbers.
func WithWeaklyTyped(weak bool) Option {
	return func(d *Decoder) {
		d.weak = weak
	}
}

// Option configures behavior through the functional options pattern.
type Option func(*Decoder)
