// Package decoder contains the default [domain.Decoder] implementation.
package decoder

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/vinicius-lino-figueiredo/rackdb/domain"
	"github.com/vinicius-lino-figueiredo/rackdb/internal/adapter/data"
)

// Decoder implements domain.Decoder.
type Decoder struct {
	tagName string
	weak    bool
}

// NewDecoder returns a new implementation of domain.Decoder.
func NewDecoder(opts ...Option) domain.Decoder {
	d := &Decoder{tagName: data.TagName}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode implements domain.Decoder.
func (d *Decoder) Decode(src any, tgt any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          d.tagName,
		WeaklyTypedInput: d.weak,
		Result:           tgt,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			documentHook,
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(src); err != nil {
		return fmt.Errorf("decoding: %w", err)
	}
	return nil
}

// documentHook turns documents other than maps into plain maps.
func documentHook(_ reflect.Type, to reflect.Type, v any) (any, error) {
	doc, ok := v.(domain.Document)
	if !ok || reflect.TypeOf(v).Kind() == reflect.Map {
		return v, nil
	}
	if to.Kind() == reflect.Interface {
		return v, nil
	}
	res := make(map[string]any, doc.Len())
	for k, val := range doc.Iter() {
		res[k] = val
	}
	return res, nil
}
