package common

import (
	"context"
	"encoding"
	"net/http"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

type ctxKey int

const (
	// HttpClientKey carries an *http.Client override for outbound calls.
	HttpClientKey ctxKey = iota
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

func WeakDecodeMap(input, output any) error {
	config := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           output,
		WeaklyTypedInput: true,
		DecodeHook: func(
			f reflect.Type,
			t reflect.Type,
			data interface{}) (interface{}, error) {
			if !reflect.PointerTo(t).Implements(textUnmarshalerType) {
				return data, nil
			}

			str, ok := data.(string)
			if !ok {
				return data, nil
			}

			v := reflect.New(t).Interface().(encoding.TextUnmarshaler)
			if err := v.UnmarshalText([]byte(str)); err != nil {
				return nil, err
			}

			return reflect.ValueOf(v).Elem().Interface(), nil
		},
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

// HTTPClient returns the client stored under HttpClientKey, or http.DefaultClient.
func HTTPClient(ctx context.Context) *http.Client {
	if c, ok := ctx.Value(HttpClientKey).(*http.Client); ok && c != nil {
		return c
	}
	return http.DefaultClient
}
