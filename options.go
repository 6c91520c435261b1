package inherit

import (
	"fmt"
	"reflect"
)

// Option configures Stack.Merge.
type Option func(*mergeConfig)

type mergeConfig struct {
	merger   any
	validate bool
}

func applyOptions(opts []Option) mergeConfig {
	cfg := mergeConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithMerger replaces MergeValue as the record merge rule, for example with
// the Merge procedure returned by Derive. The function type must match the
// stack's record type.
func WithMerger[T any](merge func(self, parent T) T) Option {
	return func(cfg *mergeConfig) {
		if merge == nil {
			cfg.merger = nil
			return
		}
		cfg.merger = merge
	}
}

// WithValidation runs the merged value's Validate method, when it has one,
// before Merge returns.
func WithValidation(enabled bool) Option {
	return func(cfg *mergeConfig) {
		cfg.validate = enabled
	}
}

func mergerFor[T any](cfg mergeConfig) (func(self, parent T) T, error) {
	if cfg.merger == nil {
		return MergeValue[T], nil
	}
	merge, ok := cfg.merger.(func(self, parent T) T)
	if !ok {
		return nil, fmt.Errorf("inherit: merger %T does not merge %s", cfg.merger, reflect.TypeFor[T]())
	}
	return merge, nil
}
