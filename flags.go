package main

import (
	"github.com/spf13/pflag"
)

// bindFlags binds config keys to the named flags returned by lookup.
func bindFlags(lookup func(string) *pflag.Flag, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, lookup(name)); err != nil {
			panic(err)
		}
	}
}
