package core

import (
	"reflect"

	"github.com/encodeous/weave/state"
)

func Get[T state.WvModule](s *state.State) T {
	t := reflect.TypeFor[T]()
	return s.Modules[t.String()].(T)
}
