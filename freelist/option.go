package freelist

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Option configures a Freelist at construction time.
type Option func(*Freelist)

// WithLogger attaches structured diagnostics to a Freelist: one event
// per structurally interesting occurrence (overflow-split, root
// promotion, chunk reclaimed, allocation exhausted). A nil logger (the
// default) disables diagnostics entirely at no runtime cost, since
// logiface's own Logger methods are themselves nil-safe no-ops.
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return func(f *Freelist) { f.logger = l }
}
