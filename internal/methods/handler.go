// Package methods implements the wallet daemon's JSON-RPC 2.0 methods.
package methods

import (
	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
)

func NewHandler(fn any) jrpc2.Handler {
	fi, err := handler.Check(fn)
	if err != nil {
		panic(err)
	}
	// explicitly disable array arguments so new method arguments can be
	// added without breaking existing clients
	fi.AllowArray(false)
	return fi.Wrap()
}
