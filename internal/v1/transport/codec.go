// Package transport exposes the room-sync core over HTTP/1.1 with
// MessagePack-encoded bodies (spec.md §6), using gin the way the teacher
// builds its HTTP surface.
package transport

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/vmihailenco/msgpack/v5"
)

const contentTypeMsgpack = "application/msgpack"

// readBody slurps the request body once so it can be decoded more than
// once (the sync handler needs to both bind a typed struct and check
// whether an optional key was present at all).
func readBody(c *gin.Context) ([]byte, error) {
	return io.ReadAll(c.Request.Body)
}

// bindMsgpack decodes raw MessagePack bytes into dst. A decode failure is
// the caller's responsibility to turn into a 400.
func bindMsgpack(raw []byte, dst any) error {
	return msgpack.Unmarshal(raw, dst)
}

// respondMsgpack encodes body as MessagePack and writes it with status.
func respondMsgpack(c *gin.Context, status int, body any) {
	data, err := msgpack.Marshal(body)
	if err != nil {
		c.Data(500, contentTypeMsgpack, nil)
		return
	}
	c.Data(status, contentTypeMsgpack, data)
}

// errorBody is the `{error: message}` shape every failed response carries
// (spec.md §7).
type errorBody struct {
	Error string `msgpack:"error"`
}
