package objcodec

import (
	"bytes"
	"sync"
)

// bytesBufPool reuses encode buffers across Marshal calls.
var bytesBufPool = sync.Pool{
	New: func() any {
		// A 4KB default covers typical editor preference payloads.
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// maxPooledBuffer keeps one huge payload from pinning memory in the pool.
const maxPooledBuffer = 1 << 20

func getBuffer() *bytes.Buffer {
	buf := bytesBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bytesBufPool.Put(buf)
}
