package unpack_test

import (
	"bytes"
	"fmt"
	"os"

	"github.com/CalebQ42/unpack"
	"github.com/CalebQ42/unpack/engine"
	"github.com/klauspost/compress/zstd"
)

func ExampleUnpack() {
	enc, _ := zstd.NewWriter(nil)
	compressed := enc.EncodeAll([]byte("hello, world\n"), nil)
	enc.Close()

	if _, err := unpack.Unpack(bytes.NewReader(compressed), os.Stdout, nil); err != nil {
		fmt.Println(err)
	}
	// Output: hello, world
}

func ExampleOptions_signatureSkipped() {
	enc, _ := zstd.NewWriter(nil)
	compressed := enc.EncodeAll([]byte("sniffed"), nil)
	enc.Close()

	// Format detection already consumed the magic number.
	codec, _ := engine.Detect(compressed[:4])
	op := unpack.DefaultOptions()
	op.Codec = codec
	op.SignatureSkipped = true
	out, err := unpack.UnpackToMemory(bytes.NewReader(compressed[4:]), 1<<20, op)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(string(out))
	// Output: sniffed
}
