package unpack

import (
	"github.com/CalebQ42/unpack/engine"
	"github.com/sirupsen/logrus"
)

// Options configures a Session.
type Options struct {
	Logger           logrus.FieldLogger //Where debug information goes. Defaults to logrus.StandardLogger().
	Engine           engine.Options     //Resource limits for the decoder.
	Codec            engine.Codec       //Format of the input. Defaults to zstd.
	MemSinkMaxBytes  int64              //If > 0, output is kept in memory, up to this many bytes, instead of written to the destination.
	SignatureSkipped bool               //The caller already read the magic number from the source.
	Accounting       bool               //Run returns the number of decompressed bytes.
}

// DefaultOptions returns options for zstd input, written to the destination, with
// accounting.
func DefaultOptions() *Options {
	return &Options{
		Engine:     engine.DefaultOptions(),
		Codec:      engine.Zstd,
		Accounting: true,
	}
}

func (o *Options) logger() logrus.FieldLogger {
	if o.Logger == nil {
		return logrus.StandardLogger()
	}
	return o.Logger
}
