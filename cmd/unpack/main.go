package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/CalebQ42/unpack"
	"github.com/CalebQ42/unpack/engine"
	"github.com/CalebQ42/unpack/internal/config"
	"github.com/CalebQ42/unpack/internal/routinemanager"
	units "github.com/docker/go-units"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Long enough for every codec's magic number.
const sniffSize = 6

type flags struct {
	stdout  bool
	keep    bool
	force   bool
	test    bool
	verbose bool
	codec   string
	maxMem  string
	config  string
	jobs    int
	offset  int64
}

// settings are the flags merged over the config file.
type settings struct {
	flags
	codec  engine.Codec
	maxMem int64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:          "unpack [flags] [FILE]...",
		Short:        "Decompress zstd, lz4 and xz files",
		Long:         "Decompress zstd, lz4 and xz files. With no FILE, or when FILE is -, read standard input.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolve(cmd.Flags(), f)
			if err != nil {
				return err
			}
			return run(s, args)
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&f.stdout, "stdout", "c", false, "Write to standard output")
	fl.BoolVarP(&f.keep, "keep", "k", false, "Keep input files")
	fl.BoolVarP(&f.force, "force", "f", false, "Overwrite existing output files")
	fl.BoolVarP(&f.test, "test", "t", false, "Test integrity, write nothing")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "Verbose")
	fl.StringVar(&f.codec, "codec", "", "Codec to use when the input has no recognizable magic number (zstd, lz4, xz)")
	fl.StringVar(&f.maxMem, "max-mem", "", "Decompress into memory, up to this size (e.g. 64MiB), before writing output")
	fl.StringVar(&f.config, "config", "", "TOML file with default settings")
	fl.IntVarP(&f.jobs, "jobs", "j", 0, "Files to decompress at once")
	fl.Int64Var(&f.offset, "offset", 0, "Skip this many bytes at the start of each input file")
	return cmd
}

func resolve(fl *pflag.FlagSet, f *flags) (*settings, error) {
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if fl.Changed("codec") {
		cfg.Codec = f.codec
	}
	if fl.Changed("max-mem") {
		cfg.MaxMem = f.maxMem
	}
	if fl.Changed("jobs") {
		cfg.Jobs = f.jobs
	}
	if !fl.Changed("verbose") {
		f.verbose = cfg.Verbose
	}
	if !fl.Changed("keep") {
		f.keep = cfg.Keep
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	if f.offset < 0 {
		return nil, errors.Errorf("invalid offset %d", f.offset)
	}
	s := &settings{flags: *f}
	s.jobs = cfg.Jobs
	s.codec, _ = engine.ParseCodec(cfg.Codec)
	s.maxMem, _ = cfg.MaxMemBytes()
	if s.stdout {
		// Output from several files would interleave.
		s.jobs = 1
	}
	if s.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	return s, nil
}

func run(s *settings, args []string) error {
	if len(args) == 0 {
		args = []string{"-"}
	}
	if s.jobs > int(^uint16(0)) {
		s.jobs = int(^uint16(0))
	}
	mgr := routinemanager.NewManager(uint16(s.jobs))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for _, name := range args {
		tok := mgr.Lock()
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			defer mgr.Unlock(tok)
			log := logrus.WithField("file", name)
			start := time.Now()
			n, err := unpackFile(s, name, log)
			if err != nil {
				log.Error(err)
				mu.Lock()
				result = multierror.Append(result, errors.Wrap(err, name))
				mu.Unlock()
				return
			}
			log.Infof("%s in %s", units.HumanSize(float64(n)), time.Since(start).Round(time.Millisecond))
		}(name)
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func unpackFile(s *settings, name string, log logrus.FieldLogger) (int64, error) {
	in := os.Stdin
	if name != "-" {
		var err error
		in, err = os.Open(name)
		if err != nil {
			return 0, err
		}
		defer in.Close()
	}
	op := unpack.DefaultOptions()
	op.Logger = log
	op.Codec = s.codec
	op.MemSinkMaxBytes = s.maxMem

	// Sniff the magic number, then let the session put it back.
	prefix := make([]byte, sniffSize)
	var (
		n   int
		err error
	)
	if name == "-" {
		n, err = io.ReadFull(in, prefix)
	} else {
		n, err = in.ReadAt(prefix, s.offset)
	}
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, err
	}
	prefix = prefix[:n]
	skip := 0
	if c, ok := engine.Detect(prefix); ok {
		op.Codec = c
		op.SignatureSkipped = true
		skip = len(c.Magic())
	}
	outName, dst, err := openOutput(s, name, op.Codec)
	if err != nil {
		return 0, err
	}
	var sess *unpack.Session
	if name == "-" {
		sess = unpack.NewSession(io.MultiReader(bytes.NewReader(prefix[skip:]), in), dst, op)
	} else {
		sess = unpack.NewSessionAt(in, s.offset+int64(skip), dst, op)
	}
	total, err := sess.Run()
	if err == nil && s.maxMem > 0 && dst != nil {
		_, err = dst.Write(sess.Bytes())
	}
	err = closeOutput(dst, outName, err)
	if err != nil {
		return 0, err
	}
	log.Debugf("%d frames", sess.Frames())
	if outName != "" && !s.keep {
		return total, os.Remove(name)
	}
	return total, nil
}

// openOutput picks the destination for name. outName is empty unless a file is created.
func openOutput(s *settings, name string, codec engine.Codec) (outName string, dst io.Writer, err error) {
	switch {
	case s.test:
		return "", nil, nil
	case s.stdout || name == "-":
		return "", os.Stdout, nil
	}
	ext := codec.Extension()
	if !strings.HasSuffix(name, ext) || len(name) == len(ext) {
		return "", nil, errors.Errorf("unknown suffix, expected %s", ext)
	}
	outName = strings.TrimSuffix(name, ext)
	fl := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !s.force {
		fl |= os.O_EXCL
	}
	f, err := os.OpenFile(outName, fl, 0644)
	if err != nil {
		return "", nil, err
	}
	return outName, f, nil
}

// closeOutput closes a created output file and removes it if anything failed.
func closeOutput(dst io.Writer, outName string, err error) error {
	f, ok := dst.(*os.File)
	if !ok || outName == "" {
		return err
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(outName)
		return err
	}
	return nil
}

func init() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	// Library debug output only shows up with --verbose.
	logrus.SetLevel(logrus.WarnLevel)
}
