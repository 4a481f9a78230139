package cmd

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/decgen/config"
	"github.com/sarchlab/decgen/insts"
	"github.com/sarchlab/decgen/loader"
	"github.com/sarchlab/decgen/plan"
	"github.com/sarchlab/decgen/tree"
)

// session is a loaded description with its expansion and tree.
type session struct {
	opts   *Options
	cfg    *config.Config
	logger *logrus.Logger

	desc   *loader.Description
	layout insts.Layout
	raws   []*insts.RawInstruction
	root   *tree.Node
}

func loadConfig(opts *Options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.ConfigPath != "" {
		var err error
		cfg, err = config.LoadConfig(opts.ConfigPath)
		if err != nil {
			return nil, err
		}
	}

	switch opts.Target {
	case "":
	case "big":
		cfg.TargetBigEndian = true
	case "little":
		cfg.TargetBigEndian = false
	default:
		return nil, fmt.Errorf("unknown target byte order %q", opts.Target)
	}
	if opts.Verbose {
		cfg.LogLevel = logrus.DebugLevel.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// open loads the description at path and builds its decision tree.
func open(opts *Options, path string, stderr io.Writer) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger()
	logger.SetOutput(stderr)

	desc, err := loader.LoadDescription(path)
	if err != nil {
		return nil, err
	}

	s := &session{
		opts:   opts,
		cfg:    cfg,
		logger: logger,
		desc:   desc,
		layout: cfg.Layout(desc.ReadSize, desc.BigEndian),
	}

	expect := cfg.SizeExpectation(desc.Size)
	s.raws, err = insts.NewExpander(s.layout).ExpandAll(desc.Instructions, expect)
	if err != nil {
		return nil, err
	}

	sizes := insts.SizeInfo(s.raws)
	if sizes.Fixed() {
		logger.Infof("fixed instruction size: %d bytes", (sizes.Min+7)/8)
	} else {
		logger.Infof("variable instruction size: min %d bytes (%s), max %d bytes (%s)",
			(sizes.Min+7)/8, sizes.Shortest, (sizes.Max+7)/8, sizes.Longest)
	}

	s.root, err = tree.NewBuilder(cfg.BuilderOptions(logger)...).Build(s.raws)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *session) planner() (*plan.Planner, error) {
	return plan.NewPlanner(s.cfg.Planner(s.layout), plan.WithLogger(s.logger))
}

// dump writes v with spew when --dump is set.
func (s *session) dump(w io.Writer, v any) {
	if !s.opts.Dump {
		return
	}
	cs := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}
	cs.Fdump(w, v)
}
