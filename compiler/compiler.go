// Package compiler drives a form source through planning and code
// generation, producing one C header and its metadata per input.
package compiler

import (
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/formcomp/formc/algebra"
	"github.com/formcomp/formc/codegen"
	"github.com/formcomp/formc/quadrature"
	"github.com/formcomp/formc/representation"
)

// Options applies to every form of a compilation job.
type Options struct {
	// Language selects the output target. Only "c" is implemented; an empty
	// value means "c".
	Language string

	// Representation is the job-wide default, overridable per measure.
	Representation algebra.ReprChoice

	// Optimize enables monomial merging before tensor construction.
	Optimize bool

	// Estimator overrides the quadrature-degree estimator. Nil selects the
	// standard polynomial-degree sum rule.
	Estimator quadrature.DegreeEstimator
}

// Job is one compilation unit: the forms of a single source file, compiled
// into a single header named after the file stem.
type Job struct {
	Stem  string
	Forms []*algebra.Form
}

// Result carries the generated header text and per-form metadata.
type Result struct {
	Source   string
	Metadata []codegen.Metadata
}

// Compile plans and generates the job. The logger receives one warning per
// degree-estimation fallback and debug lines for the chosen representations.
func Compile(job Job, opts Options, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch opts.Language {
	case "", "c":
	default:
		return nil, errors.Errorf("unsupported output language %q", opts.Language)
	}
	if len(job.Forms) == 0 {
		return nil, errors.Errorf("job %q contains no forms", job.Stem)
	}

	forms := append([]*algebra.Form(nil), job.Forms...)
	sort.SliceStable(forms, func(i, j int) bool { return forms[i].Name < forms[j].Name })

	compiled := make([]*representation.Compiled, 0, len(forms))
	for _, f := range forms {
		ropts := representation.Options{
			Default:   opts.Representation,
			Optimize:  opts.Optimize,
			Estimator: opts.Estimator,
			Warn: func(msg string) {
				log.Warn(msg, zap.String("form", f.Name), zap.String("stem", job.Stem))
			},
		}
		c, err := representation.Build(f, ropts)
		if err != nil {
			return nil, errors.Wrapf(err, "form %q", f.Name)
		}
		for _, p := range c.Plans {
			for _, tp := range p.Terms {
				log.Debug("planned term",
					zap.String("form", f.Name),
					zap.Stringer("domain", p.Kind),
					zap.Int("subdomain", p.Subdomain),
					zap.Stringer("representation", tp.Repr),
					zap.Int("degree", tp.Degree))
			}
		}
		compiled = append(compiled, c)
	}

	src, metas, err := codegen.GenerateModule(job.Stem, compiled)
	if err != nil {
		return nil, errors.Wrapf(err, "job %q", job.Stem)
	}
	return &Result{Source: src, Metadata: metas}, nil
}
