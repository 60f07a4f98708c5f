package prowjob

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnresolvableContext indicates the job labels do not carry enough
// information to strip the naming prefix. The job name is used as context.
var ErrUnresolvableContext = errors.New("job context cannot be resolved")

const rehearsePrefix = "rehearse-"

// typePrefixes maps a job type to the marker Prow puts at the start of the
// generated job name.
var typePrefixes = map[string]string{
	TypePeriodic:   "periodic-ci",
	TypePresubmit:  "pull-ci",
	TypeBatch:      "pull-ci",
	TypePostsubmit: "branch-ci",
}

// ResolveContext returns the job context: the job name with its generated
// prefix ({type}-{org}-{repo}-{branch}-[{variant}-]) removed.
//
// When the prefix cannot be built the job name is returned together with an
// error wrapping ErrUnresolvableContext.
func ResolveContext(j *Job) (string, error) {
	var (
		prefix string
		err    error
	)
	if j.IsRehearsal() {
		prefix, err = rehearsePrefixFor(j)
	} else {
		prefix, err = prefixFor(j)
	}
	if err != nil {
		return j.Spec.Job, err
	}

	if len(prefix) > len(j.Spec.Job) || j.Spec.Job[:len(prefix)] != prefix {
		return j.Spec.Job, nil
	}
	return j.Spec.Job[len(prefix):], nil
}

func prefixFor(j *Job) (string, error) {
	l := j.Metadata.Labels
	if l.RefsOrg == "" || l.RefsRepo == "" || l.RefsBaseRef == "" {
		return "", fmt.Errorf("%w: missing org, repo or base_ref label", ErrUnresolvableContext)
	}
	return templatePrefix(j.Spec.Type, Ref{Org: l.RefsOrg, Repo: l.RefsRepo, BaseRef: l.RefsBaseRef}, l.Variant)
}

func rehearsePrefixFor(j *Job) (string, error) {
	if len(j.Spec.ExtraRefs) != 1 {
		return "", fmt.Errorf("%w: rehearsal needs exactly one extra ref, got %d", ErrUnresolvableContext, len(j.Spec.ExtraRefs))
	}
	pull := j.Metadata.Labels.RefsPull
	if pull == "" {
		return "", fmt.Errorf("%w: rehearsal is missing the pull label", ErrUnresolvableContext)
	}
	base, err := templatePrefix(j.Spec.Type, j.Spec.ExtraRefs[0], j.Metadata.Labels.Variant)
	if err != nil {
		return "", err
	}
	return rehearsePrefix + pull + "-" + base, nil
}

func templatePrefix(jobType string, ref Ref, variant string) (string, error) {
	marker, ok := typePrefixes[jobType]
	if !ok {
		return "", fmt.Errorf("%w: unknown job type %q", ErrUnresolvableContext, jobType)
	}
	prefix := fmt.Sprintf("%s-%s-%s-%s-", marker, ref.Org, ref.Repo, ref.BaseRef)
	if variant != "" {
		prefix += variant + "-"
	}
	return prefix, nil
}

// Resolver resolves job contexts and logs fallbacks.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver returns a Resolver logging to logger (nil disables logging).
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve returns the job context, falling back to the job name with a
// warning when it cannot be derived.
func (r *Resolver) Resolve(j *Job) string {
	ctx, err := ResolveContext(j)
	if err != nil {
		r.logger.Warn("Job context falls back to job name",
			zap.String("job", j.Spec.Job),
			zap.String("build_id", j.Status.BuildID),
			zap.Error(err))
		return ctx
	}
	r.logger.Debug("Resolved job context",
		zap.String("job", j.Spec.Job),
		zap.String("context", ctx))
	return ctx
}
