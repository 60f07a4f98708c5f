// Package docschema validates the JSON documents prowscope reads, the job
// feed and the machine metadata uploaded with job artifacts, against the
// embedded schemas.
package docschema

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/prowscope/internal/assets/schemas"
)

// ErrInvalidDocument indicates a document failed schema validation.
var ErrInvalidDocument = errors.New("document failed schema validation")

// Validators of the documents prowscope consumes.
var (
	JobList               = New("job-list", schemasassets.JobListSchema)
	ResourceDescriptor    = New("cir", schemasassets.ResourceDescriptorSchema)
	AWSMetadata           = New("aws-metadata", schemasassets.AWSMetadataSchema)
	EquinixMetadata       = New("equinix-metadata", schemasassets.EquinixMetadataSchema)
	EquinixLegacyMetadata = New("equinix-legacy-metadata", schemasassets.EquinixLegacyMetadataSchema)
	IBMClassicMetadata    = New("ibm-classic-metadata", schemasassets.IBMClassicMetadataSchema)
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the offending field (e.g. "/items/0/spec").
	Path string

	// Message describes the validation failure.
	Message string
}

// Error implements error interface.
func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors collects the issues found in one document.
type ValidationErrors []ValidationError

// Error implements error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ErrInvalidDocument.Error()
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d validation errors:", len(e))
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns ErrInvalidDocument.
func (e ValidationErrors) Unwrap() error {
	return ErrInvalidDocument
}

// Validator checks raw JSON against one embedded schema. The schema is
// compiled on first use and shared by all callers.
type Validator struct {
	name string
	raw  []byte

	once     sync.Once
	compiled *schema.Validator
	err      error
}

// New returns a Validator for the schema document raw.
func New(name string, raw []byte) *Validator {
	return &Validator{name: name, raw: raw}
}

// Name returns the schema name.
func (v *Validator) Name() string {
	return v.name
}

func (v *Validator) validator() (*schema.Validator, error) {
	v.once.Do(func() {
		if len(v.raw) == 0 {
			v.err = fmt.Errorf("embedded %s schema is empty", v.name)
			return
		}
		v.compiled, v.err = schema.NewValidator(v.raw)
		if v.err != nil {
			v.err = fmt.Errorf("failed to compile %s schema: %w", v.name, v.err)
		}
	})
	return v.compiled, v.err
}

// Validate checks data against the schema. It returns nil when the document
// is valid, ValidationErrors when the schema reports errors, and a plain
// error when data is not JSON or the schema cannot be compiled.
func (v *Validator) Validate(data []byte) error {
	compiled, err := v.validator()
	if err != nil {
		return err
	}

	diags, err := compiled.ValidateJSON(data)
	if err != nil {
		return fmt.Errorf("%s schema validation error: %w", v.name, err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
