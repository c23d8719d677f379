package converter

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/ingest"
	"github.com/clubsepa/lastschrift/internal/logging"
	"github.com/clubsepa/lastschrift/internal/mapping"
	"github.com/clubsepa/lastschrift/internal/member"
	"github.com/clubsepa/lastschrift/internal/sepa"
	"github.com/clubsepa/lastschrift/internal/types"
	"github.com/clubsepa/lastschrift/internal/validation"
)

var (
	// ErrIncompleteMapping is returned when iban, mandateDate or
	// mandateReference has no column.
	ErrIncompleteMapping = errors.New("column mapping is incomplete")

	// ErrValidationProblems is returned when clean input is required and
	// the validation pass reported errors.
	ErrValidationProblems = errors.New("validation problems present")
)

// Conversion is the in-memory outcome of the pipeline for one export.
type Conversion struct {
	// Grid is the ingested table.
	Grid types.Grid

	// Labels are the column labels shown for mapping.
	Labels []string

	// Mapping is the mapping the records were read with.
	Mapping mapping.FieldMapping

	// Records are the mapped members in source order.
	Records []member.Record

	// Validation is the result of the validation pass.
	Validation *validation.Result

	// Build is the generated document. Nil until Generate succeeds.
	Build *sepa.Result
}

// Pipeline runs the stateless stages: ingest, map, validate, build.
// A Pipeline holds no per-export state and is safe for concurrent use as
// long as its Builder is.
type Pipeline struct {
	Builder   *sepa.Builder
	Validator *validation.Validator
	Logger    logging.Logger
}

// NewPipeline returns a Pipeline with the default builder and validator.
func NewPipeline(logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		Builder:   sepa.NewBuilder(),
		Validator: validation.NewValidator(),
		Logger:    logger,
	}
}

// Prepare ingests an export and maps and validates its records.
//
// PARAMETERS:
//   - name: The file name. Its extension selects the format.
//   - r: The export content.
//   - club: The club whose mandate reference prefix the checks apply.
//   - mc: The column mapping.
//
// RETURNS:
//   - The conversion without a document.
//   - ingest.ErrUnsupportedFormat, ingest.ErrParseFailure,
//     ErrIncompleteMapping or a mapping error.
func (p *Pipeline) Prepare(name string, r io.Reader, club config.OriginatorConfig, mc config.MappingConfig) (*Conversion, error) {
	grid, err := ingest.ReadFile(name, r)
	if err != nil {
		return nil, err
	}
	p.Logger.Debug("Read %d row(s) from %s", len(grid), name)

	fm, err := mc.FieldMapping()
	if err != nil {
		return nil, err
	}

	conv := &Conversion{
		Grid:    grid,
		Labels:  mapping.ColumnLabels(grid, mc.HasHeader),
		Mapping: fm,
	}

	if !fm.IsComplete() {
		return conv, fmt.Errorf("%w: missing %s", ErrIncompleteMapping, joinFields(fm.Missing()))
	}

	conv.Records = member.Map(grid, fm, mc.HasHeader)
	conv.Validation = p.Validator.ValidateForClub(club, conv.Records)
	p.Logger.Debug("Mapped %d record(s) with %s", len(conv.Records), fm)

	return conv, nil
}

// Generate builds the document for a prepared conversion.
//
// When requireClean is set, any validation error aborts before building.
// Warnings never abort.
func (p *Pipeline) Generate(conv *Conversion, club config.OriginatorConfig, requireClean bool) error {
	if requireClean && conv.Validation != nil && !conv.Validation.IsValid() {
		return fmt.Errorf("%w: %d error(s)", ErrValidationProblems, conv.Validation.ErrorCount)
	}

	built, err := p.Builder.Build(club, conv.Records)
	if err != nil {
		return err
	}
	conv.Build = built

	for _, advisory := range built.Advisories {
		p.Logger.Warn("%s", advisory.String())
	}
	return nil
}

// Convert is Prepare followed by Generate.
func (p *Pipeline) Convert(name string, r io.Reader, club config.OriginatorConfig, mc config.MappingConfig, requireClean bool) (*Conversion, error) {
	conv, err := p.Prepare(name, r, club, mc)
	if err != nil {
		return conv, err
	}
	if err := p.Generate(conv, club, requireClean); err != nil {
		return conv, err
	}
	return conv, nil
}

func joinFields(fields []mapping.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
