package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/shopspring/decimal"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/converter"
	"github.com/clubsepa/lastschrift/internal/identifier"
	"github.com/clubsepa/lastschrift/internal/logging"
	"github.com/clubsepa/lastschrift/internal/member"
	"github.com/clubsepa/lastschrift/internal/sepa"
	"github.com/clubsepa/lastschrift/internal/types"
	"github.com/clubsepa/lastschrift/internal/validation"
	"github.com/clubsepa/lastschrift/pkg/utils"
)

// Response headers of /generate.
const (
	HeaderSkipped      = "X-Sepa-Skipped"
	HeaderFlagged      = "X-Sepa-Flagged"
	HeaderTransactions = "X-Sepa-Transactions"
	HeaderControlSum   = "X-Sepa-Control-Sum"
	HeaderAdvisories   = "X-Sepa-Advisories"
)

// previewLimit caps both the raw rows and the records of a preview.
const previewLimit = 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	mainConfig *config.MainConfig
	pipeline   *converter.Pipeline
	logger     logging.Logger
	now        func() time.Time
}

// --- payloads ---

type errorResponse struct {
	Error      string                        `json:"error"`
	Problems   []config.FieldProblem         `json:"problems,omitempty"`
	Advisories []advisoryDTO                 `json:"advisories,omitempty"`
	Validation []*validation.ValidationError `json:"validation,omitempty"`
	Labels     []string                      `json:"labels,omitempty"`
	Missing    []string                      `json:"missing,omitempty"`
}

type advisoryDTO struct {
	Index   int    `json:"index"`
	Row     int    `json:"row"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

type recordDTO struct {
	Row              int    `json:"row"`
	Name             string `json:"name"`
	IBAN             string `json:"iban"`
	MandateDate      string `json:"mandateDate"`
	MandateReference string `json:"mandateReference"`
	Fee              string `json:"fee"`
	OwnFee           bool   `json:"ownFee"`
}

type previewResponse struct {
	Labels       []string                      `json:"labels"`
	Rows         [][]string                    `json:"rows"`
	Complete     bool                          `json:"complete"`
	Missing      []string                      `json:"missing,omitempty"`
	Records      []recordDTO                   `json:"records"`
	RecordCount  int                           `json:"recordCount"`
	Total        string                        `json:"total"`
	Problems     []*validation.ValidationError `json:"problems"`
	ErrorCount   int                           `json:"errorCount"`
	WarningCount int                           `json:"warningCount"`
}

type identifierRequest struct {
	Value string `json:"value"`
}

type identifierResponse struct {
	Value     string `json:"value"`
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
	Formatted string `json:"formatted,omitempty"`
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}

// upload is the parsed multipart input shared by /preview and /generate.
type upload struct {
	fileName     string
	file         multipart.File
	mapping      config.MappingConfig
	club         config.OriginatorConfig
	requireClean bool
}

// readUpload parses the multipart form. Fields:
//   - file: the export (required)
//   - has_header: "true"/"false" (default from config)
//   - mapping: JSON object field -> column (default from config)
//   - club: JSON OriginatorConfig (default from config)
//   - require_clean: "true" makes validation errors fatal
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	maxBytes := h.mainConfig.Server.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("file field is required")
	}

	up := &upload{
		fileName: header.Filename,
		file:     file,
		mapping:  h.mainConfig.Mapping,
		club:     h.mainConfig.Club,
	}

	if v := r.FormValue("has_header"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("has_header: %w", err)
		}
		up.mapping.HasHeader = b
	}

	if v := r.FormValue("mapping"); v != "" {
		var columns map[string]int
		if err := json.Unmarshal([]byte(v), &columns); err != nil {
			file.Close()
			return nil, fmt.Errorf("mapping: %w", err)
		}
		up.mapping.Columns = columns
	}

	if v := r.FormValue("club"); v != "" {
		var club config.OriginatorConfig
		if err := json.Unmarshal([]byte(v), &club); err != nil {
			file.Close()
			return nil, fmt.Errorf("club: %w", err)
		}
		club.ApplyDefaults()
		up.club = club
	}

	if v := r.FormValue("require_clean"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("require_clean: %w", err)
		}
		up.requireClean = b
	}

	return up, nil
}

// fatal maps a pipeline error to a 400 response with its details. conv may
// be nil for ingest and mapping errors.
func (h *Handlers) fatal(w http.ResponseWriter, conv *converter.Conversion, err error) {
	resp := errorResponse{Error: err.Error()}

	var cfgErr *config.ConfigError
	var genErr *sepa.DocumentGenerationError
	switch {
	case errors.As(err, &cfgErr):
		resp.Problems = cfgErr.Problems
	case errors.As(err, &genErr):
		resp.Advisories = toAdvisoryDTOs(genErr.Advisories)
	case errors.Is(err, converter.ErrValidationProblems) && conv != nil:
		resp.Validation = conv.Validation.Errors
	case errors.Is(err, converter.ErrIncompleteMapping) && conv != nil:
		resp.Labels = conv.Labels
		resp.Missing = missingNames(conv)
	}

	h.logger.Warn("Request failed: %v", err)
	h.writeJSON(w, http.StatusBadRequest, resp)
}

func missingNames(conv *converter.Conversion) []string {
	var names []string
	for _, f := range conv.Mapping.Missing() {
		names = append(names, string(f))
	}
	return names
}

func toAdvisoryDTOs(advisories []types.Advisory) []advisoryDTO {
	out := make([]advisoryDTO, 0, len(advisories))
	for _, a := range advisories {
		out = append(out, advisoryDTO{Index: a.Index, Row: a.Row, Code: string(a.Code), Name: a.Name, Message: a.Message})
	}
	return out
}

func toRecordDTO(rec member.Record, club config.OriginatorConfig) recordDTO {
	return recordDTO{
		Row:              rec.Row,
		Name:             rec.DisplayName(),
		IBAN:             identifier.FormatIBAN(rec.IBAN),
		MandateDate:      rec.MandateDate,
		MandateReference: rec.DisplayMandateReference(club.MandateReferencePrefix),
		Fee:              rec.EffectiveFee(club.DefaultFee).StringFixed(2),
		OwnFee:           rec.Fee != nil,
	}
}

// asciiOnly rewrites every non-ASCII rune of a JSON text as a \u escape so
// the text is safe as a header value. Member names keep their umlauts.
func asciiOnly(data []byte) string {
	var b strings.Builder
	for _, r := range string(data) {
		if r < 0x80 {
			b.WriteRune(r)
			continue
		}
		if r1, r2 := utf16.EncodeRune(r); r1 != '\uFFFD' {
			fmt.Fprintf(&b, "\\u%04x\\u%04x", r1, r2)
		} else {
			fmt.Fprintf(&b, "\\u%04x", r)
		}
	}
	return b.String()
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Preview ---

// Preview returns the column labels, the first rows, the first mapped
// records and the validation problems of all records. The total and
// recordCount cover every record. An incomplete mapping is not an error here: the
// response lists the missing fields so the caller can finish the mapping.
func (h *Handlers) Preview(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.file.Close()

	conv, err := h.pipeline.Prepare(up.fileName, up.file, up.club, up.mapping)
	if err != nil && !errors.Is(err, converter.ErrIncompleteMapping) {
		h.fatal(w, conv, err)
		return
	}

	rows := conv.Grid
	if len(rows) > previewLimit {
		rows = rows[:previewLimit]
	}

	resp := previewResponse{
		Labels:   conv.Labels,
		Rows:     rows,
		Complete: err == nil,
		Records:  []recordDTO{},
		Problems: []*validation.ValidationError{},
		Total:    "0.00",
	}

	if err != nil {
		resp.Missing = missingNames(conv)
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	total := decimal.Zero
	for i, rec := range conv.Records {
		if i < previewLimit {
			resp.Records = append(resp.Records, toRecordDTO(rec, up.club))
		}
		if fee := rec.EffectiveFee(up.club.DefaultFee).Round(2); fee.IsPositive() {
			total = total.Add(fee)
		}
	}
	resp.RecordCount = len(conv.Records)
	resp.Total = total.StringFixed(2)
	resp.Problems = append(resp.Problems, conv.Validation.Errors...)
	resp.ErrorCount = conv.Validation.ErrorCount
	resp.WarningCount = conv.Validation.WarningCount

	h.writeJSON(w, http.StatusOK, resp)
}

// --- Generate ---

// Generate returns the pain.008 document as an attachment. The builder's
// advisories travel as a JSON array in the X-Sepa-Advisories header.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	up, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer up.file.Close()

	conv, err := h.pipeline.Convert(up.fileName, up.file, up.club, up.mapping, up.requireClean)
	if err != nil {
		h.fatal(w, conv, err)
		return
	}

	built := conv.Build
	name := utils.GenerateOutputFileName(h.mainConfig.OutputName, h.now(), map[string]string{"original": up.fileName})

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set(HeaderSkipped, strconv.Itoa(built.Skipped()))
	w.Header().Set(HeaderFlagged, strconv.Itoa(len(built.Advisories)-built.Skipped()))
	w.Header().Set(HeaderTransactions, strconv.Itoa(built.Transactions))
	w.Header().Set(HeaderControlSum, built.ControlSum.StringFixed(2))
	if advisories, err := json.Marshal(toAdvisoryDTOs(built.Advisories)); err == nil {
		w.Header().Set(HeaderAdvisories, asciiOnly(advisories))
	} else {
		h.logger.Error("failed to encode advisories: %v", err)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.WriteString(w, built.XML); err != nil {
		h.logger.Error("failed to write document: %v", err)
	}
}

// --- identifier checks ---

func (h *Handlers) ValidateIBAN(w http.ResponseWriter, r *http.Request) {
	h.validateIdentifier(w, r, func(v string) identifierResponse {
		resp := fromResult(v, identifier.ValidateIBAN(v))
		if resp.Valid {
			resp.Formatted = identifier.FormatIBAN(v)
		}
		return resp
	})
}

func (h *Handlers) ValidateBIC(w http.ResponseWriter, r *http.Request) {
	h.validateIdentifier(w, r, func(v string) identifierResponse {
		return fromResult(v, identifier.ValidateBIC(v))
	})
}

func (h *Handlers) ValidateCreditorID(w http.ResponseWriter, r *http.Request) {
	h.validateIdentifier(w, r, func(v string) identifierResponse {
		return fromResult(v, identifier.ValidateCreditorID(v))
	})
}

func (h *Handlers) validateIdentifier(w http.ResponseWriter, r *http.Request, check func(string) identifierResponse) {
	var req identifierRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, check(strings.TrimSpace(req.Value)))
}

func fromResult(value string, res identifier.Result) identifierResponse {
	return identifierResponse{
		Value:   value,
		Valid:   res.Valid,
		Reason:  string(res.Reason),
		Message: res.Message,
	}
}
