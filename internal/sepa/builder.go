// =============================================================================
// SEPA Direct Debit Generator - Document Builder
// =============================================================================
//
// This module assembles member records and the club configuration into one
// pain.008.001.02 collection message.
//
// XML STRUCTURE:
//
//   <Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.008.001.02">
//     <CstmrDrctDbtInitn>
//       <GrpHdr>...</GrpHdr>              <!-- MsgId, CreDtTm, totals -->
//       <PmtInf>                          <!-- exactly one, CORE / RCUR -->
//         <DrctDbtTxInf>...</DrctDbtTxInf> <!-- one per collected member -->
//       </PmtInf>
//     </CstmrDrctDbtInitn>
//   </Document>
//
// PER-RECORD CONDITIONS (the document is still produced):
//   - No usable fee: the member is skipped (fee_unresolved)
//   - No name left in the SEPA character set: skipped (name_unresolved)
//   - Written mandate or end-to-end id equals that of an earlier member with
//     a different reference: skipped (mandate_id_collision)
//   - Mandate or end-to-end id cut or stripped of characters: written and
//     flagged (mandate_reference_altered)
//   - Unreadable mandate date: the build date is written
//     (mandate_date_fallback)
//
// FAILURES:
//   - *config.ConfigError if the club identifiers are invalid
//   - *DocumentGenerationError if nothing can be collected or the XML
//     cannot be serialized
//
// =============================================================================

package sepa

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/identifier"
	"github.com/clubsepa/lastschrift/internal/member"
	"github.com/clubsepa/lastschrift/internal/types"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04:05"
)

// ErrNoTransactions is wrapped when every record was skipped.
var ErrNoTransactions = errors.New("no member can be collected")

// DocumentGenerationError reports that no document could be produced.
type DocumentGenerationError struct {
	// Cause is a human-readable description.
	Cause string

	// Advisories are the per-record conditions collected before the failure.
	Advisories []types.Advisory

	Err error
}

func (e *DocumentGenerationError) Error() string {
	return "failed to generate SEPA XML: " + e.Cause
}

func (e *DocumentGenerationError) Unwrap() error {
	return e.Err
}

// Result is a built collection.
type Result struct {
	// XML is the serialized document.
	XML string

	// Document is the structure that was serialized.
	Document *Document

	// Advisories lists skipped and flagged records in record order.
	Advisories []types.Advisory

	// Transactions is the number of collected members.
	Transactions int

	// ControlSum is the total collected amount.
	ControlSum decimal.Decimal

	// CollectionDate is the requested collection date.
	CollectionDate time.Time
}

// Skipped returns the number of records left out of the document.
func (r *Result) Skipped() int {
	n := 0
	for _, a := range r.Advisories {
		if a.Skipped() {
			n++
		}
	}
	return n
}

// Builder builds collection documents. The zero value uses the wall clock
// and random message ids.
type Builder struct {
	// Now returns the build time.
	Now func() time.Time

	// NewID returns a unique message id of at most 35 characters.
	NewID func() string

	// Options controls serialization.
	Options *MarshalOptions
}

// NewBuilder returns a Builder with default settings.
func NewBuilder() *Builder {
	return &Builder{}
}

// NewMessageID returns a random 32-character hex id.
func NewMessageID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Builder) newID() string {
	if b.NewID != nil {
		return b.NewID()
	}
	return NewMessageID()
}

// Build produces the collection document for records.
//
// PARAMETERS:
//   - cfg: The collecting club. Its identifiers must be valid.
//   - records: The mapped members, in output order.
//
// RETURNS:
//   - The built result with XML and advisories.
//   - A *config.ConfigError or *DocumentGenerationError.
//
// BUILD PROCESS:
//  1. Collection date = build date + lead days
//  2. Group header with a fresh message id
//  3. One payment information block for the club account
//  4. Per record: resolve fee, debtor name and ids (skip if unusable),
//     mandate date
//  5. Totals from the surviving transactions
//  6. Serialize
func (b *Builder) Build(cfg config.OriginatorConfig, records []member.Record) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now()
	buildDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	collectionDate := buildDate.AddDate(0, 0, cfg.ExecutionLeadDays)

	result := &Result{
		Advisories:     []types.Advisory{},
		ControlSum:     decimal.Zero,
		CollectionDate: collectionDate,
	}

	transactions := make([]DirectDebitTransaction, 0, len(records))
	written := newIDRegistry()
	for i, rec := range records {
		name := rec.DisplayName()
		advise := func(code types.AdvisoryCode, message string) {
			result.Advisories = append(result.Advisories, types.Advisory{
				Index:   i,
				Row:     rec.Row,
				Code:    code,
				Name:    name,
				Message: message,
			})
		}

		fee := rec.EffectiveFee(cfg.DefaultFee).Round(2)
		if !fee.IsPositive() {
			advise(types.AdvisoryFeeUnresolved, "no usable fee, member skipped")
			continue
		}

		debtor := DebtorName(rec)
		if debtor == "" {
			advise(types.AdvisoryNameUnresolved,
				fmt.Sprintf("name %q has no characters allowed in SEPA files, member skipped", name))
			continue
		}

		stored := StoredMandateID(cfg, rec)
		mandateID := MandateID(cfg, rec)
		endToEndID := EndToEndID(cfg, rec)
		if other, clash := written.clash(mandateID, endToEndID, stored, rec.MandateReference); clash {
			advise(types.AdvisoryMandateIDCollision,
				fmt.Sprintf("mandate id %q or end-to-end id %q already used by record %d, member skipped", mandateID, endToEndID, other+1))
			continue
		}
		written.add(i, mandateID, endToEndID, stored, rec.MandateReference)

		if altered := describeAlteration(cfg, rec, mandateID, endToEndID); altered != "" {
			advise(types.AdvisoryMandateReferenceAltered, altered)
		}

		signed, ok := ParseMandateDate(rec.MandateDate)
		if !ok {
			signed = buildDate
			advise(types.AdvisoryMandateDateFallback,
				fmt.Sprintf("mandate date %q not recognized, using %s", rec.MandateDate, buildDate.Format(dateLayout)))
		}

		transactions = append(transactions, b.transaction(cfg, rec, transactionIDs{
			debtor:     debtor,
			mandateID:  mandateID,
			endToEndID: endToEndID,
		}, fee, signed))
		result.ControlSum = result.ControlSum.Add(fee)
	}

	if len(transactions) == 0 {
		return nil, &DocumentGenerationError{
			Cause:      ErrNoTransactions.Error(),
			Advisories: result.Advisories,
			Err:        ErrNoTransactions,
		}
	}

	result.Transactions = len(transactions)
	result.Document = b.document(cfg, now, collectionDate, transactions, result.ControlSum)

	options := DefaultMarshalOptions()
	if b.Options != nil {
		options = *b.Options
	}

	data, err := Marshal(result.Document, options)
	if err != nil {
		return nil, &DocumentGenerationError{Cause: err.Error(), Advisories: result.Advisories, Err: err}
	}
	result.XML = string(data)

	return result, nil
}

// StoredMandateID returns the mandate id before reduction to the SEPA
// character set: the stored reference, with the club prefix when
// PrefixMandateID is set.
func StoredMandateID(cfg config.OriginatorConfig, rec member.Record) string {
	if cfg.PrefixMandateID {
		return cfg.MandateReferencePrefix + rec.MandateReference
	}
	return rec.MandateReference
}

// MandateID returns the mandate id transmitted for rec.
func MandateID(cfg config.OriginatorConfig, rec member.Record) string {
	return sanitizeID(StoredMandateID(cfg, rec))
}

// MandateIDAltered reports whether the transmitted mandate id differs from
// the stored one.
func MandateIDAltered(cfg config.OriginatorConfig, rec member.Record) bool {
	return MandateID(cfg, rec) != StoredMandateID(cfg, rec)
}

// EndToEndID returns the end-to-end id transmitted for rec: prefix, "-",
// reference. When that exceeds 35 characters the prefix is shortened so the
// member reference stays intact.
func EndToEndID(cfg config.OriginatorConfig, rec member.Record) string {
	ref := sanitizeID(rec.MandateReference)
	prefix := strings.ReplaceAll(sanitizeText(cfg.MandateReferencePrefix+"-", 0), " ", "")
	if room := maxIDLength - len(ref); len(prefix) > room {
		prefix = prefix[:room]
	}
	return prefix + ref
}

// DebtorName returns the debtor name as transmitted. Empty when nothing of
// the name survives the SEPA character set.
func DebtorName(rec member.Record) string {
	return sanitizeText(rec.DisplayName(), maxNameLength)
}

func describeAlteration(cfg config.OriginatorConfig, rec member.Record, mandateID, endToEndID string) string {
	var parts []string
	if stored := StoredMandateID(cfg, rec); mandateID != stored {
		parts = append(parts, fmt.Sprintf("mandate id %q written as %q", stored, mandateID))
	}
	if stored := cfg.MandateReferencePrefix + "-" + rec.MandateReference; endToEndID != stored {
		parts = append(parts, fmt.Sprintf("end-to-end id %q written as %q", stored, endToEndID))
	}
	return strings.Join(parts, "; ")
}

// idRegistry remembers the ids written so far. Two members may share ids
// only if their stored references are equal too.
type idRegistry struct {
	mandates  map[string]idOwner
	endToEnds map[string]idOwner
}

type idOwner struct {
	index  int
	stored string
}

func newIDRegistry() *idRegistry {
	return &idRegistry{
		mandates:  make(map[string]idOwner),
		endToEnds: make(map[string]idOwner),
	}
}

// clash returns the index of an earlier member whose written id equals one
// of these while its stored reference differs.
func (r *idRegistry) clash(mandateID, endToEndID, storedMandate, storedRef string) (int, bool) {
	if o, ok := r.mandates[mandateID]; ok && o.stored != storedMandate {
		return o.index, true
	}
	if o, ok := r.endToEnds[endToEndID]; ok && o.stored != storedRef {
		return o.index, true
	}
	return 0, false
}

func (r *idRegistry) add(index int, mandateID, endToEndID, storedMandate, storedRef string) {
	if _, ok := r.mandates[mandateID]; !ok {
		r.mandates[mandateID] = idOwner{index: index, stored: storedMandate}
	}
	if _, ok := r.endToEnds[endToEndID]; !ok {
		r.endToEnds[endToEndID] = idOwner{index: index, stored: storedRef}
	}
}

// transactionIDs are the resolved, already sanitized texts of one debit.
type transactionIDs struct {
	debtor     string
	mandateID  string
	endToEndID string
}

func (b *Builder) transaction(cfg config.OriginatorConfig, rec member.Record, ids transactionIDs, fee decimal.Decimal, signed time.Time) DirectDebitTransaction {
	var tx DirectDebitTransaction

	tx.PmtId.EndToEndId = ids.endToEndID
	tx.InstdAmt = Amount{Ccy: CurrencyEUR, Value: fee.StringFixed(2)}
	tx.DrctDbtTx.MndtRltdInf = MandateInformation{
		MndtId:    ids.mandateID,
		DtOfSgntr: signed.Format(dateLayout),
	}
	tx.DbtrAgt.FinInstnId.Othr = &OtherId{Id: NotProvided}
	tx.Dbtr.Nm = ids.debtor
	tx.DbtrAcct.Id.IBAN = identifier.NormalizeIBAN(rec.IBAN)
	tx.RmtInf.Ustrd = sanitizeText(cfg.Purpose, maxTextLength)

	return tx
}

func (b *Builder) document(cfg config.OriginatorConfig, now, collectionDate time.Time, txs []DirectDebitTransaction, sum decimal.Decimal) *Document {
	clubName := sanitizeText(cfg.Name, maxNameLength)
	ctrlSum := sum.StringFixed(2)

	info := PaymentInformation{
		PmtInfId:  truncate(b.newID(), maxIDLength),
		PmtMtd:    PaymentMethodDirectDebit,
		BtchBookg: true,
		NbOfTxs:   len(txs),
		CtrlSum:   ctrlSum,
		PmtTpInf: PaymentTypeInformation{
			SvcLvl:    Code{Cd: ServiceLevelSEPA},
			LclInstrm: Code{Cd: LocalInstrumentCore},
			SeqTp:     SequenceRecurring,
		},
		ReqdColltnDt: collectionDate.Format(dateLayout),
		Cdtr:         PartyName{Nm: clubName},
		CdtrAgt:      Agent{FinInstnId: FinancialInstitutionId{BIC: identifier.Compact(cfg.BIC)}},
		ChrgBr:       ChargeBearerShared,
		DrctDbtTxInf: txs,
	}
	info.CdtrAcct.Id.IBAN = identifier.NormalizeIBAN(cfg.IBAN)
	info.CdtrSchmeId.Id.PrvtId.Othr.Id = identifier.Compact(cfg.CreditorID)
	info.CdtrSchmeId.Id.PrvtId.Othr.SchmeNm.Prtry = SchemeNameSEPA

	return &Document{
		Xmlns: Namespace,
		CstmrDrctDbtInitn: CustomerDirectDebitInitiation{
			GrpHdr: GroupHeader{
				MsgId:    truncate(b.newID(), maxIDLength),
				CreDtTm:  now.Format(dateTimeLayout),
				NbOfTxs:  len(txs),
				CtrlSum:  ctrlSum,
				InitgPty: PartyName{Nm: clubName},
			},
			PmtInf: []PaymentInformation{info},
		},
	}
}
