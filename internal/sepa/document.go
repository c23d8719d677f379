package sepa

import "encoding/xml"

// MessageVersion is the ISO 20022 message this package writes.
const MessageVersion = "pain.008.001.02"

// Namespace is the XML namespace of pain.008.001.02.
const Namespace = "urn:iso:std:iso:20022:tech:xsd:" + MessageVersion

// Fixed code values written into every collection.
const (
	PaymentMethodDirectDebit = "DD"
	ServiceLevelSEPA         = "SEPA"
	LocalInstrumentCore      = "CORE"
	SequenceRecurring        = "RCUR"
	ChargeBearerShared       = "SLEV"
	CurrencyEUR              = "EUR"
	SchemeNameSEPA           = "SEPA"

	// NotProvided is the debtor agent id when the debtor BIC is unknown.
	NotProvided = "NOTPROVIDED"
)

// Document is the root of a pain.008.001.02 message.
type Document struct {
	XMLName           xml.Name                      `xml:"Document"`
	Xmlns             string                        `xml:"xmlns,attr"`
	CstmrDrctDbtInitn CustomerDirectDebitInitiation `xml:"CstmrDrctDbtInitn"`
}

// CustomerDirectDebitInitiation holds the group header and the payment
// information blocks.
type CustomerDirectDebitInitiation struct {
	GrpHdr GroupHeader          `xml:"GrpHdr"`
	PmtInf []PaymentInformation `xml:"PmtInf"`
}

// GroupHeader identifies the message.
type GroupHeader struct {
	MsgId    string    `xml:"MsgId"`
	CreDtTm  string    `xml:"CreDtTm"`
	NbOfTxs  int       `xml:"NbOfTxs"`
	CtrlSum  string    `xml:"CtrlSum"`
	InitgPty PartyName `xml:"InitgPty"`
}

// PartyName is a party identified by name only.
type PartyName struct {
	Nm string `xml:"Nm"`
}

// PaymentInformation is one batch collected to one creditor account on one
// date.
type PaymentInformation struct {
	PmtInfId     string                   `xml:"PmtInfId"`
	PmtMtd       string                   `xml:"PmtMtd"`
	BtchBookg    bool                     `xml:"BtchBookg"`
	NbOfTxs      int                      `xml:"NbOfTxs"`
	CtrlSum      string                   `xml:"CtrlSum"`
	PmtTpInf     PaymentTypeInformation   `xml:"PmtTpInf"`
	ReqdColltnDt string                   `xml:"ReqdColltnDt"`
	Cdtr         PartyName                `xml:"Cdtr"`
	CdtrAcct     CashAccount              `xml:"CdtrAcct"`
	CdtrAgt      Agent                    `xml:"CdtrAgt"`
	ChrgBr       string                   `xml:"ChrgBr"`
	CdtrSchmeId  SchemeIdentification     `xml:"CdtrSchmeId"`
	DrctDbtTxInf []DirectDebitTransaction `xml:"DrctDbtTxInf"`
}

// PaymentTypeInformation selects scheme and sequence.
type PaymentTypeInformation struct {
	SvcLvl    Code   `xml:"SvcLvl"`
	LclInstrm Code   `xml:"LclInstrm"`
	SeqTp     string `xml:"SeqTp"`
}

// Code wraps a single Cd element.
type Code struct {
	Cd string `xml:"Cd"`
}

// CashAccount is an account identified by IBAN.
type CashAccount struct {
	Id struct {
		IBAN string `xml:"IBAN"`
	} `xml:"Id"`
}

// Agent is a financial institution identified by BIC, or by NOTPROVIDED.
type Agent struct {
	FinInstnId FinancialInstitutionId `xml:"FinInstnId"`
}

// FinancialInstitutionId carries either BIC or Othr.
type FinancialInstitutionId struct {
	BIC  string   `xml:"BIC,omitempty"`
	Othr *OtherId `xml:"Othr,omitempty"`
}

// OtherId is a proprietary identifier.
type OtherId struct {
	Id string `xml:"Id"`
}

// SchemeIdentification carries the Creditor Identifier.
type SchemeIdentification struct {
	Id struct {
		PrvtId struct {
			Othr struct {
				Id      string `xml:"Id"`
				SchmeNm struct {
					Prtry string `xml:"Prtry"`
				} `xml:"SchmeNm"`
			} `xml:"Othr"`
		} `xml:"PrvtId"`
	} `xml:"Id"`
}

// Amount is a monetary amount with currency.
type Amount struct {
	Ccy   string `xml:"Ccy,attr"`
	Value string `xml:",chardata"`
}

// DirectDebitTransaction is one member collection.
type DirectDebitTransaction struct {
	PmtId struct {
		EndToEndId string `xml:"EndToEndId"`
	} `xml:"PmtId"`
	InstdAmt  Amount `xml:"InstdAmt"`
	DrctDbtTx struct {
		MndtRltdInf MandateInformation `xml:"MndtRltdInf"`
	} `xml:"DrctDbtTx"`
	DbtrAgt  Agent       `xml:"DbtrAgt"`
	Dbtr     PartyName   `xml:"Dbtr"`
	DbtrAcct CashAccount `xml:"DbtrAcct"`
	RmtInf   struct {
		Ustrd string `xml:"Ustrd"`
	} `xml:"RmtInf"`
}

// MandateInformation identifies the signed mandate.
type MandateInformation struct {
	MndtId    string `xml:"MndtId"`
	DtOfSgntr string `xml:"DtOfSgntr"`
}

// Transactions returns every transaction of every payment block.
func (d *Document) Transactions() []DirectDebitTransaction {
	var out []DirectDebitTransaction
	for _, p := range d.CstmrDrctDbtInitn.PmtInf {
		out = append(out, p.DrctDbtTxInf...)
	}
	return out
}
