// Package model defines data structures for the qualification platform.
package model

import "strings"

// Contact holds contact details extracted from a transcript.
type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Title string `json:"title,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Account holds company details extracted from a transcript.
type Account struct {
	Name     string `json:"name,omitempty"`
	Industry string `json:"industry,omitempty"`
	Size     string `json:"size,omitempty"`
}

// Opportunity holds deal details extracted from a transcript. Amount and
// CloseDate are carried as extracted text; semantic validation is the CRM's
// concern, not ours.
type Opportunity struct {
	Name      string `json:"name,omitempty"`
	Stage     string `json:"stage,omitempty"`
	Amount    string `json:"amount,omitempty"`
	CloseDate string `json:"close_date,omitempty"`
}

// SalesCallRecord is the unit of work for one transcript: the merged,
// structured view of everything extracted so far for a session.
type SalesCallRecord struct {
	Contact     Contact           `json:"contact"`
	Account     Account           `json:"account"`
	Opportunity Opportunity       `json:"opportunity"`
	MEDDIC      map[string]string `json:"meddic"`
	SourceText  string            `json:"source_text,omitempty"`
}

// NewSalesCallRecord returns an empty record with an initialized MEDDIC map.
func NewSalesCallRecord() *SalesCallRecord {
	return &SalesCallRecord{MEDDIC: make(map[string]string)}
}

// Merge folds an extraction result into the record. A field is only
// overwritten when the incoming value is non-empty; existing non-empty
// values are never cleared by an empty extraction. Merging the same result
// twice is equivalent to merging it once.
func (r *SalesCallRecord) Merge(in *SalesCallRecord) {
	if in == nil {
		return
	}

	mergeStr(&r.Contact.Name, in.Contact.Name)
	mergeStr(&r.Contact.Email, in.Contact.Email)
	mergeStr(&r.Contact.Title, in.Contact.Title)
	mergeStr(&r.Contact.Phone, in.Contact.Phone)

	mergeStr(&r.Account.Name, in.Account.Name)
	mergeStr(&r.Account.Industry, in.Account.Industry)
	mergeStr(&r.Account.Size, in.Account.Size)

	mergeStr(&r.Opportunity.Name, in.Opportunity.Name)
	mergeStr(&r.Opportunity.Stage, in.Opportunity.Stage)
	mergeStr(&r.Opportunity.Amount, in.Opportunity.Amount)
	mergeStr(&r.Opportunity.CloseDate, in.Opportunity.CloseDate)

	if r.MEDDIC == nil {
		r.MEDDIC = make(map[string]string)
	}
	for k, v := range in.MEDDIC {
		if strings.TrimSpace(v) != "" {
			r.MEDDIC[k] = v
		}
	}

	if strings.TrimSpace(in.SourceText) != "" {
		r.SourceText = in.SourceText
	}
}

func mergeStr(dst *string, src string) {
	if strings.TrimSpace(src) != "" {
		*dst = src
	}
}
