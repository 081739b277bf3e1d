// Package verifier confirms PAN and GSTIN identifiers, either by format alone
// or against an external tax-authority API.
package verifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tradeshield/config"
	"tradeshield/taxid"
)

const (
	KindPAN = "pan"
	KindGST = "gst"

	SourceLocal  = "local"
	SourceRemote = "remote"

	StatusValidFormat   = "valid_format"
	StatusInvalidFormat = "invalid_format"
	StatusActive        = "active"
	StatusInactive      = "inactive"
	StatusNotFound      = "not_found"
)

var (
	ErrNotFound    = errors.New("tax identifier not registered")
	ErrUnavailable = errors.New("tax verification service unavailable")
)

// Result is the outcome of verifying one identifier.
type Result struct {
	Kind           string `json:"kind"`
	Number         string `json:"number"`
	Verified       bool   `json:"verified"`
	Status         string `json:"status"`
	RegisteredName string `json:"registeredName,omitempty"`
	Message        string `json:"message,omitempty"`
	Source         string `json:"source"`
	StateCode      string `json:"stateCode,omitempty"`
	EmbeddedPAN    string `json:"embeddedPan,omitempty"`
}

type Verifier interface {
	VerifyPAN(ctx context.Context, pan string) (*Result, error)
	VerifyGST(ctx context.Context, gst string) (*Result, error)
}

// New returns a remote Client when a tax API URL is configured and a Local
// format-only verifier otherwise.
func New(cfg config.TaxAPIConfig, log *zap.Logger) Verifier {
	if cfg.URL == "" {
		return NewLocal()
	}
	return NewClient(cfg, log)
}

// Local verifies identifiers by format only.
type Local struct{}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) VerifyPAN(_ context.Context, pan string) (*Result, error) {
	return checkPAN(taxid.Normalize(pan)), nil
}

func (l *Local) VerifyGST(_ context.Context, gst string) (*Result, error) {
	return checkGST(taxid.Normalize(gst)), nil
}

func checkPAN(pan string) *Result {
	res := &Result{Kind: KindPAN, Number: pan, Source: SourceLocal}
	if !taxid.ValidPAN(pan) {
		res.Status = StatusInvalidFormat
		res.Message = "Invalid PAN format"
		return res
	}
	res.Verified = true
	res.Status = StatusValidFormat
	res.Message = "PAN format is valid"
	return res
}

func checkGST(gst string) *Result {
	res := &Result{Kind: KindGST, Number: gst, Source: SourceLocal}
	if !taxid.ValidGST(gst) {
		res.Status = StatusInvalidFormat
		res.Message = "Invalid GST format"
		return res
	}
	res.Verified = true
	res.Status = StatusValidFormat
	res.Message = "GST format is valid"
	res.StateCode = taxid.StateCode(gst)
	res.EmbeddedPAN = taxid.ExtractPAN(gst)
	return res
}
