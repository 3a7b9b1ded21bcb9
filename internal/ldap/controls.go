package ldap

import (
	"sync"

	"github.com/oba-ldap/oba/internal/ber"
)

// Well-known control and extended-operation OIDs.
const (
	// ControlTypePagedResults is the simple paged results control, RFC 2696.
	ControlTypePagedResults = "1.2.840.113556.1.4.319"
	// ControlTypeManageDsaIT makes the server treat referral entries as
	// ordinary entries, RFC 3296.
	ControlTypeManageDsaIT = "2.16.840.1.113730.3.4.2"

	// OIDNoticeOfDisconnection identifies the unsolicited notification a
	// server sends before unilaterally closing the stream, RFC 4511 §4.4.1.
	OIDNoticeOfDisconnection = "1.3.6.1.4.1.1466.20036"
	// OIDStartTLS identifies the StartTLS extended operation, RFC 4511 §4.14.
	OIDStartTLS = "1.3.6.1.4.1.1466.20037"
)

// DecodedControl is a control value decoded into a typed representation.
// Implementations are registered per OID with RegisterControlDecoder.
type DecodedControl interface {
	ControlType() string
}

// ControlDecoder turns a raw control value into its typed representation.
type ControlDecoder func(criticality bool, value []byte) (DecodedControl, error)

var (
	controlMu       sync.RWMutex
	controlDecoders = map[string]ControlDecoder{}
)

// RegisterControlDecoder installs fn as the decoder for controls carrying
// oid. A later registration for the same OID replaces the earlier one.
func RegisterControlDecoder(oid string, fn ControlDecoder) {
	controlMu.Lock()
	defer controlMu.Unlock()
	controlDecoders[oid] = fn
}

// RawControl carries a control whose OID has no registered decoder.
type RawControl struct {
	OID         string
	Criticality bool
	Value       []byte
}

// ControlType implements DecodedControl.
func (c *RawControl) ControlType() string { return c.OID }

// DecodeControl resolves ctrl's OID against the decoder registry. Controls
// with no registered decoder come back as *RawControl rather than an error,
// so callers can always inspect every response control.
func DecodeControl(ctrl Control) (DecodedControl, error) {
	controlMu.RLock()
	fn, ok := controlDecoders[ctrl.OID]
	controlMu.RUnlock()
	if !ok {
		return &RawControl{OID: ctrl.OID, Criticality: ctrl.Criticality, Value: ctrl.Value}, nil
	}
	return fn(ctrl.Criticality, ctrl.Value)
}

// PagedResultsControl is the RFC 2696 simple paged results control. On a
// request, Size is the requested page size and Cookie is the opaque cursor
// from the previous page (empty on the first). On a response, Size is the
// server's estimate of the total result size (often 0) and an empty Cookie
// marks the final page.
type PagedResultsControl struct {
	Criticality bool
	Size        int
	Cookie      []byte
}

// ControlType implements DecodedControl.
func (c *PagedResultsControl) ControlType() string { return ControlTypePagedResults }

// Control renders the paged results control into wire form.
func (c *PagedResultsControl) Control() (Control, error) {
	encoder := ber.NewBEREncoder(16)
	seq := encoder.BeginSequence()
	if err := encoder.WriteInteger(int64(c.Size)); err != nil {
		return Control{}, err
	}
	if err := encoder.WriteOctetString(c.Cookie); err != nil {
		return Control{}, err
	}
	if err := encoder.EndSequence(seq); err != nil {
		return Control{}, err
	}
	return Control{
		OID:         ControlTypePagedResults,
		Criticality: c.Criticality,
		Value:       encoder.Bytes(),
	}, nil
}

func decodePagedResults(criticality bool, value []byte) (DecodedControl, error) {
	decoder := ber.NewBERDecoder(value)
	contents, err := decoder.ReadSequenceContents()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read paged results sequence", err)
	}
	size, err := contents.ReadInteger()
	if err != nil {
		return nil, NewParseError(contents.Offset(), "failed to read paged results size", err)
	}
	cookie, err := contents.ReadOctetString()
	if err != nil {
		return nil, NewParseError(contents.Offset(), "failed to read paged results cookie", err)
	}
	return &PagedResultsControl{Criticality: criticality, Size: int(size), Cookie: cookie}, nil
}

// ManageDsaITControl is the RFC 3296 control instructing the server to
// return referral entries as ordinary entries. It carries no value.
type ManageDsaITControl struct {
	Criticality bool
}

// ControlType implements DecodedControl.
func (c *ManageDsaITControl) ControlType() string { return ControlTypeManageDsaIT }

// Control renders the ManageDsaIT control into wire form.
func (c *ManageDsaITControl) Control() Control {
	return Control{OID: ControlTypeManageDsaIT, Criticality: c.Criticality}
}

func decodeManageDsaIT(criticality bool, _ []byte) (DecodedControl, error) {
	return &ManageDsaITControl{Criticality: criticality}, nil
}

func init() {
	RegisterControlDecoder(ControlTypePagedResults, decodePagedResults)
	RegisterControlDecoder(ControlTypeManageDsaIT, decodeManageDsaIT)
}
