// Package ldap implements LDAP protocol message parsing and encoding
// as specified in RFC 4511.
package ldap

import (
	"github.com/oba-ldap/oba/internal/ber"
)

// Context-specific tags for ExtendedRequest/ExtendedResponse fields.
const (
	ContextTagExtendedRequestName   = 0  // [0] requestName LDAPOID
	ContextTagExtendedRequestValue  = 1  // [1] requestValue OCTET STRING OPTIONAL
	ContextTagExtendedResponseName  = 10 // [10] responseName LDAPOID OPTIONAL
	ContextTagExtendedResponseValue = 11 // [11] responseValue OCTET STRING OPTIONAL
)

// ExtendedRequest represents an LDAP Extended Request.
// Per RFC 4511 Section 4.12:
// ExtendedRequest ::= [APPLICATION 23] SEQUENCE {
//
//	requestName      [0] LDAPOID,
//	requestValue     [1] OCTET STRING OPTIONAL
//
// }
type ExtendedRequest struct {
	// Name is the OID identifying the extended operation
	Name string
	// Value is the operation-specific request value (optional)
	Value []byte
}

// ParseExtendedRequest parses an ExtendedRequest from raw operation data.
// The data should be the contents of the APPLICATION 23 tag.
func ParseExtendedRequest(data []byte) (*ExtendedRequest, error) {
	decoder := ber.NewBERDecoder(data)
	req := &ExtendedRequest{}

	tagNum, _, nameBytes, err := decoder.ReadTaggedValue()
	if err != nil {
		return nil, NewParseError(decoder.Offset(), "failed to read requestName", err)
	}
	if tagNum != ContextTagExtendedRequestName {
		return nil, NewParseError(decoder.Offset(), "unexpected tag for requestName", ErrInvalidOperation)
	}
	req.Name = string(nameBytes)

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagExtendedRequestValue) {
		_, _, value, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read requestValue", err)
		}
		req.Value = value
	}

	return req, nil
}

// Encode encodes the ExtendedRequest to BER format (without the APPLICATION tag).
func (r *ExtendedRequest) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(128)

	if err := encoder.WriteTaggedValue(ContextTagExtendedRequestName, false, []byte(r.Name)); err != nil {
		return nil, err
	}

	if len(r.Value) > 0 {
		if err := encoder.WriteTaggedValue(ContextTagExtendedRequestValue, false, r.Value); err != nil {
			return nil, err
		}
	}

	return encoder.Bytes(), nil
}

// ExtendedResponse represents an LDAP Extended Response.
// Per RFC 4511 Section 4.12:
// ExtendedResponse ::= [APPLICATION 24] SEQUENCE {
//
//	COMPONENTS OF LDAPResult,
//	responseName     [10] LDAPOID OPTIONAL,
//	responseValue    [11] OCTET STRING OPTIONAL
//
// }
type ExtendedResponse struct {
	LDAPResult
	// Name is the OID identifying the extended operation's response (optional)
	Name string
	// Value is the operation-specific response value (optional)
	Value []byte
}

// ParseExtendedResponse parses an ExtendedResponse from raw operation data.
// The data should be the contents of the APPLICATION 24 tag.
func ParseExtendedResponse(data []byte) (*ExtendedResponse, error) {
	decoder := ber.NewBERDecoder(data)

	result, err := parseLDAPResult(decoder)
	if err != nil {
		return nil, err
	}
	resp := &ExtendedResponse{LDAPResult: result}

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagExtendedResponseName) {
		_, _, name, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read responseName", err)
		}
		resp.Name = string(name)
	}

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagExtendedResponseValue) {
		_, _, value, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read responseValue", err)
		}
		resp.Value = value
	}

	return resp, nil
}

// Encode encodes the ExtendedResponse to BER format.
func (r *ExtendedResponse) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(128)

	appPos := encoder.WriteApplicationTag(ApplicationExtendedResponse, true)

	if err := r.LDAPResult.Encode(encoder); err != nil {
		return nil, err
	}

	if r.Name != "" {
		if err := encoder.WriteTaggedValue(ContextTagExtendedResponseName, false, []byte(r.Name)); err != nil {
			return nil, err
		}
	}
	if len(r.Value) > 0 {
		if err := encoder.WriteTaggedValue(ContextTagExtendedResponseValue, false, r.Value); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}

	return encoder.Bytes(), nil
}

// IntermediateResponse represents an LDAP Intermediate Response as defined
// by RFC 4511 Section 4.13, used by extended operations (e.g. paged
// results controls) to deliver partial results before the final response.
// IntermediateResponse ::= [APPLICATION 25] SEQUENCE {
//
//	responseName     [0] LDAPOID OPTIONAL,
//	responseValue    [1] OCTET STRING OPTIONAL
//
// }
type IntermediateResponse struct {
	// Name is the OID identifying the response type (optional)
	Name string
	// Value is the response-specific value (optional)
	Value []byte
}

// ParseIntermediateResponse parses an IntermediateResponse from raw operation data.
// The data should be the contents of the APPLICATION 25 tag.
func ParseIntermediateResponse(data []byte) (*IntermediateResponse, error) {
	decoder := ber.NewBERDecoder(data)
	resp := &IntermediateResponse{}

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagExtendedRequestName) {
		_, _, name, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read responseName", err)
		}
		resp.Name = string(name)
	}

	if decoder.Remaining() > 0 && decoder.IsContextTag(ContextTagExtendedRequestValue) {
		_, _, value, err := decoder.ReadTaggedValue()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read responseValue", err)
		}
		resp.Value = value
	}

	return resp, nil
}

// Encode encodes the IntermediateResponse to BER format.
func (r *IntermediateResponse) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(64)

	appPos := encoder.WriteApplicationTag(ApplicationIntermediateResponse, true)

	if r.Name != "" {
		if err := encoder.WriteTaggedValue(ContextTagExtendedRequestName, false, []byte(r.Name)); err != nil {
			return nil, err
		}
	}
	if len(r.Value) > 0 {
		if err := encoder.WriteTaggedValue(ContextTagExtendedRequestValue, false, r.Value); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}

	return encoder.Bytes(), nil
}

// SearchResultReference represents a referral to continue a search
// elsewhere, per RFC 4511 Section 4.5.3:
// SearchResultReference ::= [APPLICATION 19] SEQUENCE OF uri URI
type SearchResultReference struct {
	// URIs contains the referral URIs
	URIs []string
}

// ParseSearchResultReference parses a SearchResultReference from raw
// operation data. The data should be the contents of the APPLICATION 19
// tag; unlike most LDAP operations this is a bare SEQUENCE OF, not a
// SEQUENCE wrapping named fields.
func ParseSearchResultReference(data []byte) (*SearchResultReference, error) {
	decoder := ber.NewBERDecoder(data)
	ref := &SearchResultReference{}

	for decoder.Remaining() > 0 {
		uri, err := decoder.ReadOctetString()
		if err != nil {
			return nil, NewParseError(decoder.Offset(), "failed to read referral URI", err)
		}
		ref.URIs = append(ref.URIs, string(uri))
	}

	return ref, nil
}

// Encode encodes the SearchResultReference to BER format.
func (r *SearchResultReference) Encode() ([]byte, error) {
	encoder := ber.NewBEREncoder(128)

	appPos := encoder.WriteApplicationTag(ApplicationSearchResultReference, true)

	for _, uri := range r.URIs {
		if err := encoder.WriteOctetString([]byte(uri)); err != nil {
			return nil, err
		}
	}

	if err := encoder.EndApplicationTag(appPos); err != nil {
		return nil, err
	}

	return encoder.Bytes(), nil
}
