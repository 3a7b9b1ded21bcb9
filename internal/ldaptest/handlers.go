package ldaptest

import (
	"bytes"
	"net"
	"strconv"
	"strings"

	"github.com/oba-ldap/oba/internal/ber"
	"github.com/oba-ldap/oba/internal/dn"
	"github.com/oba-ldap/oba/internal/ldap"
)

func (s *Server) handleBind(c net.Conn, msg *ldap.LDAPMessage) {
	req, err := ldap.ParseBindRequest(msg.Operation.Data)
	resp := &ldap.BindResponse{LDAPResult: ldap.NewSuccessResult()}
	if err != nil {
		resp.LDAPResult = ldap.NewErrorResult(ldap.ResultProtocolError, err.Error())
	} else if req.AuthMethod == ldap.AuthMethodSimple && req.Name != "" && len(req.SimplePassword) == 0 {
		resp.LDAPResult = ldap.NewErrorResult(ldap.ResultInvalidCredentials, "password required for non-anonymous bind")
	}
	body, _ := resp.Encode()
	writeRaw(c, msg.MessageID, ldap.ApplicationBindResponse, body)
}

func (s *Server) handleAdd(c net.Conn, msg *ldap.LDAPMessage) {
	req, err := ldap.ParseAddRequest(msg.Operation.Data)
	if err != nil {
		s.respondAdd(c, msg.MessageID, ldap.NewErrorResult(ldap.ResultProtocolError, err.Error()))
		return
	}

	s.mu.Lock()
	key := normalizeDN(req.Entry)
	_, exists := s.entries[key]
	if exists {
		s.mu.Unlock()
		s.respondAdd(c, msg.MessageID, ldap.NewErrorResultWithDN(ldap.ResultEntryAlreadyExists, req.Entry, "entry already exists"))
		return
	}
	attrs := make(map[string][]string, len(req.Attributes))
	for _, a := range req.Attributes {
		vals := make([]string, len(a.Values))
		for i, v := range a.Values {
			vals[i] = string(v)
		}
		attrs[a.Type] = vals
	}
	s.entries[key] = &Entry{DN: req.Entry, Attrs: attrs}
	s.order = append(s.order, key)
	s.mu.Unlock()

	s.respondAdd(c, msg.MessageID, ldap.NewSuccessResult())
}

func (s *Server) respondAdd(c net.Conn, id int, result ldap.LDAPResult) {
	resp := &ldap.AddResponse{LDAPResult: result}
	body, _ := resp.Encode()
	writeRaw(c, id, ldap.ApplicationAddResponse, body)
}

func (s *Server) handleDelete(c net.Conn, msg *ldap.LDAPMessage) {
	req, err := ldap.ParseDeleteRequest(msg.Operation.Data)
	if err != nil {
		s.respondDelete(c, msg.MessageID, ldap.NewErrorResult(ldap.ResultProtocolError, err.Error()))
		return
	}

	s.mu.Lock()
	key := normalizeDN(req.DN)
	_, exists := s.entries[key]
	if exists {
		delete(s.entries, key)
		for i, k := range s.order {
			if k == key {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if !exists {
		s.respondDelete(c, msg.MessageID, ldap.NewErrorResultWithDN(ldap.ResultNoSuchObject, req.DN, "no such object"))
		return
	}
	s.respondDelete(c, msg.MessageID, ldap.NewSuccessResult())
}

func (s *Server) respondDelete(c net.Conn, id int, result ldap.LDAPResult) {
	resp := &ldap.DeleteResponse{LDAPResult: result}
	body, _ := resp.Encode()
	writeRaw(c, id, ldap.ApplicationDelResponse, body)
}

func (s *Server) handleModify(c net.Conn, msg *ldap.LDAPMessage) {
	req, err := ldap.ParseModifyRequest(msg.Operation.Data)
	if err != nil {
		s.respondModify(c, msg.MessageID, ldap.NewErrorResult(ldap.ResultProtocolError, err.Error()))
		return
	}

	s.mu.Lock()
	key := normalizeDN(req.Object)
	e, exists := s.entries[key]
	if !exists {
		s.mu.Unlock()
		s.respondModify(c, msg.MessageID, ldap.NewErrorResultWithDN(ldap.ResultNoSuchObject, req.Object, "no such object"))
		return
	}
	for _, change := range req.Changes {
		applyModification(e, change)
	}
	s.mu.Unlock()

	s.respondModify(c, msg.MessageID, ldap.NewSuccessResult())
}

func applyModification(e *Entry, change ldap.Modification) {
	attrType := change.Attribute.Type
	vals := make([]string, len(change.Attribute.Values))
	for i, v := range change.Attribute.Values {
		vals[i] = string(v)
	}
	key := canonicalAttrKey(e, attrType)

	switch change.Operation {
	case ldap.ModifyOperationAdd:
		e.Attrs[key] = append(e.Attrs[key], vals...)
	case ldap.ModifyOperationDelete:
		if len(vals) == 0 {
			delete(e.Attrs, key)
			return
		}
		e.Attrs[key] = removeValues(e.Attrs[key], vals)
	case ldap.ModifyOperationReplace:
		if len(vals) == 0 {
			delete(e.Attrs, key)
			return
		}
		e.Attrs[key] = vals
	case ldap.ModifyOperationIncrement:
		if len(vals) != 1 {
			return
		}
		delta, err := strconv.Atoi(vals[0])
		if err != nil || len(e.Attrs[key]) != 1 {
			return
		}
		current, err := strconv.Atoi(e.Attrs[key][0])
		if err != nil {
			return
		}
		e.Attrs[key] = []string{strconv.Itoa(current + delta)}
	}
}

// canonicalAttrKey returns the attribute key already stored on e that
// matches attrType case-insensitively, or attrType itself if the entry
// has no such attribute yet.
func canonicalAttrKey(e *Entry, attrType string) string {
	for k := range e.Attrs {
		if strings.EqualFold(k, attrType) {
			return k
		}
	}
	return attrType
}

func removeValues(values, toRemove []string) []string {
	out := values[:0:0]
	for _, v := range values {
		keep := true
		for _, r := range toRemove {
			if strings.EqualFold(v, r) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) respondModify(c net.Conn, id int, result ldap.LDAPResult) {
	resp := &ldap.ModifyResponse{LDAPResult: result}
	body, _ := resp.Encode()
	writeRaw(c, id, ldap.ApplicationModifyResponse, body)
}

func (s *Server) handleCompare(c net.Conn, msg *ldap.LDAPMessage) {
	req, err := ldap.ParseCompareRequest(msg.Operation.Data)
	if err != nil {
		s.respondCompare(c, msg.MessageID, ldap.NewErrorResult(ldap.ResultProtocolError, err.Error()))
		return
	}

	s.mu.Lock()
	e, exists := s.entries[normalizeDN(req.DN)]
	s.mu.Unlock()
	if !exists {
		s.respondCompare(c, msg.MessageID, ldap.NewErrorResultWithDN(ldap.ResultNoSuchObject, req.DN, "no such object"))
		return
	}

	match := false
	for _, v := range attrValues(e, req.Attribute) {
		if bytes.EqualFold([]byte(v), req.Value) {
			match = true
			break
		}
	}
	code := ldap.ResultCompareFalse
	if match {
		code = ldap.ResultCompareTrue
	}
	s.respondCompare(c, msg.MessageID, ldap.LDAPResult{ResultCode: code})
}

func (s *Server) respondCompare(c net.Conn, id int, result ldap.LDAPResult) {
	resp := &ldap.CompareResponse{LDAPResult: result}
	body, _ := resp.Encode()
	writeRaw(c, id, ldap.ApplicationCompareResponse, body)
}

func (s *Server) handleSearch(c net.Conn, msg *ldap.LDAPMessage) {
	req, err := ldap.ParseSearchRequest(msg.Operation.Data)
	if err != nil {
		s.respondSearchDone(c, msg.MessageID, ldap.NewErrorResult(ldap.ResultProtocolError, err.Error()))
		return
	}

	s.mu.Lock()
	candidates := make([]*Entry, 0, len(s.order))
	for _, k := range s.order {
		candidates = append(candidates, s.entries[k])
	}
	s.mu.Unlock()

	baseDN, err := dn.Parse(req.BaseObject)
	if err != nil {
		s.respondSearchDone(c, msg.MessageID, ldap.NewErrorResult(ldap.ResultInvalidDNSyntax, err.Error()))
		return
	}

	sent := 0
	for _, e := range candidates {
		if !inScope(e.DN, baseDN, req.Scope) {
			continue
		}
		if req.Filter != nil && !matchFilter(req.Filter, e) {
			continue
		}
		entry := &ldap.SearchResultEntry{
			ObjectName: e.DN,
			Attributes: projectAttributes(e, req.Attributes),
		}
		body, encErr := entry.Encode()
		if encErr != nil {
			continue
		}
		writeRaw(c, msg.MessageID, ldap.ApplicationSearchResultEntry, body)
		sent++
	}

	if sent == 0 && req.Scope == ldap.ScopeBaseObject {
		s.respondSearchDone(c, msg.MessageID, ldap.NewErrorResultWithDN(ldap.ResultNoSuchObject, req.BaseObject, "no such object"))
		return
	}
	s.respondSearchDone(c, msg.MessageID, ldap.NewSuccessResult())
}

func (s *Server) respondSearchDone(c net.Conn, id int, result ldap.LDAPResult) {
	done := &ldap.SearchResultDone{LDAPResult: result}
	body, _ := done.Encode()
	writeRaw(c, id, ldap.ApplicationSearchResultDone, body)
}

func inScope(candidateDN string, base dn.DN, scope ldap.SearchScope) bool {
	parsed, err := dn.Parse(candidateDN)
	if err != nil {
		return false
	}
	switch scope {
	case ldap.ScopeBaseObject:
		return dn.Equal(parsed, base)
	default: // SingleLevel and WholeSubtree: accept the base itself and everything below it
		if dn.Equal(parsed, base) {
			return true
		}
		return isDescendant(parsed, base)
	}
}

// isDescendant reports whether child's RDN sequence ends with base's,
// i.e. child lives strictly below base in the hierarchy; base itself
// is not its own descendant.
func isDescendant(child, base dn.DN) bool {
	if len(child) <= len(base) {
		return false
	}
	offset := len(child) - len(base)
	for i, rdn := range base {
		if !rdnEqual(child[offset+i], rdn) {
			return false
		}
	}
	return true
}

func rdnEqual(a, b dn.RDN) bool {
	tmp := dn.DN{a}
	tmp2 := dn.DN{b}
	return dn.Equal(tmp, tmp2)
}

func attrValues(e *Entry, attrType string) []string {
	for k, v := range e.Attrs {
		if strings.EqualFold(k, attrType) {
			return v
		}
	}
	return nil
}

func projectAttributes(e *Entry, requested []string) []ldap.PartialAttribute {
	wantAll := len(requested) == 0
	if !wantAll {
		for _, r := range requested {
			if r == "*" {
				wantAll = true
				break
			}
		}
	}

	out := make([]ldap.PartialAttribute, 0, len(e.Attrs))
	for name, values := range e.Attrs {
		if !wantAll && !containsFold(requested, name) {
			continue
		}
		byteVals := make([][]byte, len(values))
		for i, v := range values {
			byteVals[i] = []byte(v)
		}
		out = append(out, ldap.PartialAttribute{Type: name, Values: byteVals})
	}
	return out
}

func containsFold(list []string, target string) bool {
	for _, v := range list {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}

// writeRaw wraps an operation in a message envelope and writes it. The
// response Encode methods emit the full APPLICATION-tagged TLV while the
// envelope encoder writes its own application tag from the Tag field, so
// the TLV header is stripped before wrapping.
func writeRaw(c net.Conn, id, tag int, body []byte) {
	msg := &ldap.LDAPMessage{MessageID: id, Operation: &ldap.RawOperation{Tag: tag, Data: stripTLVHeader(body)}}
	encoded, err := msg.Encode()
	if err != nil {
		return
	}
	_, _ = c.Write(encoded)
}

// stripTLVHeader returns the contents of a single BER TLV, or the input
// unchanged when it does not parse as one.
func stripTLVHeader(body []byte) []byte {
	decoder := ber.NewBERDecoder(body)
	if _, _, _, err := decoder.ReadTag(); err != nil {
		return body
	}
	length, err := decoder.ReadLength()
	if err != nil || decoder.Offset()+length > len(body) {
		return body
	}
	return body[decoder.Offset() : decoder.Offset()+length]
}
