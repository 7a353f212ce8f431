package fcgiwire

// Record is one fully-read FastCGI record: header plus its content
// bytes (padding is stripped by the time a Record exists).
type Record struct {
	Header  Header
	Content []byte
}

// BeginRequestBody is the 8-byte content of a BeginRequest record.
type BeginRequestBody struct {
	Role  Role
	Flags uint8
}

// DecodeBeginRequestBody parses BeginRequest content. It reports
// false if b is too short to hold the role and flags fields, a
// protocol violation callers should log and drop the record for
// rather than index into.
func DecodeBeginRequestBody(b []byte) (BeginRequestBody, bool) {
	if len(b) < 3 {
		return BeginRequestBody{}, false
	}
	return BeginRequestBody{
		Role:  Role(uint16(b[0])<<8 | uint16(b[1])),
		Flags: b[2],
	}, true
}

// KeepConn reports whether the flags byte requests the connection be
// kept open across this request's completion.
func (b BeginRequestBody) KeepConn() bool {
	return b.Flags&KeepConnMask != 0
}

// EncodeEndRequestBody packs an EndRequest record's 8-byte content.
func EncodeEndRequestBody(appStatus uint32, protocolStatus ProtocolStatus) []byte {
	b := make([]byte, 8)
	b[0] = byte(appStatus >> 24)
	b[1] = byte(appStatus >> 16)
	b[2] = byte(appStatus >> 8)
	b[3] = byte(appStatus)
	b[4] = byte(protocolStatus)
	return b
}

// EncodeUnknownTypeBody packs an UnknownType record's 8-byte content:
// the original type byte followed by seven zero bytes.
func EncodeUnknownTypeBody(originalType uint8) []byte {
	b := make([]byte, 8)
	b[0] = originalType
	return b
}
