package fcgirequest

import "strings"

// HeaderKind classifies a derived header into one of the well-known
// names, or HeaderExtension for anything else carried under an
// HTTP_* variable.
type HeaderKind int

const (
	HeaderExtension HeaderKind = iota
	HeaderAccept
	HeaderAcceptCharset
	HeaderAcceptEncoding
	HeaderAcceptLanguage
	HeaderAuthorization
	HeaderCacheControl
	HeaderConnection
	HeaderContentEncoding
	HeaderContentLanguage
	HeaderContentLength
	HeaderContentMD5
	HeaderContentRange
	HeaderContentType
	HeaderCookie
	HeaderExpires
	HeaderFrom
	HeaderHost
	HeaderIfMatch
	HeaderIfModifiedSince
	HeaderIfNoneMatch
	HeaderIfRange
	HeaderIfUnmodifiedSince
	HeaderLastModified
	HeaderMaxForwards
	HeaderPragma
	HeaderProxyAuthorization
	HeaderRange
	HeaderReferer
	HeaderTE
	HeaderUserAgent
	HeaderAllow
	HeaderVia
	HeaderWarning
)

// knownSuffixes maps the portion of an HTTP_* variable name after the
// prefix (with underscores still in place, e.g. "ACCEPT_CHARSET") to
// its header kind and canonical wire name.
var knownSuffixes = map[string]struct {
	Kind HeaderKind
	Name string
}{
	"ACCEPT":              {HeaderAccept, "Accept"},
	"ACCEPT_CHARSET":      {HeaderAcceptCharset, "Accept-Charset"},
	"ACCEPT_ENCODING":     {HeaderAcceptEncoding, "Accept-Encoding"},
	"ACCEPT_LANGUAGE":     {HeaderAcceptLanguage, "Accept-Language"},
	"AUTHORIZATION":       {HeaderAuthorization, "Authorization"},
	"CACHE_CONTROL":       {HeaderCacheControl, "Cache-Control"},
	"CONNECTION":          {HeaderConnection, "Connection"},
	"CONTENT_ENCODING":    {HeaderContentEncoding, "Content-Encoding"},
	"CONTENT_LANGUAGE":    {HeaderContentLanguage, "Content-Language"},
	"CONTENT_LENGTH":      {HeaderContentLength, "Content-Length"},
	"CONTENT_MD5":         {HeaderContentMD5, "Content-MD5"},
	"CONTENT_RANGE":       {HeaderContentRange, "Content-Range"},
	"CONTENT_TYPE":        {HeaderContentType, "Content-Type"},
	"COOKIE":              {HeaderCookie, "Cookie"},
	"EXPIRES":             {HeaderExpires, "Expires"},
	"FROM":                {HeaderFrom, "From"},
	"HOST":                {HeaderHost, "Host"},
	"IF_MATCH":            {HeaderIfMatch, "If-Match"},
	"IF_MODIFIED_SINCE":   {HeaderIfModifiedSince, "If-Modified-Since"},
	"IF_NONE_MATCH":       {HeaderIfNoneMatch, "If-None-Match"},
	"IF_RANGE":            {HeaderIfRange, "If-Range"},
	"IF_UNMODIFIED_SINCE": {HeaderIfUnmodifiedSince, "If-Unmodified-Since"},
	"LAST_MODIFIED":       {HeaderLastModified, "Last-Modified"},
	"MAX_FORWARDS":        {HeaderMaxForwards, "Max-Forwards"},
	"PRAGMA":              {HeaderPragma, "Pragma"},
	"PROXY_AUTHORIZATION": {HeaderProxyAuthorization, "Proxy-Authorization"},
	"RANGE":               {HeaderRange, "Range"},
	"REFERER":             {HeaderReferer, "Referer"},
	"TE":                  {HeaderTE, "TE"},
	"USER_AGENT":          {HeaderUserAgent, "User-Agent"},
	"ALLOW":               {HeaderAllow, "Allow"},
	"VIA":                 {HeaderVia, "Via"},
	"WARNING":             {HeaderWarning, "Warning"},
}

// classifyHeader maps the suffix of an HTTP_* variable name (without
// the HTTP_ prefix) to a header kind and its canonical wire name.
// Unknown suffixes become HeaderExtension, canonicalized by
// title-casing each underscore-separated token and rejoining with
// hyphens: HTTP_X_CUSTOM_HEADER -> "X-Custom-Header".
func classifyHeader(suffix string) (HeaderKind, string) {
	if known, ok := knownSuffixes[suffix]; ok {
		return known.Kind, known.Name
	}
	return HeaderExtension, canonicalizeExtension(suffix)
}

func canonicalizeExtension(suffix string) string {
	tokens := strings.Split(suffix, "_")
	for i, tok := range tokens {
		tokens[i] = titleCase(tok)
	}
	return strings.Join(tokens, "-")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
