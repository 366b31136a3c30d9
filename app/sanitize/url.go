package sanitize

import (
	"fmt"
	"strings"
)

// Characters left alone by URL besides ASCII letters and digits. Reserved
// characters keep their meaning and existing escapes are not doubled.
const uriSafe = "-._~/#%[]=:;$&()+,!?*@'"

// URL converts an IRI to a URI by percent-encoding every byte outside the
// unreserved and reserved sets, so non-ASCII hosts and paths survive
// storage and posting.
func URL(iri string) string {
	if iri == "" {
		return ""
	}

	var b strings.Builder
	for i := 0; i < len(iri); i++ {
		c := iri[i]
		if isAlnum(c) || strings.IndexByte(uriSafe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}
