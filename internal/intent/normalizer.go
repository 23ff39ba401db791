// Package intent maps free-text requests to capability sets and workflow
// patterns, and produces the normalized fingerprints the reuse store
// matches on.
package intent

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// stopWords are dropped during normalization so phrasing variations of the
// same request collapse to the same fingerprint.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "need": true, "to": true, "of": true,
	"in": true, "for": true, "on": true, "with": true, "at": true,
	"by": true, "from": true, "as": true, "into": true, "through": true,
	"during": true, "before": true, "after": true, "above": true,
	"below": true, "between": true, "under": true, "again": true,
	"then": true, "once": true, "here": true, "there": true, "when": true,
	"where": true, "why": true, "how": true, "all": true, "each": true,
	"few": true, "more": true, "most": true, "other": true, "some": true,
	"such": true, "no": true, "nor": true, "not": true, "only": true,
	"own": true, "same": true, "so": true, "than": true, "too": true,
	"very": true, "just": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "you": true, "your": true, "he": true,
	"she": true, "it": true, "they": true, "them": true, "this": true,
	"that": true, "these": true, "those": true, "am": true, "what": true,
	"which": true, "who": true, "whom": true, "please": true, "help": true,
	"want": true, "like": true, "get": true, "make": true,
}

// Normalize case-folds the request, strips punctuation, drops stop words and
// single-character tokens, and collapses whitespace. The result is stable
// input for fingerprinting and similarity matching.
func Normalize(request string) string {
	lowered := strings.ToLower(request)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	kept := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) < 2 || stopWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// Fingerprint hashes the normalized token sequence. Two requests with the
// same fingerprint are treated as the same request by the reuse store.
func Fingerprint(request string) string {
	sum := sha256.Sum256([]byte(Normalize(request)))
	return hex.EncodeToString(sum[:])
}
