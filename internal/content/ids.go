package content

import "github.com/google/uuid"

// ventureNS namespaces slug-derived venture ids
var ventureNS = uuid.MustParse("6f1c2a8e-3b7d-4e25-9a61-0c4f8d2b7e93")

func newID() string { return uuid.NewString() }

// ventureID is stable for a slug so repeated upserts of one venture agree on its key
func ventureID(slug string) string {
	return uuid.NewSHA1(ventureNS, []byte(slug)).String()
}
