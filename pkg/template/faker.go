package template

import (
	"fmt"
	"hash/fnv"
	mathrand "math/rand/v2"
	"strings"
)

// fakerFirstNames, fakerLastNames, and the other tables below are small,
// deterministic pools the faker.* helpers draw from. Kept short on purpose:
// this simulator favors reproducible fixtures over breadth of realism.
var fakerFirstNames = []string{
	"Alice", "Bob", "Carol", "Dave", "Eve", "Frank", "Grace", "Heidi",
	"Ivan", "Judy", "Mallory", "Niaj", "Olivia", "Peggy", "Trent",
}

var fakerLastNames = []string{
	"Johnson", "Smith", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Wilson", "Anderson", "Taylor",
}

var fakerDomains = []string{"example.com", "mail.test", "sample.io", "demo.dev"}

var fakerCompanySuffixes = []string{"Inc", "LLC", "Group", "Partners", "Labs", "Co"}

var fakerJobLevels = []string{"Senior", "Junior", "Lead", "Principal", "Staff"}
var fakerJobFields = []string{"Software", "Data", "Product", "Platform", "Security"}

var fakerColors = []string{
	"Crimson", "Azure", "Emerald", "Ivory", "Coral", "Indigo", "Amber", "Jade",
}

// fakeValue resolves a faker.<category>[.<field>] expression. Generation is
// seeded from the context's RequestID (falling back to the request path)
// combined with the expression itself, so repeated renders within the same
// request — e.g. a script hook re-render pass — produce the same faker
// values rather than drifting between passes.
func fakeValue(expr string, ctx *Context) string {
	rng := fakerRNG(expr, ctx)

	switch expr {
	case "firstName", "first_name":
		return pick(rng, fakerFirstNames)
	case "lastName", "last_name":
		return pick(rng, fakerLastNames)
	case "fullName", "full_name", "name":
		return pick(rng, fakerFirstNames) + " " + pick(rng, fakerLastNames)
	case "email":
		return strings.ToLower(pick(rng, fakerFirstNames) + "." + pick(rng, fakerLastNames) + "@" + pick(rng, fakerDomains))
	case "username":
		return strings.ToLower(pick(rng, fakerFirstNames) + fmt.Sprintf("%d", rng.IntN(1000)))
	case "company":
		return pick(rng, fakerLastNames) + " " + pick(rng, fakerCompanySuffixes)
	case "jobTitle", "job_title":
		return pick(rng, fakerJobLevels) + " " + pick(rng, fakerJobFields) + " Engineer"
	case "color":
		return pick(rng, fakerColors)
	case "ipv4":
		return fmt.Sprintf("%d.%d.%d.%d", rng.IntN(256), rng.IntN(256), rng.IntN(256), rng.IntN(256))
	case "uuid":
		// faker.uuid is deterministic per seed, unlike the bare {{uuid}}
		// helper which is always fresh randomness.
		return fmt.Sprintf("%08x-%04x-%04x-%04x-%012x",
			rng.Uint32(), rng.IntN(1<<16), rng.IntN(1<<16), rng.IntN(1<<16), rng.Uint64()&0xffffffffffff)
	case "phone", "phoneNumber", "phone_number":
		return fmt.Sprintf("+1-%03d-%03d-%04d", 200+rng.IntN(800), rng.IntN(1000), rng.IntN(10000))
	case "price":
		return fmt.Sprintf("%d.%02d", 1+rng.IntN(500), rng.IntN(100))
	case "boolean", "bool":
		if rng.IntN(2) == 0 {
			return "false"
		}
		return "true"
	case "word":
		return pick(rng, fakerColors)
	default:
		return ""
	}
}

func pick(rng *mathrand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}

// fakerRNG derives a deterministic PRNG seed from the context's request
// identity and the expression being evaluated.
func fakerRNG(expr string, ctx *Context) *mathrand.Rand {
	h := fnv.New64a()
	if ctx != nil {
		if ctx.RequestID != "" {
			_, _ = h.Write([]byte(ctx.RequestID))
		} else {
			_, _ = h.Write([]byte(ctx.Request.Method + ctx.Request.Path))
		}
	}
	_, _ = h.Write([]byte(expr))
	seed := h.Sum64()
	return mathrand.New(mathrand.NewPCG(seed, seed>>1|1))
}
