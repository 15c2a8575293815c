package forge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hash returns the 64-character lowercase hex SHA-256 digest of the
// canonical serialisation of input. A nil input hashes to the same value
// as the empty string.
func Hash(input any) string {
	return hashBytes([]byte(canonicalize(input)))
}

// HashMany computes hash(many(a, b, c, ...)): each part is canonicalised
// individually, the results are joined with the literal ASCII pipe "|",
// and the joined string is hashed. Order of parts is significant.
func HashMany(parts ...any) string {
	canon := make([]string, len(parts))
	for i, p := range parts {
		canon[i] = canonicalize(p)
	}
	return hashBytes([]byte(strings.Join(canon, "|")))
}

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalize turns a value into its canonical textual form: sorted-key
// JSON for maps/objects, plain text for scalars, and the empty string for
// nil/absent input. It only handles the concrete shapes FORGE actually
// hashes (identity strings, action descriptors, state-snapshot maps of
// string to string) rather than admitting arbitrary dynamic values.
func canonicalize(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case map[string]string:
		return canonicalizeStringMap(x)
	case map[string]any:
		return canonicalizeAnyMap(x)
	default:
		panic(fmt.Sprintf("forge: canonicalize: unsupported value type %T", v))
	}
}

func canonicalizeStringMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(m[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func canonicalizeAnyMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.WriteString(strconv.Quote(canonicalize(m[k])))
	}
	b.WriteByte('}')
	return b.String()
}
