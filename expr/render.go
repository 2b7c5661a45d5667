package expr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// hashDomain separates expression hashes from any other sha256 use.
// The null byte prevents domain/payload boundary ambiguity.
const hashDomain = "queryspec/expr/v1"

// Render produces the canonical string form of a tree. The rendering is
// deterministic for equal trees: string constants are NFC-normalized,
// map-like constants render with sorted keys, floats render in shortest
// round-trip form. It is the total order used to reorder commutative
// operands and the input to Hash.
func Render(n Node) string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

func render(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case nil:
		b.WriteString("nil")
	case *Parameter:
		b.WriteString("param(")
		b.WriteString(v.Name)
		b.WriteByte(')')
	case *Constant:
		b.WriteString("const(")
		renderValue(b, v.Value)
		b.WriteByte(')')
	case *Member:
		b.WriteString("member(")
		if v.Static {
			b.WriteString("static:")
			b.WriteString(v.Owner)
		} else {
			render(b, v.Target)
		}
		b.WriteByte(',')
		b.WriteString(v.Name)
		b.WriteByte(')')
	case *Binary:
		b.WriteString("bin(")
		b.WriteString(string(v.Op))
		b.WriteByte(',')
		render(b, v.Left)
		b.WriteByte(',')
		render(b, v.Right)
		b.WriteByte(')')
	case *Unary:
		b.WriteString("un(")
		b.WriteString(string(v.Op))
		b.WriteByte(',')
		render(b, v.Operand)
		b.WriteByte(')')
	case *Call:
		b.WriteString("call(")
		b.WriteString(v.Method)
		b.WriteByte(',')
		render(b, v.Target)
		for _, a := range v.Args {
			b.WriteByte(',')
			render(b, a)
		}
		b.WriteByte(')')
	case *Lambda:
		b.WriteString("lambda([")
		for i, p := range v.Params {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(p.Name)
		}
		b.WriteString("],")
		render(b, v.Body)
		b.WriteByte(')')
	default:
		fmt.Fprintf(b, "unknown(%T)", n)
	}
}

func renderValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(norm.NFC.String(val)))
	case bool:
		b.WriteString(strconv.FormatBool(val))
	case int:
		b.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case float32:
		b.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 32))
	case []any:
		b.WriteByte('[')
		for i, e := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			renderValue(b, e)
		}
		b.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(norm.NFC.String(k)))
			b.WriteByte(':')
			renderValue(b, val[k])
		}
		b.WriteByte('}')
	default:
		fmt.Fprintf(b, "%v", val)
	}
}

// hashRender computes the domain-separated hash of a canonical rendering.
func hashRender(rendering string) string {
	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(rendering))
	return hex.EncodeToString(h.Sum(nil))
}
