package protocol

// rotOffset is the fixed rotation applied by Obscure. Both sides of the
// wire share it; it keeps credentials out of casual log reads and packet
// captures and is in no sense a security primitive.
const rotOffset = 3

// Obscure rotates each letter within its case-preserving alphabet and
// each digit within 0-9 by the fixed offset. All other characters pass
// through unchanged.
func Obscure(s string) string {
	return rotate(s, rotOffset)
}

// Reveal inverts Obscure: Reveal(Obscure(s)) == s for any string.
func Reveal(s string) string {
	return rotate(s, -rotOffset)
}

func rotate(s string, offset int) string {
	out := []byte(s)
	for i, c := range out {
		switch {
		case c >= '0' && c <= '9':
			out[i] = byte((int(c-'0')+offset+10)%10) + '0'
		case c >= 'a' && c <= 'z':
			out[i] = byte((int(c-'a')+offset+26)%26) + 'a'
		case c >= 'A' && c <= 'Z':
			out[i] = byte((int(c-'A')+offset+26)%26) + 'A'
		}
	}
	return string(out)
}
