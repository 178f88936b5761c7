package tree

import "strings"

// Normalize returns p with exactly one leading slash and every run of
// slashes collapsed into one. A trailing slash is kept, since directory
// keys carry one. The empty string normalizes to "/".
func Normalize(p string) string {
	var b strings.Builder

	b.Grow(len(p) + 1)
	b.WriteByte('/')

	prevSlash := true

	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == '/' {
			if prevSlash {
				continue
			}

			prevSlash = true
		} else {
			prevSlash = false
		}

		b.WriteByte(c)
	}

	return b.String()
}

// Join composes base and rel into a single normalized path.
func Join(base, rel string) string {
	return Normalize(base + "/" + rel)
}

// DirKey returns the index key for a directory: normalized with a
// trailing slash.
func DirKey(p string) string {
	return Normalize(p + "/")
}

// Rel strips base from abs and returns the remainder as a normalized
// path. The match is made on directory boundaries, so "/docs2/x" is not
// under "/docs". ok is false when abs lies outside base. The base
// directory itself maps to "/".
func Rel(base, abs string) (string, bool) {
	prefix := DirKey(base)
	abs = Normalize(abs)

	if abs == prefix || abs+"/" == prefix {
		return "/", true
	}

	if !strings.HasPrefix(abs, prefix) {
		return "", false
	}

	return Normalize(abs[len(prefix)-1:]), true
}

// Parent returns the directory key containing p. The parent of a top
// level entry is "/".
func Parent(p string) string {
	p = strings.TrimSuffix(Normalize(p), "/")

	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}

	return p[:idx+1]
}
