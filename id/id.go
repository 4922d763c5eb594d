package id

import gonanoid "github.com/matoous/go-nanoid/v2"

const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz-"
	size     = 21
)

func Generate() string {
	return gonanoid.MustGenerate(alphabet, size)
}

func Valid(s string) bool {
	if len(s) != size {
		return false
	}
	for _, r := range s {
		ok := r == '-' || r == '_' ||
			(r >= '0' && r <= '9') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= 'a' && r <= 'z')
		if !ok {
			return false
		}
	}
	return true
}
