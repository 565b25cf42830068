package engine

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	codeCharset     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength      = 6
	maxCodeAttempts = 1000
)

type CodeGenerator interface {
	NewCode() (string, error)
}

// RandomCodes draws 6-character codes from crypto/rand.
type RandomCodes struct{}

func (RandomCodes) NewCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// CodeFunc lets a plain function act as a CodeGenerator.
type CodeFunc func() (string, error)

func (f CodeFunc) NewCode() (string, error) { return f() }

// NormalizeCode makes user-typed codes comparable with generated ones.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
