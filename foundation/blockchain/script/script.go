// Package script implements the tiny stack language used to lock and unlock
// transaction outputs.
package script

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
)

// List of supported opcodes.
const (
	OpToAddr    = "to_addr"
	OpEq        = "eq"
	OpVerifySig = "verify_sig"
)

// opFunc executes an opcode against the stack. Returning false aborts
// the evaluation.
type opFunc func(s *stack) bool

// Map of opcodes with their functions.
var opcodes = map[string]opFunc{
	OpToAddr:    toAddr,
	OpEq:        eq,
	OpVerifySig: verifySig,
}

// =============================================================================

// Evaluate runs the whitespace separated program. Tokens that are not
// opcodes are pushed onto the stack as literals. The final stack is
// returned with true, or nil and false when any opcode fails.
func Evaluate(program string) ([]string, bool) {
	var s stack

	for _, token := range strings.Fields(program) {
		fn, isOp := opcodes[token]
		if !isOp {
			s.push(token)
			continue
		}

		if !fn(&s) {
			return nil, false
		}
	}

	return s, true
}

// Authorize reports whether the solution unlocks the lock for the spend
// identified by digest. The hex digest is placed between the solution and the
// lock, so a signature only authorizes the output it was made for. Solutions
// may only push literals.
func Authorize(solution string, digest [32]byte, lock string) bool {
	for _, token := range strings.Fields(solution) {
		if _, isOp := opcodes[token]; isOp {
			return false
		}
	}

	_, ok := Evaluate(solution + " " + hex.EncodeToString(digest[:]) + " " + lock)
	return ok
}

// Lock returns the standard program locking an output to the address.
func Lock(address string) string {
	return fmt.Sprintf("%s %s %s %s", OpVerifySig, OpToAddr, address, OpEq)
}

// Solution returns the standard program unlocking an output locked with
// Lock: the public key and the signature over the spend digest.
func Solution(publicKeyHex string, sigHex string) string {
	return fmt.Sprintf("%s %s", publicKeyHex, sigHex)
}

// SignSpend returns the standard solution spending output index of the
// transaction with the specified hash.
func SignSpend(txHash [32]byte, index uint32, privateKey *ecdsa.PrivateKey) (string, error) {
	digest := signature.SpendDigest(txHash, index)

	sig, err := signature.Sign(digest, privateKey)
	if err != nil {
		return "", err
	}

	return Solution(signature.PublicKeyHex(privateKey.PublicKey), sig), nil
}

// AddressFromLock extracts the address from a standard lock. It returns
// false for any other program.
func AddressFromLock(lock string) (string, bool) {
	tokens := strings.Fields(lock)
	if len(tokens) != 4 || tokens[0] != OpVerifySig || tokens[1] != OpToAddr || tokens[3] != OpEq {
		return "", false
	}

	return tokens[2], true
}

// =============================================================================

// stack holds the values of a running program.
type stack []string

func (s *stack) push(v string) {
	*s = append(*s, v)
}

func (s *stack) pop() (string, bool) {
	if len(*s) == 0 {
		return "", false
	}

	v := (*s)[len(*s)-1]
	*s = (*s)[:len(*s)-1]

	return v, true
}

// toAddr pops a hex public key and pushes its address.
func toAddr(s *stack) bool {
	pk, ok := s.pop()
	if !ok {
		return false
	}

	addr, err := signature.AddressFromHex(pk)
	if err != nil {
		return false
	}

	s.push(addr)
	return true
}

// eq pops two values and fails unless they are equal.
func eq(s *stack) bool {
	a, ok := s.pop()
	if !ok {
		return false
	}

	b, ok := s.pop()
	if !ok {
		return false
	}

	return a == b
}

// verifySig pops the message, the signature and the public key. The public
// key is pushed back when the signature is valid.
func verifySig(s *stack) bool {
	msg, ok := s.pop()
	if !ok {
		return false
	}

	sig, ok := s.pop()
	if !ok {
		return false
	}

	pk, ok := s.pop()
	if !ok {
		return false
	}

	if err := signature.Verify(pk, sig, msg); err != nil {
		return false
	}

	s.push(pk)
	return true
}
